// Package panel is the operator-facing side of campanel: the view model
// bound to the controller, the track sink that fills the video container,
// and the HTTP surface that renders both.
package panel

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"campanel/internal/controller"
	"campanel/internal/media"
	"campanel/internal/peer"

	"github.com/pion/logging"
)

const (
	DefaultFPS        = 30
	DefaultResolution = 50

	minFPS, maxFPS               = 1, 60
	minResolution, maxResolution = 0, 100
)

var ErrInvalidControls = errors.New("panel: controls out of range")

// Controls are the two sliders. They are local to the panel and never sent
// to the camera server.
type Controls struct {
	FPS        int `json:"fps"`
	Resolution int `json:"resolution"`
}

func (c Controls) validate() error {
	if c.FPS < minFPS || c.FPS > maxFPS {
		return fmt.Errorf("%w: fps %d not in [%d, %d]", ErrInvalidControls, c.FPS, minFPS, maxFPS)
	}
	if c.Resolution < minResolution || c.Resolution > maxResolution {
		return fmt.Errorf("%w: resolution %d not in [%d, %d]", ErrInvalidControls, c.Resolution, minResolution, maxResolution)
	}
	return nil
}

// Snapshot is everything the page renders.
type Snapshot struct {
	controller.State
	Controls  Controls            `json:"controls"`
	Container string              `json:"container"`
	Elements  []media.ElementInfo `json:"elements"`
}

type ViewConfig struct {
	// Container receives one element per remote track. Without one, tracks
	// are ignored.
	Container *media.Container
	// RecordDir, if set, records every track with a known container format.
	RecordDir string
	// Hub receives a snapshot after every change. Created if nil.
	Hub *Hub

	LoggerFactory logging.LoggerFactory
}

// View binds controller state, local controls and the media container.
type View struct {
	container *media.Container
	recordDir string
	hub       *Hub
	lf        logging.LoggerFactory
	log       logging.LeveledLogger

	mu       sync.Mutex
	state    controller.State
	controls Controls
}

func NewView(cfg ViewConfig) *View {
	lf := cfg.LoggerFactory
	if lf == nil {
		f := logging.NewDefaultLoggerFactory()
		f.DefaultLogLevel = logging.LogLevelDisabled
		lf = f
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub()
	}
	return &View{
		container: cfg.Container,
		recordDir: cfg.RecordDir,
		hub:       hub,
		lf:        lf,
		log:       lf.NewLogger("panel"),
		state:     controller.State{Cameras: []string{}},
		controls:  Controls{FPS: DefaultFPS, Resolution: DefaultResolution},
	}
}

func (v *View) Hub() *Hub { return v.hub }

// TrackSink creates a playing element for the track, inserts it into the
// container and returns the function that takes it out again.
func (v *View) TrackSink(ev peer.TrackEvent) (detach func()) {
	if v.container == nil {
		v.log.Warnf("no media container, ignoring %s track", ev.Kind)
		return nil
	}
	var source string
	if len(ev.Streams) > 0 {
		source = ev.Streams[0]
	}
	var codec string
	if ev.Track != nil {
		codec = ev.Track.Codec().MimeType
	}
	el, err := media.NewElement(media.ElementConfig{
		Kind:          media.Kind(ev.Kind),
		Source:        source,
		Codec:         codec,
		RecordDir:     v.recordDir,
		LoggerFactory: v.lf,
	})
	if err != nil {
		v.log.Warnf("%s track from %q: %v", ev.Kind, source, err)
		return nil
	}
	if ev.Track != nil {
		el.Play(ev.Track)
	}
	v.container.Insert(el)
	v.log.Infof("%s element %s added (stream %q)", ev.Kind, el.ID(), source)
	v.broadcast()

	return func() {
		if v.container.Remove(el) {
			v.log.Debugf("%s element %s removed", el.Kind(), el.ID())
		}
		if err := el.Close(); err != nil {
			v.log.Warnf("close element %s: %v", el.ID(), err)
		}
		v.broadcast()
	}
}

// Publish stores the controller snapshot and pushes the view to subscribers.
// Snapshots older than the one already stored are ignored.
func (v *View) Publish(st controller.State) {
	v.mu.Lock()
	if st.Seq < v.state.Seq {
		v.mu.Unlock()
		return
	}
	v.state = st
	v.mu.Unlock()
	v.broadcast()
}

func (v *View) Controls() Controls {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.controls
}

// SetControls updates the slider values.
func (v *View) SetControls(c Controls) error {
	if err := c.validate(); err != nil {
		return err
	}
	v.mu.Lock()
	v.controls = c
	v.mu.Unlock()
	v.broadcast()
	return nil
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	snap := Snapshot{State: v.state, Controls: v.controls}
	v.mu.Unlock()
	snap.Elements = []media.ElementInfo{}
	if v.container != nil {
		snap.Container = v.container.ID()
		snap.Elements = v.container.Elements()
	}
	return snap
}

func (v *View) broadcast() {
	msg, err := json.Marshal(v.Snapshot())
	if err != nil {
		v.log.Errorf("encode snapshot: %v", err)
		return
	}
	v.hub.Broadcast(msg)
}
