// Package controller owns camera discovery and the single active peer
// session. SelectCamera is the only path that replaces the session.
package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"campanel/internal/peer"
	"campanel/internal/signaling"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v3"
)

// None is the camera list's neutral entry: no camera selected.
const None = ""

var (
	ErrDiscoveryFailed = errors.New("controller: camera discovery failed")
	ErrUnknownCamera   = errors.New("controller: unknown camera")
	ErrSuperseded      = errors.New("controller: selection superseded")
	ErrNoSelection     = errors.New("controller: no camera selected")
)

// Signaling is the camera server API the controller drives.
// *signaling.Client implements it.
type Signaling interface {
	peer.Signaler
	ListCameras(ctx context.Context) ([]string, error)
	ListModes(ctx context.Context, cameraID string) ([]signaling.Mode, error)
	CurrentMode(ctx context.Context, cameraID string) (string, error)
	SetMode(ctx context.Context, cameraID string, index int) error
}

// Config configures a Controller.
type Config struct {
	Signaling Signaling
	NewConn   peer.ConnFactory

	// AudioDirection is passed to every session.
	AudioDirection webrtc.RTPTransceiverDirection

	// Sink is installed on every session before it starts.
	Sink peer.TrackSink

	// OnChange receives a snapshot after every state change.
	OnChange func(State)

	LoggerFactory logging.LoggerFactory
}

// SessionInfo describes the current or negotiating session.
type SessionInfo struct {
	ID     string `json:"id"`
	Camera string `json:"camera"`
	State  string `json:"state"`
}

// State is a snapshot of the controller.
type State struct {
	// Seq increases with every change; a snapshot with a lower Seq is stale.
	Seq      uint64       `json:"seq"`
	Cameras  []string     `json:"cameras"`
	Selected string       `json:"selected"`
	Session  *SessionInfo `json:"session,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Controller serializes camera selection. At most one session is open at
// any time: the previous one is closed before the next is started.
type Controller struct {
	sig      Signaling
	newConn  peer.ConnFactory
	audioDir webrtc.RTPTransceiverDirection
	sink     peer.TrackSink
	onChange func(State)
	lf       logging.LoggerFactory
	log      logging.LeveledLogger

	mu       sync.Mutex
	cameras  []string
	selected string
	current  *peer.Session
	pending  *peer.Session
	gen      uint64
	seq      uint64
	lastErr  string
}

func New(cfg Config) (*Controller, error) {
	if cfg.Signaling == nil {
		return nil, errors.New("controller: signaling is required")
	}
	if cfg.NewConn == nil {
		return nil, errors.New("controller: connection factory is required")
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		f := logging.NewDefaultLoggerFactory()
		f.DefaultLogLevel = logging.LogLevelDisabled
		lf = f
	}
	return &Controller{
		sig:      cfg.Signaling,
		newConn:  cfg.NewConn,
		audioDir: cfg.AudioDirection,
		sink:     cfg.Sink,
		onChange: cfg.OnChange,
		lf:       lf,
		log:      lf.NewLogger("controller"),
		cameras:  []string{},
	}, nil
}

// Init discovers cameras. On success the list starts with None; on failure
// it is empty and nothing can be selected.
func (c *Controller) Init(ctx context.Context) error {
	ids, err := c.sig.ListCameras(ctx)

	c.mu.Lock()
	// A new list may not contain the open session's camera.
	c.gen++
	c.closeSessionsLocked()
	c.selected = None
	c.seq++
	if err != nil {
		c.cameras = []string{}
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.log.Errorf("camera discovery: %v", err)
		c.notify()
		return fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}
	c.cameras = append([]string{None}, ids...)
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Infof("discovered %d cameras", len(ids))
	c.notify()
	return nil
}

// SelectCamera switches to next, or to no camera when next is None. The
// open session, if any, is always closed first, even when next is the
// camera already selected. A call overtaken by a newer one returns
// ErrSuperseded.
func (c *Controller) SelectCamera(ctx context.Context, next string) error {
	c.mu.Lock()
	if next != None && !slices.Contains(c.cameras, next) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownCamera, next)
	}
	c.gen++
	gen := c.gen
	// Teardown happens under mu so a later selection cannot post its offer
	// while this one's predecessors are still open.
	c.closeSessionsLocked()
	c.selected = None
	c.lastErr = ""
	c.seq++
	if next == None {
		c.mu.Unlock()
		c.log.Infof("camera deselected")
		c.notify()
		return nil
	}
	s := peer.NewSession(peer.SessionConfig{
		NewConn:        c.newConn,
		AudioDirection: c.audioDir,
		OnFailed:       c.handleFailed,
		LoggerFactory:  c.lf,
	})
	if c.sink != nil {
		s.OnTrack(c.sink)
	}
	c.pending = s
	c.seq++
	c.mu.Unlock()
	c.notify()

	c.log.Infof("selecting camera %q (session %s)", next, s.ID())
	err := s.Start(ctx, next, c.sig)

	c.mu.Lock()
	if c.gen != gen || c.pending != s {
		c.mu.Unlock()
		_ = s.Close()
		c.log.Debugf("selection of %q superseded", next)
		return fmt.Errorf("%w: %q", ErrSuperseded, next)
	}
	c.pending = nil
	c.seq++
	if err == nil && s.State() != peer.StateLive {
		// Failed after going live but before being promoted; its OnFailed
		// hook found it still pending.
		err = fmt.Errorf("%w: camera %q", peer.ErrPeerFailed, next)
	}
	if err != nil {
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.log.Warnf("select camera %q: %v", next, err)
		c.notify()
		return err
	}
	c.current = s
	c.selected = next
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Controller) closeSessionsLocked() {
	for _, s := range []*peer.Session{c.current, c.pending} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			c.log.Warnf("close session %s: %v", s.ID(), err)
		}
	}
	c.current, c.pending = nil, nil
}

func (c *Controller) handleFailed(s *peer.Session, err error) {
	c.mu.Lock()
	if c.current != s {
		// A pending session is settled by SelectCamera, which sees it closed.
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.selected = None
	c.lastErr = err.Error()
	c.seq++
	c.mu.Unlock()
	c.log.Warnf("camera %q: %v", s.Camera(), err)
	c.notify()
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Seq:      c.seq,
		Cameras:  slices.Clone(c.cameras),
		Selected: c.selected,
		Error:    c.lastErr,
	}
	s := c.current
	if s == nil {
		s = c.pending
	}
	if s != nil {
		st.Session = &SessionInfo{ID: s.ID(), Camera: s.Camera(), State: s.State().String()}
	}
	return st
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.State())
	}
}

// Close releases the open session, if any.
func (c *Controller) Close() error {
	return c.SelectCamera(context.Background(), None)
}

func (c *Controller) selectedCamera() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == None {
		return "", ErrNoSelection
	}
	return c.selected, nil
}

// Modes lists the selected camera's modes.
func (c *Controller) Modes(ctx context.Context) ([]signaling.Mode, error) {
	id, err := c.selectedCamera()
	if err != nil {
		return nil, err
	}
	return c.sig.ListModes(ctx, id)
}

// CurrentMode describes the selected camera's active mode.
func (c *Controller) CurrentMode(ctx context.Context) (string, error) {
	id, err := c.selectedCamera()
	if err != nil {
		return "", err
	}
	return c.sig.CurrentMode(ctx, id)
}

// SetMode switches the selected camera to mode index.
func (c *Controller) SetMode(ctx context.Context, index int) error {
	id, err := c.selectedCamera()
	if err != nil {
		return err
	}
	if err := c.sig.SetMode(ctx, id, index); err != nil {
		return err
	}
	c.log.Infof("camera %q: mode %d", id, index)
	return nil
}
