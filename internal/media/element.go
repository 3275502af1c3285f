// Package media holds the panel's media elements: one per remote track, each
// draining its track's RTP and optionally recording it to disk.
package media

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/rtp"
)

// Kind is the element type, mirroring the track kind.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// ErrUnknownKind is returned for kinds other than video and audio.
var ErrUnknownKind = errors.New("media: unknown element kind")

// Track is the part of a remote track an element reads from.
type Track interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// ElementConfig configures an Element.
type ElementConfig struct {
	Kind Kind
	// Source is the id of the media stream the element plays.
	Source string
	// Codec is the track's MIME type, e.g. "video/VP8".
	Codec string
	// RecordDir enables recording when set.
	RecordDir string

	LoggerFactory logging.LoggerFactory
}

// ElementInfo is a snapshot of an element.
type ElementInfo struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	Source    string `json:"source"`
	Codec     string `json:"codec"`
	Autoplay  bool   `json:"autoplay"`
	Controls  bool   `json:"controls"`
	Recording string `json:"recording,omitempty"`
	Packets   uint64 `json:"packets"`
	Bytes     uint64 `json:"bytes"`
}

// Element plays one remote track.
type Element struct {
	id     string
	kind   Kind
	source string
	codec  string
	path   string
	log    logging.LeveledLogger

	enqueue    func(*rtp.Packet) bool
	stopWriter func()

	packets atomic.Uint64
	bytes   atomic.Uint64

	playOnce  sync.Once
	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewElement creates an element and, if cfg.RecordDir is set and the codec
// has a container format, opens its recording.
func NewElement(cfg ElementConfig) (*Element, error) {
	if cfg.Kind != KindVideo && cfg.Kind != KindAudio {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		f := logging.NewDefaultLoggerFactory()
		f.DefaultLogLevel = logging.LogLevelDisabled
		lf = f
	}
	e := &Element{
		id:     uuid.New().String(),
		kind:   cfg.Kind,
		source: cfg.Source,
		codec:  cfg.Codec,
		log:    lf.NewLogger("media"),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if cfg.RecordDir != "" {
		w, path, err := newRecorder(cfg.RecordDir, e.id[:8]+"-"+string(cfg.Kind), cfg.Codec)
		if err != nil {
			return nil, err
		}
		if w != nil {
			e.path = path
			e.enqueue, e.stopWriter = newAsyncPacketWriter(w, e.log)
		} else {
			e.log.Debugf("element %s: no container for %s, counting only", e.id, cfg.Codec)
		}
	}
	return e, nil
}

func (e *Element) ID() string   { return e.id }
func (e *Element) Kind() Kind   { return e.kind }
func (e *Element) Path() string { return e.path }

// Play starts draining t. Only the first call has an effect. The read loop
// ends when the track ends or the element closes.
func (e *Element) Play(t Track) {
	e.playOnce.Do(func() {
		go e.readLoop(t)
	})
}

// Done is closed when the read loop has exited.
func (e *Element) Done() <-chan struct{} { return e.done }

func (e *Element) readLoop(t Track) {
	defer close(e.done)
	for {
		pkt, _, err := t.ReadRTP()
		if err != nil {
			e.log.Debugf("element %s: track ended: %v", e.id, err)
			return
		}
		select {
		case <-e.quit:
			return
		default:
		}
		e.packets.Add(1)
		e.bytes.Add(uint64(len(pkt.Payload)))
		incPacketsIn(len(pkt.Payload))
		if e.enqueue != nil && !e.enqueue(pkt) {
			select {
			case <-e.quit:
				// The recorder was stopped by Close, not backed up.
				return
			default:
			}
			incPacketsDropped()
		}
	}
}

// Close stops playback and finalizes the recording. It is idempotent. A
// blocked ReadRTP returns once the owning connection closes.
func (e *Element) Close() error {
	e.closeOnce.Do(func() {
		close(e.quit)
		if e.stopWriter != nil {
			e.stopWriter()
		}
		e.log.Debugf("element %s: closed after %d packets", e.id, e.packets.Load())
	})
	return nil
}

// Info returns a snapshot of the element.
func (e *Element) Info() ElementInfo {
	return ElementInfo{
		ID:        e.id,
		Kind:      e.kind,
		Source:    e.source,
		Codec:     e.codec,
		Autoplay:  true,
		Controls:  true,
		Recording: e.path,
		Packets:   e.packets.Load(),
		Bytes:     e.bytes.Load(),
	}
}
