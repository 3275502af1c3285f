package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v3"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateNew State = iota
	StateNegotiating
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Signaler posts the complete local description for a camera and returns the
// server's answer. *signaling.Client implements it.
type Signaler interface {
	StartCamera(ctx context.Context, cameraID string, local webrtc.SessionDescription) (webrtc.SessionDescription, error)
}

// TrackEvent describes one remote track.
type TrackEvent struct {
	// Kind is "video" or "audio".
	Kind string
	// Streams holds the ids of the media streams the track belongs to.
	Streams []string
	Track   RemoteTrack
}

// TrackSink receives remote tracks. The returned function, if any, undoes
// whatever the sink did for the track and is called once when the session
// closes.
type TrackSink func(TrackEvent) (detach func())

// SessionConfig configures a Session.
type SessionConfig struct {
	// NewConn creates the peer connection. Required.
	NewConn ConnFactory

	// AudioDirection of the audio transceiver. Defaults to sendrecv.
	AudioDirection webrtc.RTPTransceiverDirection

	// OnFailed is called, on its own goroutine, when a live session fails.
	OnFailed func(s *Session, err error)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Session owns one peer connection from offer to teardown:
// New -> Negotiating -> Live -> Closed. Closed is terminal; switching
// cameras means a fresh Session.
type Session struct {
	id       string
	newConn  ConnFactory
	audioDir webrtc.RTPTransceiverDirection
	onFailed func(*Session, error)
	log      logging.LeveledLogger

	mu       sync.Mutex
	state    State
	camera   string
	conn     Conn
	sink     TrackSink
	detach   []func()
	signaled bool
	closeErr error
	cancel   context.CancelFunc

	gathered   chan struct{}
	gatherOnce sync.Once
	done       chan struct{}
}

// NewSession creates a session in state New.
func NewSession(cfg SessionConfig) *Session {
	dir := cfg.AudioDirection
	if dir == 0 {
		dir = webrtc.RTPTransceiverDirectionSendrecv
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		f := logging.NewDefaultLoggerFactory()
		f.DefaultLogLevel = logging.LogLevelDisabled
		lf = f
	}
	return &Session{
		id:       uuid.New().String(),
		newConn:  cfg.NewConn,
		audioDir: dir,
		onFailed: cfg.OnFailed,
		log:      lf.NewLogger("peer"),
		gathered: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Camera returns the camera passed to Start.
func (s *Session) Camera() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.done }

// OnTrack installs the sink for remote tracks. Install it before Start.
func (s *Session) OnTrack(sink TrackSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Start negotiates a session for cameraID and returns once the server's
// answer is applied. The offer is posted once, after ICE gathering
// completes, with every candidate inlined. Any failure closes the session.
func (s *Session) Start(ctx context.Context, cameraID string, sig Signaler) error {
	s.mu.Lock()
	switch s.state {
	case StateNew:
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	default:
		s.mu.Unlock()
		return ErrStarted
	}
	s.state = StateNegotiating
	s.camera = cameraID
	s.mu.Unlock()
	s.log.Debugf("session %s: negotiating camera %q", s.id, cameraID)

	conn, err := s.newConn()
	if err != nil {
		return s.fail(fmt.Errorf("peer: create connection: %w", err))
	}
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		_ = conn.Close()
		return s.closedErr()
	}
	s.conn = conn
	s.mu.Unlock()

	conn.OnICECandidate(s.handleCandidate)
	conn.OnTrack(s.handleTrack)
	conn.OnConnectionStateChange(s.handleConnectionState)

	// Declared before the offer so it carries both media sections even
	// without local capture.
	kinds := []string{webrtc.RTPCodecTypeVideo.String(), webrtc.RTPCodecTypeAudio.String()}
	if err := conn.AddTransceiver(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverDirectionSendrecv); err != nil {
		return s.fail(fmt.Errorf("peer: add video transceiver: %w", err))
	}
	if err := conn.AddTransceiver(webrtc.RTPCodecTypeAudio, s.audioDir); err != nil {
		return s.fail(fmt.Errorf("peer: add audio transceiver: %w", err))
	}

	offer, err := conn.CreateOffer()
	if err != nil {
		return s.fail(fmt.Errorf("peer: create offer: %w", err))
	}
	if err := conn.SetLocalDescription(offer); err != nil {
		return s.fail(fmt.Errorf("peer: set local description: %w", err))
	}

	select {
	case <-s.gathered:
	case <-s.done:
		return s.closedErr()
	case <-ctx.Done():
		return s.fail(ctx.Err())
	}

	local := conn.LocalDescription()
	if local == nil {
		return s.fail(fmt.Errorf("%w: no local description", ErrIncompleteOffer))
	}
	if err := checkOffer(local.SDP, kinds); err != nil {
		return s.fail(err)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.state != StateNegotiating || s.signaled {
		s.mu.Unlock()
		return s.closedErr()
	}
	s.signaled = true
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Debugf("session %s: posting offer (%d bytes)", s.id, len(local.SDP))
	answer, err := sig.StartCamera(reqCtx, cameraID, *local)
	if s.isClosed() {
		// The response belongs to a session nobody wants anymore.
		return s.closedErr()
	}
	if err != nil {
		return s.fail(err)
	}

	if err := conn.SetRemoteDescription(answer); err != nil {
		return s.fail(fmt.Errorf("peer: set remote description: %w", err))
	}

	s.mu.Lock()
	if s.state != StateNegotiating {
		s.mu.Unlock()
		return s.closedErr()
	}
	s.state = StateLive
	s.cancel = nil
	s.mu.Unlock()
	s.log.Infof("session %s: camera %q live", s.id, cameraID)
	return nil
}

// Close tears the session down. It is idempotent; only the first call
// reports the connection's close error.
func (s *Session) Close() error {
	return s.closeWith(ErrClosed)
}

func (s *Session) closeWith(cause error) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	prev := s.state
	s.state = StateClosed
	s.closeErr = cause
	conn, cancel, detach := s.conn, s.cancel, s.detach
	s.conn, s.cancel, s.detach = nil, nil, nil
	close(s.done)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		err = conn.Close()
	}
	for _, d := range detach {
		d()
	}
	if errors.Is(cause, ErrClosed) {
		s.log.Debugf("session %s: closed (was %s)", s.id, prev)
	} else {
		s.log.Warnf("session %s: closed (was %s): %v", s.id, prev, cause)
	}
	return err
}

// fail closes the session with err and returns the error Start reports.
func (s *Session) fail(err error) error {
	_ = s.closeWith(err)
	return s.closedErr()
}

// closedErr is the reason the session closed.
func (s *Session) closedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr == nil {
		return ErrClosed
	}
	return s.closeErr
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed
}

func (s *Session) handleCandidate(c *webrtc.ICECandidate) {
	if c != nil {
		return
	}
	s.gatherOnce.Do(func() {
		s.log.Tracef("session %s: ICE gathering complete", s.id)
		close(s.gathered)
	})
}

func (s *Session) handleTrack(track RemoteTrack) {
	s.mu.Lock()
	sink := s.sink
	closed := s.state == StateClosed
	s.mu.Unlock()
	if closed || sink == nil {
		return
	}

	ev := TrackEvent{
		Kind:    track.Kind().String(),
		Streams: []string{track.StreamID()},
		Track:   track,
	}
	s.log.Debugf("session %s: remote %s track %s (stream %s)", s.id, ev.Kind, track.ID(), track.StreamID())
	detach := sink(ev)
	if detach == nil {
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		detach()
		return
	}
	s.detach = append(s.detach, detach)
	s.mu.Unlock()
}

func (s *Session) handleConnectionState(state webrtc.PeerConnectionState) {
	s.log.Debugf("session %s: connection %s", s.id, state)
	if state != webrtc.PeerConnectionStateFailed {
		return
	}

	s.mu.Lock()
	prev := s.state
	s.mu.Unlock()
	switch prev {
	case StateNegotiating:
		_ = s.closeWith(ErrPeerFailed)
	case StateLive:
		_ = s.closeWith(ErrPeerFailed)
		if s.onFailed != nil {
			go s.onFailed(s, ErrPeerFailed)
		}
	}
}
