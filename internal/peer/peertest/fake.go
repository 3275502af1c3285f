// Package peertest provides an in-memory peer.Conn for tests that exercise
// session and controller logic without a network.
package peertest

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"campanel/internal/peer"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// Log records events across fakes in the order they happened.
type Log struct {
	mu     sync.Mutex
	events []string
}

// Add appends an event.
func (l *Log) Add(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (l *Log) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// Conn is a fake peer.Conn. Its offers contain one m= section per added
// transceiver, and SetLocalDescription completes ICE gathering by emitting
// the null candidate (twice, to exercise duplicate completion events) unless
// HoldGathering is set.
type Conn struct {
	Name string
	Log  *Log

	// HoldGathering suppresses the null candidate; call FinishGathering.
	HoldGathering bool
	// Fail* make the corresponding call return an error.
	FailOffer  error
	FailRemote error
	// AfterRemote, if set, runs once the answer is applied.
	AfterRemote func(*Conn)

	mu           sync.Mutex
	transceivers []transceiver
	local        *webrtc.SessionDescription
	remote       *webrtc.SessionDescription
	closed       int
	onICE        func(*webrtc.ICECandidate)
	onTrack      func(peer.RemoteTrack)
	onState      func(webrtc.PeerConnectionState)
}

type transceiver struct {
	kind webrtc.RTPCodecType
	dir  webrtc.RTPTransceiverDirection
}

var _ peer.Conn = (*Conn)(nil)

func (c *Conn) AddTransceiver(kind webrtc.RTPCodecType, dir webrtc.RTPTransceiverDirection) error {
	c.mu.Lock()
	c.transceivers = append(c.transceivers, transceiver{kind: kind, dir: dir})
	c.mu.Unlock()
	return nil
}

func (c *Conn) CreateOffer() (webrtc.SessionDescription, error) {
	if c.FailOffer != nil {
		return webrtc.SessionDescription{}, c.FailOffer
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	b.WriteString("v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n")
	for i, t := range c.transceivers {
		fmt.Fprintf(&b, "m=%s 9 UDP/TLS/RTP/SAVPF %d\r\nc=IN IP4 0.0.0.0\r\na=mid:%d\r\na=%s\r\n", t.kind, 96+i, i, t.dir)
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: b.String()}, nil
}

func (c *Conn) SetLocalDescription(sd webrtc.SessionDescription) error {
	c.mu.Lock()
	c.local = &sd
	hold := c.HoldGathering
	c.mu.Unlock()
	if !hold {
		c.FinishGathering()
	}
	return nil
}

// FinishGathering emits the null candidate twice.
func (c *Conn) FinishGathering() {
	c.mu.Lock()
	f := c.onICE
	c.mu.Unlock()
	if f != nil {
		f(nil)
		f(nil)
	}
}

func (c *Conn) LocalDescription() *webrtc.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

func (c *Conn) SetRemoteDescription(sd webrtc.SessionDescription) error {
	if c.FailRemote != nil {
		return c.FailRemote
	}
	c.mu.Lock()
	c.remote = &sd
	c.mu.Unlock()
	if c.AfterRemote != nil {
		c.AfterRemote(c)
	}
	return nil
}

// RemoteDescription returns the applied answer, if any.
func (c *Conn) RemoteDescription() *webrtc.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

func (c *Conn) OnICECandidate(f func(*webrtc.ICECandidate)) {
	c.mu.Lock()
	c.onICE = f
	c.mu.Unlock()
}

func (c *Conn) OnTrack(f func(peer.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = f
	c.mu.Unlock()
}

func (c *Conn) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	c.onState = f
	c.mu.Unlock()
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	c.Log.Add("close %s", c.Name)
	return nil
}

// Closed reports how many times Close was called.
func (c *Conn) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Transceivers returns the declared transceiver kinds and directions.
func (c *Conn) Transceivers() map[string]webrtc.RTPTransceiverDirection {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]webrtc.RTPTransceiverDirection, len(c.transceivers))
	for _, t := range c.transceivers {
		out[t.kind.String()] = t.dir
	}
	return out
}

// EmitTrack delivers a remote track to the registered handler.
func (c *Conn) EmitTrack(t peer.RemoteTrack) {
	c.mu.Lock()
	f := c.onTrack
	c.mu.Unlock()
	if f != nil {
		f(t)
	}
}

// EmitState delivers a connection state change.
func (c *Conn) EmitState(st webrtc.PeerConnectionState) {
	c.mu.Lock()
	f := c.onState
	c.mu.Unlock()
	if f != nil {
		f(st)
	}
}

// Factory hands out Conns and remembers them.
type Factory struct {
	Log *Log
	// Prepare, if set, adjusts each Conn before use.
	Prepare func(*Conn)
	// Fail makes New return an error.
	Fail error

	mu    sync.Mutex
	conns []*Conn
}

// New implements peer.ConnFactory.
func (f *Factory) New() (peer.Conn, error) {
	if f.Fail != nil {
		return nil, f.Fail
	}
	f.mu.Lock()
	c := &Conn{Name: fmt.Sprintf("conn%d", len(f.conns)+1), Log: f.Log}
	f.conns = append(f.conns, c)
	f.mu.Unlock()
	if f.Prepare != nil {
		f.Prepare(c)
	}
	f.Log.Add("new %s", c.Name)
	return c, nil
}

// Conns returns every Conn created so far.
func (f *Factory) Conns() []*Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Conn(nil), f.conns...)
}

// Open counts Conns that were never closed.
func (f *Factory) Open() int {
	n := 0
	for _, c := range f.Conns() {
		if c.Closed() == 0 {
			n++
		}
	}
	return n
}

// Track is a fake peer.RemoteTrack serving queued packets, then io.EOF.
type Track struct {
	TrackID  string
	Stream   string
	Type     webrtc.RTPCodecType
	MimeType string

	once    sync.Once
	packets chan *rtp.Packet
}

var _ peer.RemoteTrack = (*Track)(nil)

// NewTrack returns a track that serves pkts and then ends.
func NewTrack(kind webrtc.RTPCodecType, mime, stream string, pkts ...*rtp.Packet) *Track {
	t := &Track{
		TrackID:  kind.String() + "-" + stream,
		Stream:   stream,
		Type:     kind,
		MimeType: mime,
		packets:  make(chan *rtp.Packet, len(pkts)),
	}
	for _, p := range pkts {
		t.packets <- p
	}
	t.End()
	return t
}

// NewLiveTrack returns a track whose ReadRTP blocks until Push or End.
func NewLiveTrack(kind webrtc.RTPCodecType, mime, stream string) *Track {
	return &Track{
		TrackID:  kind.String() + "-" + stream,
		Stream:   stream,
		Type:     kind,
		MimeType: mime,
		packets:  make(chan *rtp.Packet, 64),
	}
}

// Push queues one packet on a live track.
func (t *Track) Push(p *rtp.Packet) { t.packets <- p }

// End makes ReadRTP return io.EOF once queued packets are drained.
func (t *Track) End() { t.once.Do(func() { close(t.packets) }) }

func (t *Track) ID() string                { return t.TrackID }
func (t *Track) StreamID() string          { return t.Stream }
func (t *Track) Kind() webrtc.RTPCodecType { return t.Type }

func (t *Track) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: t.MimeType}}
}

func (t *Track) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	p, ok := <-t.packets
	if !ok {
		return nil, nil, io.EOF
	}
	return p, interceptor.Attributes{}, nil
}

// ErrInjected is a convenience error for Fail* fields.
var ErrInjected = errors.New("peertest: injected failure")
