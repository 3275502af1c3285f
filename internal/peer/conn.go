package peer

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// RemoteTrack is the part of *webrtc.TrackRemote a session hands to sinks.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Conn is the peer connection a Session drives. NewConnFactory adapts
// *webrtc.PeerConnection to it; peertest provides an in-memory double.
type Conn interface {
	AddTransceiver(kind webrtc.RTPCodecType, dir webrtc.RTPTransceiverDirection) error
	CreateOffer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	// LocalDescription includes the candidates gathered so far.
	LocalDescription() *webrtc.SessionDescription
	SetRemoteDescription(webrtc.SessionDescription) error
	// OnICECandidate handlers receive nil once gathering is complete.
	OnICECandidate(func(*webrtc.ICECandidate))
	OnTrack(func(RemoteTrack))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	Close() error
}

// ConnFactory creates one Conn per session.
type ConnFactory func() (Conn, error)

// ConnConfig configures NewConnFactory.
type ConnConfig struct {
	// ICEServers are STUN/TURN URLs offered to the ICE agent.
	ICEServers []string

	// LoggerFactory is handed to pion's SettingEngine.
	// If nil, pion logs with its defaults.
	LoggerFactory logging.LoggerFactory
}

// NewConnFactory builds the pion API once (default codecs and interceptors)
// and returns a factory of peer connections sharing it.
func NewConnFactory(cfg ConnConfig) (ConnFactory, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("peer: register codecs: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, fmt.Errorf("peer: register interceptors: %w", err)
	}
	se := webrtc.SettingEngine{}
	if cfg.LoggerFactory != nil {
		se.LoggerFactory = cfg.LoggerFactory
	}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	)

	pcCfg := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		pcCfg.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}

	return func() (Conn, error) {
		pc, err := api.NewPeerConnection(pcCfg)
		if err != nil {
			return nil, err
		}
		return &pionConn{pc: pc}, nil
	}, nil
}

// pionConn adapts *webrtc.PeerConnection to Conn.
type pionConn struct {
	pc *webrtc.PeerConnection
}

func (c *pionConn) AddTransceiver(kind webrtc.RTPCodecType, dir webrtc.RTPTransceiverDirection) error {
	_, err := c.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: dir})
	return err
}

func (c *pionConn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *pionConn) SetLocalDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(sd)
}

func (c *pionConn) LocalDescription() *webrtc.SessionDescription {
	return c.pc.LocalDescription()
}

func (c *pionConn) SetRemoteDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(sd)
}

func (c *pionConn) OnICECandidate(f func(*webrtc.ICECandidate)) {
	c.pc.OnICECandidate(f)
}

func (c *pionConn) OnTrack(f func(RemoteTrack)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		f(track)
	})
}

func (c *pionConn) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(f)
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}
