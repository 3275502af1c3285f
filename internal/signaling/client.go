package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"campanel/internal/version"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v3"
)

// maxBodySize bounds every response body read from the camera server.
const maxBodySize = 1 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the camera server root, e.g. "http://localhost:3600".
	// Required.
	BaseURL string

	// HTTPClient is used for every request. Defaults to a client without a
	// timeout; callers bound requests through the context.
	HTTPClient *http.Client

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Client talks to the camera server's /stream API. It keeps no state
// between calls and never retries.
type Client struct {
	base string
	http *http.Client
	log  logging.LeveledLogger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("signaling: invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("signaling: invalid base URL %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	c := &Client{
		base: strings.TrimRight(u.String(), "/"),
		http: hc,
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		f := logging.NewDefaultLoggerFactory()
		f.DefaultLogLevel = logging.LogLevelDisabled
		lf = f
	}
	c.log = lf.NewLogger("signaling")
	return c, nil
}

// cameraPath returns the escaped path for a camera resource. The id is a
// single path segment, so slashes inside it are escaped.
func cameraPath(cameraID string, suffix ...string) string {
	p := "/stream/cameras/" + url.PathEscape(cameraID)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// ListCameras fetches the ids of the cameras the server exposes.
func (c *Client) ListCameras(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/stream/cameras", nil)
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: camera list: %v", ErrMalformed, err)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: camera list is not an array", ErrMalformed)
	}
	cameras := make([]string, 0, len(items))
	for i, item := range items {
		id, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: camera list element %d is not a string", ErrMalformed, i)
		}
		cameras = append(cameras, id)
	}
	c.log.Debugf("discovered %d camera(s)", len(cameras))
	return cameras, nil
}

// sessionDescription is the wire form of webrtc.SessionDescription.
type sessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// StartCamera posts the complete local description for cameraID and returns
// the server's remote description.
func (c *Client) StartCamera(ctx context.Context, cameraID string, local webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if cameraID == "" {
		return webrtc.SessionDescription{}, ErrEmptyCamera
	}
	payload, err := json.Marshal(sessionDescription{Type: local.Type.String(), SDP: local.SDP})
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("signaling: encode offer: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, cameraPath(cameraID, "start"), payload)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	var sd sessionDescription
	if err := json.Unmarshal(body, &sd); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: session description: %v", ErrMalformed, err)
	}
	typ := webrtc.NewSDPType(sd.Type)
	switch typ {
	case webrtc.SDPTypeOffer, webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer, webrtc.SDPTypeRollback:
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("%w: unknown description type %q", ErrMalformed, sd.Type)
	}
	if sd.SDP == "" && typ != webrtc.SDPTypeRollback {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %s without sdp", ErrMalformed, typ)
	}
	c.log.Debugf("camera %q: received %s (%d bytes)", cameraID, typ, len(sd.SDP))
	return webrtc.SessionDescription{Type: typ, SDP: sd.SDP}, nil
}

// do performs one request and returns the response body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("signaling: build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Tracef("%s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: read body: %w", ErrUnavailable, method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warnf("%s %s: status %d", method, path, resp.StatusCode)
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       excerpt(body),
		}
	}
	return body, nil
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
