package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"campanel/internal/controller"
	"campanel/internal/media"
	"campanel/internal/peer"
	"campanel/internal/signaling"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubController struct {
	mu        sync.Mutex
	state     controller.State
	selectErr error
	selected  []string
	modeErr   error
	modes     []signaling.Mode
	setModes  []int
}

func (c *stubController) State() controller.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *stubController) SelectCamera(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = append(c.selected, id)
	if c.selectErr != nil {
		return c.selectErr
	}
	c.state.Selected = id
	return nil
}

func (c *stubController) Modes(context.Context) ([]signaling.Mode, error) {
	return c.modes, c.modeErr
}

func (c *stubController) CurrentMode(context.Context) (string, error) {
	if c.modeErr != nil {
		return "", c.modeErr
	}
	return c.modes[len(c.modes)-1].Description, nil
}

func (c *stubController) SetMode(_ context.Context, index int) error {
	if c.modeErr != nil {
		return c.modeErr
	}
	c.mu.Lock()
	c.setModes = append(c.setModes, index)
	c.mu.Unlock()
	return nil
}

func newTestServer(ctrl *stubController) (*Server, *View) {
	v := NewView(ViewConfig{Container: media.NewContainer("videoDiv")})
	return NewServer(Config{View: v, Controller: ctrl}), v
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIndexPage(t *testing.T) {
	s, _ := newTestServer(&stubController{})
	w := do(t, s.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	for _, id := range []string{`id="videoDiv"`, `id="camera"`, `id="fps"`, `id="resolution"`} {
		assert.Contains(t, w.Body.String(), id)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(&stubController{})
	w := do(t, s.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "media")
	assert.Contains(t, body, "version")
}

func TestState(t *testing.T) {
	s, v := newTestServer(&stubController{})
	v.Publish(controller.State{Cameras: []string{"", "a"}})

	w := do(t, s.Handler(), http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, []string{"", "a"}, snap.Cameras)
	assert.Equal(t, "videoDiv", snap.Container)
	assert.Equal(t, Controls{FPS: DefaultFPS, Resolution: DefaultResolution}, snap.Controls)
}

func TestSelect(t *testing.T) {
	ctrl := &stubController{}
	s, _ := newTestServer(ctrl)

	w := do(t, s.Handler(), http.MethodPost, "/api/select", `{"camera":"a"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, s.Handler(), http.MethodPost, "/api/select", `{"camera":""}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", ""}, ctrl.selected)

	w = do(t, s.Handler(), http.MethodPost, "/api/select", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s.Handler(), http.MethodPost, "/api/select", `nope`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, ctrl.selected, 2)
}

func TestSelectErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: %q", controller.ErrUnknownCamera, "x"), http.StatusBadRequest},
		{controller.ErrSuperseded, http.StatusConflict},
		{peer.ErrClosed, http.StatusConflict},
		{&signaling.StatusError{Method: "POST", Path: "/stream/cameras/a/start", StatusCode: 500}, http.StatusBadGateway},
		{fmt.Errorf("%w: dial", signaling.ErrUnavailable), http.StatusBadGateway},
		{fmt.Errorf("%w: bad type", signaling.ErrMalformed), http.StatusBadGateway},
		{peer.ErrPeerFailed, http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s, _ := newTestServer(&stubController{selectErr: tc.err})
		w := do(t, s.Handler(), http.MethodPost, "/api/select", `{"camera":"a"}`)
		assert.Equal(t, tc.want, w.Code, tc.err.Error())
		assert.Contains(t, w.Body.String(), "error")
	}
}

func TestControls(t *testing.T) {
	s, v := newTestServer(&stubController{})

	w := do(t, s.Handler(), http.MethodPut, "/api/controls", `{"fps":15}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Controls{FPS: 15, Resolution: DefaultResolution}, v.Controls())

	w = do(t, s.Handler(), http.MethodPut, "/api/controls", `{"fps":15,"resolution":200}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s.Handler(), http.MethodPut, "/api/controls", `{"fps":"fast"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, Controls{FPS: 15, Resolution: DefaultResolution}, v.Controls())
}

func TestModes(t *testing.T) {
	ctrl := &stubController{modes: []signaling.Mode{{Index: 0, Description: "640x480"}, {Index: 1, Description: "1280x720"}}}
	s, _ := newTestServer(ctrl)

	w := do(t, s.Handler(), http.MethodGet, "/api/modes", "")
	require.Equal(t, http.StatusOK, w.Code)
	var modes struct {
		Modes []signaling.Mode `json:"modes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &modes))
	assert.Equal(t, ctrl.modes, modes.Modes)

	w = do(t, s.Handler(), http.MethodGet, "/api/modes/current", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"mode":"1280x720"}`, w.Body.String())

	w = do(t, s.Handler(), http.MethodPut, "/api/modes/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{1}, ctrl.setModes)

	w = do(t, s.Handler(), http.MethodPut, "/api/modes/x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s.Handler(), http.MethodPut, "/api/modes/-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModesWithoutSelection(t *testing.T) {
	s, _ := newTestServer(&stubController{modeErr: controller.ErrNoSelection})
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/modes"},
		{http.MethodGet, "/api/modes/current"},
		{http.MethodPut, "/api/modes/0"},
	} {
		w := do(t, s.Handler(), r.method, r.path, "")
		assert.Equal(t, http.StatusConflict, w.Code, r.path)
	}
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	s, v := newTestServer(&stubController{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "videoDiv", snap.Container)

	require.Eventually(t, func() bool { return v.Hub().Len() == 1 }, time.Second, 5*time.Millisecond)
	v.Publish(controller.State{Cameras: []string{"", "a"}, Selected: "a"})
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "a", snap.Selected)

	s.Close()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "%v", err)
	assert.Eventually(t, func() bool { return v.Hub().Len() == 0 }, time.Second, 5*time.Millisecond)
}
