package panel

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"campanel/internal/controller"
	"campanel/internal/media"
	"campanel/internal/peer"
	"campanel/internal/signaling"
	"campanel/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/pion/logging"
)

// Controller is what the panel drives. *controller.Controller implements it.
type Controller interface {
	State() controller.State
	SelectCamera(ctx context.Context, cameraID string) error
	Modes(ctx context.Context) ([]signaling.Mode, error)
	CurrentMode(ctx context.Context) (string, error)
	SetMode(ctx context.Context, index int) error
}

type Config struct {
	View       *View
	Controller Controller

	LoggerFactory logging.LoggerFactory
}

// Server serves the panel page, its JSON API and the state websocket.
type Server struct {
	view   *View
	ctrl   Controller
	log    logging.LeveledLogger
	engine *gin.Engine
}

func NewServer(cfg Config) *Server {
	lf := cfg.LoggerFactory
	if lf == nil {
		f := logging.NewDefaultLoggerFactory()
		f.DefaultLogLevel = logging.LogLevelDisabled
		lf = f
	}
	s := &Server{
		view:   cfg.View,
		ctrl:   cfg.Controller,
		log:    lf.NewLogger("panel"),
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger(s.log))
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Close disconnects websocket subscribers.
func (s *Server) Close() {
	s.view.Hub().Close()
}

func (s *Server) registerRoutes() {
	r := s.engine
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
	})
	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWS)

	api := r.Group("/api")
	{
		api.GET("/state", func(c *gin.Context) {
			c.JSON(http.StatusOK, s.view.Snapshot())
		})
		api.POST("/select", s.handleSelect)
		api.PUT("/controls", s.handleControls)
		api.GET("/modes", s.handleModes)
		api.GET("/modes/current", s.handleCurrentMode)
		api.PUT("/modes/:index", s.handleSetMode)
	}
}

func requestLogger(log logging.LeveledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			log.Warnf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
			return
		}
		log.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.view.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"version":     version.String(),
		"selected":    snap.Selected,
		"elements":    len(snap.Elements),
		"subscribers": s.view.Hub().Len(),
		"media":       media.GetCounters(),
	})
}

// POST /api/select { "camera": "front" }; "" deselects.
func (s *Server) handleSelect(c *gin.Context) {
	var body struct {
		Camera *string `json:"camera"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Camera == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON or missing 'camera'"})
		return
	}
	// Negotiation outlives the request; the operator leaving the page must
	// not tear the session down.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := s.ctrl.SelectCamera(ctx, *body.Camera); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s.view.Snapshot())
}

// PUT /api/controls { "fps": 30, "resolution": 50 }
func (s *Server) handleControls(c *gin.Context) {
	ctl := s.view.Controls()
	if err := c.ShouldBindJSON(&ctl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.view.SetControls(ctl); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, ctl)
}

func (s *Server) handleModes(c *gin.Context) {
	modes, err := s.ctrl.Modes(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modes": modes})
}

func (s *Server) handleCurrentMode(c *gin.Context) {
	mode, err := s.ctrl.CurrentMode(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode})
}

func (s *Server) handleSetMode(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode index must be a non-negative integer"})
		return
	}
	if err := s.ctrl.SetMode(c.Request.Context(), index); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "index": index})
}

func (s *Server) abort(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warnf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrUnknownCamera),
		errors.Is(err, ErrInvalidControls):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrSuperseded),
		errors.Is(err, controller.ErrNoSelection),
		errors.Is(err, peer.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, signaling.ErrUnavailable),
		errors.Is(err, signaling.ErrRejected),
		errors.Is(err, signaling.ErrMalformed),
		errors.Is(err, peer.ErrPeerFailed),
		errors.Is(err, peer.ErrIncompleteOffer):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
