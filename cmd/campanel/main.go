package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campanel/internal/config"
	"campanel/internal/controller"
	"campanel/internal/media"
	"campanel/internal/panel"
	"campanel/internal/peer"
	"campanel/internal/signaling"
	"campanel/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/pion/logging"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = cfg.LogLevel
	log := lf.NewLogger("campanel")

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	client, err := signaling.New(signaling.Config{BaseURL: cfg.ServerURL, LoggerFactory: lf})
	if err != nil {
		return err
	}
	newConn, err := peer.NewConnFactory(peer.ConnConfig{ICEServers: cfg.ICEServers, LoggerFactory: lf})
	if err != nil {
		return err
	}

	view := panel.NewView(panel.ViewConfig{
		Container:     media.NewContainer("videoDiv"),
		RecordDir:     cfg.RecordDir,
		LoggerFactory: lf,
	})
	ctrl, err := controller.New(controller.Config{
		Signaling:      client,
		NewConn:        newConn,
		AudioDirection: cfg.AudioDirection,
		Sink:           view.TrackSink,
		OnChange:       view.Publish,
		LoggerFactory:  lf,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Warnf("close controller: %v", err)
		}
	}()

	// A camera server that is down at startup leaves an empty list; the
	// panel still comes up and reports the error.
	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ctrl.Init(initCtx); err == nil && cfg.Camera != "" {
		if err := ctrl.SelectCamera(initCtx, cfg.Camera); err != nil {
			log.Warnf("startup camera %q: %v", cfg.Camera, err)
		}
	}
	cancel()

	ps := panel.NewServer(panel.Config{View: view, Controller: ctrl, LoggerFactory: lf})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           ps.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Infof("camera panel %s listening on http://%s (camera server %s)", version.String(), srv.Addr, cfg.ServerURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	}

	log.Infof("shutting down")
	ps.Close()
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(ctx)
}
