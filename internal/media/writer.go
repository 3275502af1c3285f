package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media/h264writer"
	"github.com/pion/webrtc/v3/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
)

// packetWriter is implemented by pion's media writers.
type packetWriter interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// newRecorder opens a container file for codec under dir. It returns a nil
// writer for codecs without a container format.
func newRecorder(dir, name, codec string) (packetWriter, string, error) {
	var ext string
	switch {
	case strings.EqualFold(codec, webrtc.MimeTypeVP8):
		ext = ".ivf"
	case strings.EqualFold(codec, webrtc.MimeTypeH264):
		ext = ".h264"
	case strings.EqualFold(codec, webrtc.MimeTypeOpus):
		ext = ".ogg"
	default:
		return nil, "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("media: create record dir: %w", err)
	}
	path := filepath.Join(dir, name+ext)

	var (
		w   packetWriter
		err error
	)
	switch ext {
	case ".ivf":
		w, err = ivfwriter.New(path)
	case ".h264":
		w, err = h264writer.New(path)
	case ".ogg":
		w, err = oggwriter.New(path, 48000, 2)
	}
	if err != nil {
		return nil, "", fmt.Errorf("media: open %s: %w", path, err)
	}
	return w, path, nil
}

// asyncPacketWriter moves container writes off the RTP read loop so disk
// stalls never back up the track. Writes are best-effort; if the queue is
// full, the packet is dropped.
type asyncPacketWriter struct {
	ch   chan *rtp.Packet
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// newAsyncPacketWriter starts the writer goroutine and returns a non-blocking
// enqueue function along with a stop function. stop closes w and waits for
// the goroutine to exit.
func newAsyncPacketWriter(w packetWriter, log logging.LeveledLogger) (enqueue func(*rtp.Packet) bool, stop func()) {
	aw := &asyncPacketWriter{
		ch:   make(chan *rtp.Packet, 64),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(aw.done)
		defer func() {
			if err := w.Close(); err != nil {
				log.Warnf("close recording: %v", err)
			}
		}()
		for {
			select {
			case p := <-aw.ch:
				if err := w.WriteRTP(p); err != nil {
					log.Debugf("write rtp: %v", err)
					continue
				}
				incPacketsRecorded()
			case <-aw.quit:
				return
			}
		}
	}()
	enqueue = func(p *rtp.Packet) bool {
		select {
		case <-aw.quit:
			return false
		default:
		}
		select {
		case aw.ch <- p:
			return true
		default:
			return false
		}
	}
	stop = func() {
		aw.once.Do(func() { close(aw.quit) })
		<-aw.done
	}
	return enqueue, stop
}
