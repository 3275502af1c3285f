package media

import "sync/atomic"

// Process-wide counters across every element, exposed on /health.
// Intended to observe backpressure on recording (dropped packets).
var (
	packetsIn       atomic.Uint64 // RTP packets read from remote tracks
	bytesIn         atomic.Uint64 // RTP payload bytes read
	packetsRecorded atomic.Uint64 // packets written to a recording
	packetsDropped  atomic.Uint64 // packets skipped because the recorder queue was full
)

// ResetCounters resets all metrics to zero.
func ResetCounters() {
	packetsIn.Store(0)
	bytesIn.Store(0)
	packetsRecorded.Store(0)
	packetsDropped.Store(0)
}

// GetCounters returns a snapshot of current metrics.
func GetCounters() map[string]uint64 {
	return map[string]uint64{
		"packets_in":       packetsIn.Load(),
		"bytes_in":         bytesIn.Load(),
		"packets_recorded": packetsRecorded.Load(),
		"packets_dropped":  packetsDropped.Load(),
	}
}

func incPacketsIn(payload int) {
	packetsIn.Add(1)
	if payload > 0 {
		bytesIn.Add(uint64(payload))
	}
}
func incPacketsRecorded() { packetsRecorded.Add(1) }
func incPacketsDropped()  { packetsDropped.Add(1) }
