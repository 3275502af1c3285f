package peer

import "errors"

// Package errors.
var (
	// ErrClosed is returned by Start when the session was closed before it
	// went live.
	ErrClosed = errors.New("peer: session closed")

	// ErrPeerFailed is returned when the connection reports the failed state.
	ErrPeerFailed = errors.New("peer: connection failed")

	// ErrStarted is returned when Start is called more than once.
	ErrStarted = errors.New("peer: session already started")

	// ErrIncompleteOffer is returned when the gathered local description lacks
	// a media section for one of the declared transceivers.
	ErrIncompleteOffer = errors.New("peer: offer is missing media sections")
)
