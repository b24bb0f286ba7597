package domain

import "errors"

var (
	// ErrDeviceUnavailable is fatal to the pipeline: permission denied,
	// hardware missing or the capture stream went away.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrExchangeFailure marks a failed utterance round trip to the remote
	// service. The utterance is dropped and the pipeline keeps listening.
	ErrExchangeFailure = errors.New("utterance exchange failed")

	// ErrConcurrentOpen is raised when a capture session is opened while
	// another one is still open.
	ErrConcurrentOpen = errors.New("capture session already open")

	ErrSessionNotOpen   = errors.New("capture session not open")
	ErrBufferSealed     = errors.New("utterance buffer sealed")
	ErrMonitorExhausted = errors.New("signal monitor already consumed")
)
