package application

import (
	"fmt"
	"log/slog"
	"time"

	"voice-call/internal/domain"
)

// CaptureSession owns the recording side of the device and the utterance
// buffer currently being filled. At most one buffer is open at a time.
type CaptureSession struct {
	device  CaptureDevice
	encoder domain.Encoder
	logger  *slog.Logger
	strict  bool

	buf *domain.UtteranceBuffer
}

// NewCaptureSession creates a session. With strict set, opening a session
// twice is reported as an error instead of being repaired.
func NewCaptureSession(device CaptureDevice, encoder domain.Encoder, strict bool, logger *slog.Logger) *CaptureSession {
	return &CaptureSession{
		device:  device,
		encoder: encoder,
		logger:  logger,
		strict:  strict,
	}
}

func (c *CaptureSession) IsOpen() bool {
	return c.buf != nil
}

// Open starts device recording into a fresh buffer. If a buffer is still open
// it is sealed first and returned so that none of its audio is lost.
func (c *CaptureSession) Open(at time.Time) (*domain.Utterance, error) {
	var previous *domain.Utterance
	if c.buf != nil {
		if c.strict {
			return nil, domain.ErrConcurrentOpen
		}
		c.logger.Error("capture session opened twice, sealing previous buffer", "error", domain.ErrConcurrentOpen)
		u, err := c.Close(at)
		if err != nil {
			return nil, fmt.Errorf("sealing previous session: %w", err)
		}
		previous = u
	}

	if err := c.device.StartRecording(); err != nil {
		return previous, fmt.Errorf("starting recording on %s: %w", c.device.Name(), err)
	}

	c.buf = domain.NewUtteranceBuffer(at)
	return previous, nil
}

func (c *CaptureSession) Write(pcm []int16) error {
	if c.buf == nil {
		return domain.ErrSessionNotOpen
	}
	return c.buf.Append(pcm)
}

// Close stops recording and seals the open buffer. Closing when nothing is
// open returns (nil, nil).
func (c *CaptureSession) Close(at time.Time) (*domain.Utterance, error) {
	if c.buf == nil {
		return nil, nil
	}
	buf := c.buf
	c.buf = nil

	stopErr := c.device.StopRecording()

	u, err := buf.Seal(c.encoder, at)
	if err != nil {
		return nil, err
	}
	if stopErr != nil {
		return u, fmt.Errorf("stopping recording on %s: %w", c.device.Name(), stopErr)
	}
	return u, nil
}

// Discard stops recording and drops the open buffer without sealing it.
func (c *CaptureSession) Discard() error {
	if c.buf == nil {
		return nil
	}
	c.buf = nil

	if err := c.device.StopRecording(); err != nil {
		return fmt.Errorf("stopping recording on %s: %w", c.device.Name(), err)
	}
	return nil
}
