package application

import (
	"context"
	"time"

	"voice-call/internal/domain"
)

// CaptureDevice is the live microphone. Echo cancellation, noise suppression
// and gain control are expected to be handled by the device layer.
type CaptureDevice interface {
	Start(ctx context.Context) error
	Stop() error
	// ReadFrame blocks until frame is filled with the next window of samples.
	ReadFrame(ctx context.Context, frame []int16) error
	StartRecording() error
	StopRecording() error
	Name() string
}

type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
	FrameSize  int
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
		FrameSize:  2048,
	}
}

// FrameDuration is the wall-clock span of one analysis window.
func (f AudioFormat) FrameDuration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.FrameSize) * time.Second / time.Duration(f.SampleRate)
}

// Exchange sends a sealed utterance to the remote service and returns its reply.
type Exchange interface {
	Exchange(ctx context.Context, u *domain.Utterance) (*domain.Reply, error)
}

// Player plays reply audio and returns once playback has finished.
type Player interface {
	Play(ctx context.Context, audio []byte, mediaType string) error
}

type NoopPlayer struct{}

func (NoopPlayer) Play(_ context.Context, _ []byte, _ string) error {
	return nil
}
