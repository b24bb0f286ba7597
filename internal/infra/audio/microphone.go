//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var errMicrophoneNotStarted = errors.New("microphone not started")

// MicrophoneSource reads the default input device through PortAudio. Echo
// cancellation, noise suppression and gain control are left to the OS audio
// stack.
type MicrophoneSource struct {
	sampleRate int
	frameSize  int
	logger     *slog.Logger

	mu        sync.Mutex
	stream    *portaudio.Stream
	buffer    []int16
	recording bool
}

func NewMicrophoneSource(sampleRate, frameSize int, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		logger:     logger,
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	inputChannels := 1
	outputChannels := 0

	m.buffer = make([]int16, m.frameSize)

	stream, err := portaudio.OpenDefaultStream(
		inputChannels,
		outputChannels,
		float64(m.sampleRate),
		m.frameSize,
		m.buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting stream: %w", err)
	}

	m.stream = stream
	m.logger.Info("microphone started", "sampleRate", m.sampleRate, "frameSize", m.frameSize)
	return nil
}

func (m *MicrophoneSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	var errs []error
	if err := m.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping stream: %w", err))
	}
	if err := m.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminating portaudio: %w", err))
	}

	m.stream = nil
	m.recording = false
	return errors.Join(errs...)
}

// ReadFrame blocks until PortAudio has delivered one buffer of input.
func (m *MicrophoneSource) ReadFrame(ctx context.Context, frame []int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	stream := m.stream
	m.mu.Unlock()

	if stream == nil {
		return errMicrophoneNotStarted
	}

	if err := stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			m.logger.Debug("input overflowed, frame kept")
		} else {
			return fmt.Errorf("reading from stream: %w", err)
		}
	}

	copy(frame, m.buffer)
	return nil
}

// StartRecording marks the stream as recording. Frames keep flowing through
// ReadFrame either way; the flag guards the one-writer invariant.
func (m *MicrophoneSource) StartRecording() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return errMicrophoneNotStarted
	}
	if m.recording {
		return errors.New("microphone already recording")
	}
	m.recording = true
	return nil
}

func (m *MicrophoneSource) StopRecording() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recording = false
	return nil
}
