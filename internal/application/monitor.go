package application

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"sync/atomic"
	"time"

	"voice-call/internal/domain"
)

// Monitor reads fixed-size frames from a capture device and measures their
// loudness.
type Monitor struct {
	device    CaptureDevice
	frameSize int
	now       func() time.Time
	consumed  atomic.Bool
}

func NewMonitor(device CaptureDevice, frameSize int, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		device:    device,
		frameSize: frameSize,
		now:       now,
	}
}

// Samples yields one loudness sample per frame until the device fails or ctx
// is cancelled. The sequence can be ranged over only once.
func (m *Monitor) Samples(ctx context.Context) iter.Seq2[domain.Sample, error] {
	return func(yield func(domain.Sample, error) bool) {
		if !m.consumed.CompareAndSwap(false, true) {
			yield(domain.Sample{}, domain.ErrMonitorExhausted)
			return
		}

		for {
			if ctx.Err() != nil {
				return
			}

			frame := make([]int16, m.frameSize)
			if err := m.device.ReadFrame(ctx, frame); err != nil {
				if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
					return
				}
				yield(domain.Sample{}, fmt.Errorf("%w: reading from %s: %w", domain.ErrDeviceUnavailable, m.device.Name(), err))
				return
			}

			sample := domain.Sample{
				Level: RMS(frame),
				At:    m.now(),
				PCM:   frame,
			}
			if !yield(sample, nil) {
				return
			}
		}
	}
}

// RMS returns the root mean square of frame with each sample normalised to
// [-1, 1].
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
