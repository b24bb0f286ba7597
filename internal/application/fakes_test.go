package application_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"voice-call/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDevice replays scripted frames and records recording start/stop calls.
type fakeDevice struct {
	mu         sync.Mutex
	frames     [][]int16
	idx        int
	endErr     error
	beforeRead func(i int)

	startErr    error
	startRecErr error
	recording   bool
	recStarts   int
	recStops    int
	started     bool
	stopped     bool
}

func newFakeDevice(frames [][]int16) *fakeDevice {
	return &fakeDevice{frames: frames, endErr: io.EOF}
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.started = true
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *fakeDevice) ReadFrame(ctx context.Context, frame []int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	i := d.idx
	hook := d.beforeRead
	d.mu.Unlock()

	if hook != nil {
		hook(i)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.idx >= len(d.frames) {
		return d.endErr
	}
	copy(frame, d.frames[d.idx])
	d.idx++
	return nil
}

func (d *fakeDevice) StartRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startRecErr != nil {
		return d.startRecErr
	}
	d.recording = true
	d.recStarts++
	return nil
}

func (d *fakeDevice) StopRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recording = false
	d.recStops++
	return nil
}

func (d *fakeDevice) counts() (starts, stops int, recording bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recStarts, d.recStops, d.recording
}

// pcmEncoder writes samples as little-endian 16-bit PCM with no header.
type pcmEncoder struct{}

func (pcmEncoder) Encode(chunks [][]int16) ([]byte, error) {
	var out []byte
	for _, c := range chunks {
		for _, s := range c {
			out = binary.LittleEndian.AppendUint16(out, uint16(s))
		}
	}
	return out, nil
}

func (pcmEncoder) MediaType() string { return "audio/L16" }

// frameAt builds a frame whose RMS is approximately level.
func frameAt(level float64, size int) []int16 {
	frame := make([]int16, size)
	amp := int16(level * 32768)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = amp
		} else {
			frame[i] = -amp
		}
	}
	return frame
}

func script(size int, runs ...run) [][]int16 {
	var frames [][]int16
	for _, r := range runs {
		for range r.n {
			frames = append(frames, frameAt(r.level, size))
		}
	}
	return frames
}

type run struct {
	level float64
	n     int
}

// stepClock returns a clock that advances by step on every call, so the
// first call yields start+step.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

type handoffs struct {
	mu   sync.Mutex
	list []*domain.Utterance
}

func (h *handoffs) add(u *domain.Utterance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.list = append(h.list, u)
}

func (h *handoffs) all() []*domain.Utterance {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*domain.Utterance(nil), h.list...)
}

// fakeExchange returns a canned reply or error.
type fakeExchange struct {
	mu    sync.Mutex
	reply *domain.Reply
	err   error
	calls int
	gate  chan struct{}
}

func (e *fakeExchange) Exchange(ctx context.Context, _ *domain.Utterance) (*domain.Reply, error) {
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.reply, nil
}

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
	during func()
	err    error
}

func (p *fakePlayer) Play(_ context.Context, audio []byte, _ string) error {
	if p.during != nil {
		p.during()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, audio)
	return p.err
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

// fakeListener stands in for the pipeline in turn controller tests.
type fakeListener struct {
	mu      sync.Mutex
	enabled bool
	history []bool
}

func (l *fakeListener) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
	l.history = append(l.history, enabled)
}

func (l *fakeListener) State() domain.PipelineState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enabled {
		return domain.StateArmed
	}
	return domain.StateIdle
}

func (l *fakeListener) isEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

var errBoom = errors.New("boom")
