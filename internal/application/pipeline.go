package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"voice-call/internal/domain"
)

type PipelineConfig struct {
	Segmenter SegmenterConfig
	Format    AudioFormat
	// MinUtteranceBytes is the size an encoded utterance must exceed to be
	// handed off. Shorter ones are dropped silently.
	MinUtteranceBytes int
	// StrictInvariants turns internal invariant breaches into errors.
	StrictInvariants bool
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Segmenter:         DefaultSegmenterConfig(),
		Format:            DefaultAudioFormat(),
		MinUtteranceBytes: 10000,
	}
}

// Pipeline runs the audio loop: every frame read from the device is measured,
// fed to the segmenter, and recorded while an utterance is open. All state is
// guarded by a single mutex so that SetEnabled can be called from any
// goroutine.
type Pipeline struct {
	device   CaptureDevice
	monitor  *Monitor
	minBytes int
	logger   *slog.Logger
	metrics  Metrics
	errs     chan<- error

	mu      sync.Mutex
	seg     *Segmenter
	session *CaptureSession
	enabled bool
	handoff func(*domain.Utterance)
}

func NewPipeline(
	device CaptureDevice,
	encoder domain.Encoder,
	cfg PipelineConfig,
	metrics Metrics,
	errs chan<- error,
	logger *slog.Logger,
) *Pipeline {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Pipeline{
		device:   device,
		monitor:  NewMonitor(device, cfg.Format.FrameSize, nil),
		minBytes: cfg.MinUtteranceBytes,
		logger:   logger,
		metrics:  metrics,
		errs:     errs,
		seg:      NewSegmenter(cfg.Segmenter),
		session:  NewCaptureSession(device, encoder, cfg.StrictInvariants, logger),
	}
}

// WithClock replaces the time source used to stamp samples. Call before Run.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.monitor = NewMonitor(p.device, p.monitor.frameSize, now)
	return p
}

// SetHandoff registers the receiver of accepted utterances. Call before Run.
func (p *Pipeline) SetHandoff(fn func(*domain.Utterance)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handoff = fn
}

func (p *Pipeline) State() domain.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seg.State()
}

func (p *Pipeline) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// SetEnabled arms or idles the pipeline. Disabling abandons any utterance in
// progress and stops device recording before returning.
func (p *Pipeline) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer func() {
		state := p.seg.State()
		p.mu.Unlock()
		p.metrics.SetState(state)
	}()

	if p.enabled != enabled {
		p.logger.Debug("pipeline enablement changed", "enabled", enabled)
	}
	p.enabled = enabled

	if enabled {
		p.seg.Enable()
		return
	}

	action := p.seg.Disable()
	if action != ActionDiscard && !p.session.IsOpen() {
		return
	}
	if err := p.session.Discard(); err != nil {
		p.logger.Warn("stopping recording on disable", "error", err)
		p.report(err)
	}
	p.metrics.RecordUtterance(OutcomeDiscarded, 0, 0)
	p.logger.Info("utterance discarded, pipeline disabled")
}

// Run starts the device and processes frames until ctx is cancelled or the
// device fails. A device failure is returned wrapped in
// domain.ErrDeviceUnavailable.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.device.Start(ctx); err != nil {
		return fmt.Errorf("%w: starting %s: %w", domain.ErrDeviceUnavailable, p.device.Name(), err)
	}
	defer func() {
		p.shutdown()
		if err := p.device.Stop(); err != nil {
			p.logger.Warn("stopping capture device", "error", err)
		}
	}()

	p.logger.Info("pipeline running", "device", p.device.Name())

	for sample, err := range p.monitor.Samples(ctx) {
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.logger.Info("capture stream ended", "device", p.device.Name())
				return nil
			}
			return err
		}
		if err := p.process(sample); err != nil {
			return err
		}
	}

	return ctx.Err()
}

func (p *Pipeline) process(sample domain.Sample) error {
	p.metrics.ObserveLevel(sample.Level)

	p.mu.Lock()
	ready, err := p.step(sample)
	state := p.seg.State()
	handoff := p.handoff
	p.mu.Unlock()

	p.metrics.SetState(state)
	for _, u := range ready {
		p.deliver(u, handoff)
	}
	return err
}

// step must be called with p.mu held.
func (p *Pipeline) step(sample domain.Sample) ([]*domain.Utterance, error) {
	if p.seg.State() == domain.StateIdle {
		return nil, nil
	}

	var ready []*domain.Utterance

	switch p.seg.Observe(sample.Level, sample.At) {
	case ActionStart:
		p.logger.Debug("speech started", "level", sample.Level)
		previous, err := p.session.Open(sample.At)
		if previous != nil {
			ready = append(ready, previous)
		}
		if err != nil {
			if errors.Is(err, domain.ErrConcurrentOpen) {
				return ready, err
			}
			p.fail(err)
			return ready, nil
		}
		p.write(sample.PCM)

	case ActionFinish:
		p.write(sample.PCM)
		u, err := p.session.Close(sample.At)
		if u != nil {
			ready = append(ready, u)
		}
		if err != nil {
			p.fail(err)
		}
		p.logger.Debug("speech ended")

	default:
		if p.seg.State().Capturing() {
			p.write(sample.PCM)
		}
	}

	return ready, nil
}

func (p *Pipeline) write(pcm []int16) {
	if err := p.session.Write(pcm); err != nil {
		p.logger.Error("writing frame to utterance buffer", "error", err)
	}
}

// fail drops back to Idle after a device-level recording error.
func (p *Pipeline) fail(err error) {
	p.logger.Error("recording failed, pipeline idle", "error", err)
	if discardErr := p.session.Discard(); discardErr != nil {
		p.logger.Warn("discarding after failure", "error", discardErr)
	}
	p.seg.Reset()
	p.report(err)
}

func (p *Pipeline) deliver(u *domain.Utterance, handoff func(*domain.Utterance)) {
	if u.Size() <= p.minBytes {
		p.logger.Debug("utterance too short, dropped", "bytes", u.Size(), "min_bytes", p.minBytes)
		p.metrics.RecordUtterance(OutcomeTooShort, u.Size(), u.Duration())
		return
	}

	p.metrics.RecordUtterance(OutcomeAccepted, u.Size(), u.Duration())
	p.logger.Info("utterance ready",
		"id", u.ID,
		"bytes", u.Size(),
		"duration", u.Duration(),
	)

	if handoff != nil {
		handoff(u)
	}
}

func (p *Pipeline) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seg.Reset()
	if err := p.session.Discard(); err != nil {
		p.logger.Warn("discarding on shutdown", "error", err)
	}
}

func (p *Pipeline) report(err error) {
	if p.errs == nil {
		return
	}
	select {
	case p.errs <- err:
	default:
		p.logger.Warn("error channel full, dropping error", "error", err)
	}
}
