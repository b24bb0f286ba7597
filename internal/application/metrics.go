package application

import (
	"time"

	"voice-call/internal/domain"
)

// Utterance outcomes reported to Metrics.
const (
	OutcomeAccepted  = "accepted"
	OutcomeTooShort  = "too_short"
	OutcomeDiscarded = "discarded"
)

// Metrics receives pipeline measurements.
type Metrics interface {
	ObserveLevel(level float64)
	SetState(state domain.PipelineState)
	RecordUtterance(outcome string, sizeBytes int, duration time.Duration)
	RecordExchange(status string, duration time.Duration)
}

type NoopMetrics struct{}

func (NoopMetrics) ObserveLevel(float64)                       {}
func (NoopMetrics) SetState(domain.PipelineState)              {}
func (NoopMetrics) RecordUtterance(string, int, time.Duration) {}
func (NoopMetrics) RecordExchange(string, time.Duration)       {}
