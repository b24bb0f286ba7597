package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"voice-call/internal/application"
	"voice-call/internal/domain"
	"voice-call/internal/infra/metrics"
)

var _ application.Metrics = (*metrics.Metrics)(nil)

func TestMetrics_State(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.SetState(domain.StateRecording)
	m.SetState(domain.StateDraining)

	if got := testutil.ToFloat64(m.PipelineState.WithLabelValues("draining")); got != 1 {
		t.Errorf("draining: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PipelineState.WithLabelValues("recording")); got != 0 {
		t.Errorf("recording: got %v, want 0", got)
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveLevel(0.01)
	m.ObserveLevel(0.3)
	m.RecordUtterance(application.OutcomeAccepted, 20000, 2*time.Second)
	m.RecordUtterance(application.OutcomeTooShort, 8000, 200*time.Millisecond)
	m.RecordUtterance(application.OutcomeDiscarded, 0, 0)
	m.RecordExchange("ok", time.Second)
	m.RecordExchange("error", time.Second)

	if got := testutil.ToFloat64(m.FramesProcessed); got != 2 {
		t.Errorf("frames: got %v, want 2", got)
	}
	for _, outcome := range []string{application.OutcomeAccepted, application.OutcomeTooShort, application.OutcomeDiscarded} {
		if got := testutil.ToFloat64(m.Utterances.WithLabelValues(outcome)); got != 1 {
			t.Errorf("utterances[%s]: got %v, want 1", outcome, got)
		}
	}
	if got := testutil.CollectAndCount(m.UtteranceSize); got != 1 {
		t.Errorf("utterance size series: got %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.ExchangeRequests.WithLabelValues("error")); got != 1 {
		t.Errorf("exchange errors: got %v, want 1", got)
	}
}
