package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voice-call/internal/domain"
)

// Listener is the part of the pipeline the turn controller drives.
type Listener interface {
	SetEnabled(enabled bool)
	State() domain.PipelineState
}

// Turn is the text of the last completed exchange.
type Turn struct {
	UtteranceID string
	UserText    string
	AIText      string
	At          time.Time
}

// Status is a point-in-time view of the controller for the presentation layer.
type Status struct {
	State      domain.PipelineState
	Enabled    bool
	Muted      bool
	AISpeaking bool
	LastTurn   *Turn
}

// TurnController decides when the pipeline may listen and carries accepted
// utterances through the remote exchange and reply playback. Exchanges run on
// their own goroutines so the audio loop never waits on the network.
type TurnController struct {
	listener Listener
	exchange Exchange
	player   Player
	notifier Notifier
	metrics  Metrics
	errs     chan<- error
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	enabled    bool
	muted      bool
	aiSpeaking bool
	lastTurn   *Turn
}

func NewTurnController(
	listener Listener,
	exchange Exchange,
	player Player,
	notifier Notifier,
	metrics Metrics,
	errs chan<- error,
	logger *slog.Logger,
) *TurnController {
	if player == nil {
		player = NoopPlayer{}
	}
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TurnController{
		listener: listener,
		exchange: exchange,
		player:   player,
		notifier: notifier,
		metrics:  metrics,
		errs:     errs,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetEnabled is the call-level switch (call connected, user wants to talk).
func (t *TurnController) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	t.apply()
}

func (t *TurnController) SetMuted(muted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.muted = muted
	t.apply()
}

func (t *TurnController) SetAISpeaking(speaking bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aiSpeaking = speaking
	t.apply()
}

// apply must be called with t.mu held.
func (t *TurnController) apply() {
	t.listener.SetEnabled(t.enabled && !t.muted && !t.aiSpeaking)
}

func (t *TurnController) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{
		State:      t.listener.State(),
		Enabled:    t.enabled,
		Muted:      t.muted,
		AISpeaking: t.aiSpeaking,
	}
	if t.lastTurn != nil {
		turn := *t.lastTurn
		s.LastTurn = &turn
	}
	return s
}

// OnUtteranceReady hands a sealed utterance to the remote exchange. It returns
// immediately.
func (t *TurnController) OnUtteranceReady(u *domain.Utterance) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.runTurn(u)
	}()
}

// Wait blocks until all in-flight exchanges and playbacks have finished.
func (t *TurnController) Wait() {
	t.wg.Wait()
}

// Close cancels in-flight exchanges and waits for them to return.
func (t *TurnController) Close() {
	t.cancel()
	t.wg.Wait()
}

func (t *TurnController) runTurn(u *domain.Utterance) {
	logger := t.logger.With("utterance", u.ID)

	start := time.Now()
	reply, err := t.exchange.Exchange(t.ctx, u)
	elapsed := time.Since(start)
	if err != nil {
		t.metrics.RecordExchange("error", elapsed)
		if !errors.Is(err, domain.ErrExchangeFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrExchangeFailure, err)
		}
		logger.Error("exchanging utterance", "error", err, "elapsed", elapsed)
		t.report(err)
		return
	}
	t.metrics.RecordExchange("ok", elapsed)

	logger.Info("reply received",
		"user_text", reply.UserText,
		"ai_text", reply.AIText,
		"audio_bytes", len(reply.Audio),
		"elapsed", elapsed,
	)

	if !t.beginReply(u, reply) {
		logger.Info("reply ignored, pipeline not listening")
		return
	}

	if err := t.notifier.Notify(t.ctx, formatTranscript(reply)); err != nil {
		logger.Error("notifying transcript", "error", err)
	}

	if len(reply.Audio) > 0 {
		if err := t.player.Play(t.ctx, reply.Audio, reply.MediaType); err != nil {
			logger.Error("playing reply", "error", err)
			t.report(fmt.Errorf("playing reply: %w", err))
		}
	}

	t.SetAISpeaking(false)
}

// beginReply records the turn and disables listening for the playback. It
// refuses when the pipeline went idle meanwhile or another reply is playing.
func (t *TurnController) beginReply(u *domain.Utterance, reply *domain.Reply) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.aiSpeaking || t.listener.State() == domain.StateIdle {
		return false
	}

	t.lastTurn = &Turn{
		UtteranceID: u.ID,
		UserText:    reply.UserText,
		AIText:      reply.AIText,
		At:          time.Now(),
	}
	t.aiSpeaking = true
	t.apply()
	return true
}

func (t *TurnController) report(err error) {
	if t.errs == nil {
		return
	}
	select {
	case t.errs <- err:
	default:
		t.logger.Warn("error channel full, dropping error", "error", err)
	}
}

func formatTranscript(reply *domain.Reply) string {
	return fmt.Sprintf("You: %s\nAI: %s", reply.UserText, reply.AIText)
}
