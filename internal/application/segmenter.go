package application

import (
	"time"

	"voice-call/internal/domain"
)

// Action is what the segmenter asks the capture session to do after a
// transition.
type Action int

const (
	ActionNone Action = iota
	// ActionStart opens a new utterance buffer and starts device recording.
	ActionStart
	// ActionFinish stops recording and seals the open buffer for handoff.
	ActionFinish
	// ActionDiscard stops recording and drops the open buffer.
	ActionDiscard
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionFinish:
		return "finish"
	case ActionDiscard:
		return "discard"
	default:
		return "none"
	}
}

type SegmenterConfig struct {
	VoiceThreshold  float64
	SilenceDuration time.Duration
	// RestartDelay is how long the segmenter ignores input after finishing an
	// utterance before it may start the next one.
	RestartDelay time.Duration
}

func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		VoiceThreshold:  0.02,
		SilenceDuration: 1500 * time.Millisecond,
	}
}

// Segmenter decides utterance boundaries from a stream of loudness levels. It
// performs no I/O and is not safe for concurrent use.
type Segmenter struct {
	cfg      SegmenterConfig
	state    domain.PipelineState
	deadline time.Time
	rearmAt  time.Time
}

func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	return &Segmenter{cfg: cfg}
}

func (s *Segmenter) State() domain.PipelineState {
	return s.state
}

// Deadline is when the current silence hold expires. Zero unless capturing.
func (s *Segmenter) Deadline() time.Time {
	if !s.state.Capturing() {
		return time.Time{}
	}
	return s.deadline
}

func (s *Segmenter) Enable() {
	if s.state == domain.StateIdle {
		s.state = domain.StateArmed
		s.rearmAt = time.Time{}
	}
}

// Disable moves to Idle from any state. An open utterance is abandoned.
func (s *Segmenter) Disable() Action {
	wasCapturing := s.state.Capturing()
	s.Reset()
	if wasCapturing {
		return ActionDiscard
	}
	return ActionNone
}

// Reset forces Idle without asking for any capture action.
func (s *Segmenter) Reset() {
	s.state = domain.StateIdle
	s.deadline = time.Time{}
	s.rearmAt = time.Time{}
}

// Observe feeds one loudness level measured at time at.
func (s *Segmenter) Observe(level float64, at time.Time) Action {
	loud := level > s.cfg.VoiceThreshold

	switch s.state {
	case domain.StateArmed:
		if !loud || at.Before(s.rearmAt) {
			return ActionNone
		}
		s.state = domain.StateRecording
		s.deadline = at.Add(s.cfg.SilenceDuration)
		return ActionStart

	case domain.StateRecording, domain.StateDraining:
		if loud {
			s.state = domain.StateRecording
			s.deadline = at.Add(s.cfg.SilenceDuration)
			return ActionNone
		}
		if at.Before(s.deadline) {
			s.state = domain.StateDraining
			return ActionNone
		}
		s.state = domain.StateArmed
		s.deadline = time.Time{}
		s.rearmAt = at.Add(s.cfg.RestartDelay)
		return ActionFinish
	}

	return ActionNone
}
