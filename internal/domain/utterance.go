package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sample is the loudness of one analysis window together with the raw frame
// it was computed from.
type Sample struct {
	Level float64
	At    time.Time
	PCM   []int16
}

// Encoder turns the raw chunks of an utterance into a single audio container.
type Encoder interface {
	Encode(chunks [][]int16) ([]byte, error)
	MediaType() string
}

// UtteranceBuffer collects the frames recorded between speech start and
// speech end. Once sealed it no longer accepts chunks.
type UtteranceBuffer struct {
	startedAt time.Time
	chunks    [][]int16
	samples   int
	sealed    bool
}

func NewUtteranceBuffer(startedAt time.Time) *UtteranceBuffer {
	return &UtteranceBuffer{startedAt: startedAt}
}

// Append copies pcm into the buffer.
func (b *UtteranceBuffer) Append(pcm []int16) error {
	if b.sealed {
		return ErrBufferSealed
	}
	if len(pcm) == 0 {
		return nil
	}
	chunk := make([]int16, len(pcm))
	copy(chunk, pcm)
	b.chunks = append(b.chunks, chunk)
	b.samples += len(chunk)
	return nil
}

func (b *UtteranceBuffer) Samples() int {
	return b.samples
}

func (b *UtteranceBuffer) Sealed() bool {
	return b.sealed
}

// Seal freezes the buffer and encodes it. A buffer can only be sealed once.
func (b *UtteranceBuffer) Seal(enc Encoder, endedAt time.Time) (*Utterance, error) {
	if b.sealed {
		return nil, ErrBufferSealed
	}
	b.sealed = true

	data, err := enc.Encode(b.chunks)
	b.chunks = nil
	if err != nil {
		return nil, fmt.Errorf("encoding utterance: %w", err)
	}

	return &Utterance{
		ID:        uuid.NewString(),
		Data:      data,
		MediaType: enc.MediaType(),
		Samples:   b.samples,
		StartedAt: b.startedAt,
		EndedAt:   endedAt,
	}, nil
}

// Utterance is a sealed, immutable span of user speech ready to be sent.
type Utterance struct {
	ID        string
	Data      []byte
	MediaType string
	Samples   int
	StartedAt time.Time
	EndedAt   time.Time
}

func (u *Utterance) Size() int {
	return len(u.Data)
}

func (u *Utterance) Duration() time.Duration {
	return u.EndedAt.Sub(u.StartedAt)
}

// Reply is what the remote service returns for one utterance.
type Reply struct {
	Audio     []byte
	MediaType string
	UserText  string
	AIText    string
}
