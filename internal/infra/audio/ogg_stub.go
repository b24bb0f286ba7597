//go:build !opus

package audio

import (
	"errors"
)

// OggOpusEncoder stub when libopus is not available
type OggOpusEncoder struct{}

func NewOggOpusEncoder(_ int) (*OggOpusEncoder, error) {
	return nil, errors.New("ogg/opus encoding not available: rebuild with -tags opus")
}

func (e *OggOpusEncoder) MediaType() string {
	return "audio/ogg"
}

func (e *OggOpusEncoder) Encode(_ [][]int16) ([]byte, error) {
	return nil, errors.New("ogg/opus encoding not available")
}
