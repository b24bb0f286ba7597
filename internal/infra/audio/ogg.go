//go:build opus

package audio

import (
	"bytes"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"layeh.com/gopus"
)

const (
	opusFrameMs   = 20
	opusMaxPacket = 4000
	opusBitrate   = 24000
)

// OggOpusEncoder compresses utterances to Opus in an Ogg container, the same
// kind of payload a browser MediaRecorder would upload.
type OggOpusEncoder struct {
	sampleRate int
}

func NewOggOpusEncoder(sampleRate int) (*OggOpusEncoder, error) {
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("opus does not support sample rate %d", sampleRate)
	}
	return &OggOpusEncoder{sampleRate: sampleRate}, nil
}

func (e *OggOpusEncoder) MediaType() string {
	return "audio/ogg"
}

func (e *OggOpusEncoder) Encode(chunks [][]int16) ([]byte, error) {
	encoder, err := gopus.NewEncoder(e.sampleRate, 1, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("create Opus encoder: %w", err)
	}
	encoder.SetBitrate(opusBitrate)

	var oggBuffer bytes.Buffer
	writer, err := oggwriter.NewWith(&oggBuffer, uint32(e.sampleRate), 1)
	if err != nil {
		return nil, fmt.Errorf("create OGG writer: %w", err)
	}

	frameSize := e.sampleRate * opusFrameMs / 1000
	// Ogg Opus granule positions always count 48 kHz samples.
	step := uint32(frameSize * 48000 / e.sampleRate)

	var pending []int16
	var timestamp uint32
	writeFrame := func(frame []int16) error {
		packet, err := encoder.Encode(frame, frameSize, opusMaxPacket)
		if err != nil {
			return fmt.Errorf("encode PCM to Opus: %w", err)
		}
		if err := writer.WriteRTP(&rtp.Packet{
			Header:  rtp.Header{Timestamp: timestamp},
			Payload: packet,
		}); err != nil {
			return fmt.Errorf("write Opus packet: %w", err)
		}
		timestamp += step
		return nil
	}

	for _, c := range chunks {
		pending = append(pending, c...)
		for len(pending) >= frameSize {
			if err := writeFrame(pending[:frameSize]); err != nil {
				return nil, err
			}
			pending = pending[frameSize:]
		}
	}
	if len(pending) > 0 {
		frame := make([]int16, frameSize)
		copy(frame, pending)
		if err := writeFrame(frame); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close OGG writer: %w", err)
	}
	return oggBuffer.Bytes(), nil
}
