package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAVEncoder packs utterance chunks into a 16-bit mono PCM WAV file.
type WAVEncoder struct {
	SampleRate int
}

func NewWAVEncoder(sampleRate int) *WAVEncoder {
	return &WAVEncoder{SampleRate: sampleRate}
}

func (e *WAVEncoder) MediaType() string {
	return "audio/wav"
}

func (e *WAVEncoder) Encode(chunks [][]int16) ([]byte, error) {
	var samples int
	for _, c := range chunks {
		samples += len(c)
	}

	var buf bytes.Buffer
	buf.Grow(44 + samples*2)

	dataSize := samples * 2
	fileSize := 36 + dataSize

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, int32(fileSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, int32(16))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int32(e.SampleRate))
	binary.Write(&buf, binary.LittleEndian, int32(e.SampleRate*2))
	binary.Write(&buf, binary.LittleEndian, int16(2))
	binary.Write(&buf, binary.LittleEndian, int16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, int32(dataSize))
	for _, c := range chunks {
		if err := binary.Write(&buf, binary.LittleEndian, c); err != nil {
			return nil, fmt.Errorf("writing samples: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// PCM is decoded WAV audio.
type PCM struct {
	SampleRate int
	Samples    []int16
}

var errUnsupportedWAV = errors.New("unsupported wav format")

// DecodeWAV reads 16-bit mono PCM WAV data. Unknown chunks are skipped.
func DecodeWAV(r io.Reader) (*PCM, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("reading riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", errUnsupportedWAV)
	}

	var (
		pcm        PCM
		haveFormat bool
	)

	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: no data chunk", errUnsupportedWAV)
			}
			return nil, fmt.Errorf("reading chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("reading fmt chunk: %w", err)
			}
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", errUnsupportedWAV)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			channels := binary.LittleEndian.Uint16(body[2:4])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != 1 || channels != 1 || bits != 16 {
				return nil, fmt.Errorf("%w: format=%d channels=%d bits=%d", errUnsupportedWAV, format, channels, bits)
			}
			pcm.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFormat = true

		case "data":
			if !haveFormat {
				return nil, fmt.Errorf("%w: data before fmt", errUnsupportedWAV)
			}
			pcm.Samples = make([]int16, size/2)
			if err := binary.Read(r, binary.LittleEndian, pcm.Samples); err != nil {
				return nil, fmt.Errorf("reading samples: %w", err)
			}
			return &pcm, nil

		default:
			skip := int64(size) + int64(size%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("skipping %q chunk: %w", id, err)
			}
		}
	}
}
