package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileSource replays WAV recordings as if they came from a microphone. Path
// may be a single file or a directory, in which case every .wav file in it is
// played in name order.
type FileSource struct {
	path       string
	sampleRate int
	realtime   bool

	mu        sync.Mutex
	samples   []int16
	pos       int
	epoch     time.Time
	next      time.Time
	started   bool
	recording bool
}

func NewFileSource(path string, sampleRate int, realtime bool) *FileSource {
	return &FileSource{
		path:       path,
		sampleRate: sampleRate,
		realtime:   realtime,
	}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Start(_ context.Context) error {
	files, err := f.listFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no wav files in %s", f.path)
	}

	var samples []int16
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file %s: %w", path, err)
		}
		pcm, err := DecodeWAV(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		if pcm.SampleRate != f.sampleRate {
			return fmt.Errorf("%s: sample rate %d, want %d", path, pcm.SampleRate, f.sampleRate)
		}
		samples = append(samples, pcm.Samples...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = samples
	f.pos = 0
	f.epoch = time.Now()
	f.next = f.epoch
	f.started = true
	return nil
}

func (f *FileSource) listFiles() ([]string, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("opening audio path: %w", err)
	}
	if !info.IsDir() {
		return []string{f.path}, nil
	}

	entries, err := os.ReadDir(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".wav" {
			continue
		}
		files = append(files, filepath.Join(f.path, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// StreamTime is the position of the replay expressed as wall time since
// Start. It lets a fast replay drive silence timing at recording speed.
func (f *FileSource) StreamTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sampleRate <= 0 {
		return f.epoch
	}
	return f.epoch.Add(time.Duration(f.pos) * time.Second / time.Duration(f.sampleRate))
}

func (f *FileSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	f.recording = false
	return nil
}

// ReadFrame returns io.EOF once all recordings have been played. The last
// frame is padded with silence.
func (f *FileSource) ReadFrame(ctx context.Context, frame []int16) error {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return errors.New("file source not started")
	}
	if f.pos >= len(f.samples) {
		f.mu.Unlock()
		return io.EOF
	}

	n := copy(frame, f.samples[f.pos:])
	clear(frame[n:])
	f.pos += n

	var wait time.Duration
	if f.realtime && f.sampleRate > 0 {
		f.next = f.next.Add(time.Duration(len(frame)) * time.Second / time.Duration(f.sampleRate))
		wait = time.Until(f.next)
	}
	f.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *FileSource) StartRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return errors.New("file source not started")
	}
	f.recording = true
	return nil
}

func (f *FileSource) StopRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = false
	return nil
}
