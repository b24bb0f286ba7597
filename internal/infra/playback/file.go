package playback

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FilePlayer stores each reply in a directory instead of playing it. Useful
// on headless hosts; playback completes as soon as the file is written.
type FilePlayer struct {
	dir string
	now func() time.Time

	mu  sync.Mutex
	seq int
}

func NewFilePlayer(dir string) *FilePlayer {
	return &FilePlayer{dir: dir, now: time.Now}
}

func (p *FilePlayer) Play(ctx context.Context, audio []byte, mediaType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return fmt.Errorf("creating reply dir: %w", err)
	}

	p.mu.Lock()
	p.seq++
	name := fmt.Sprintf("reply-%s-%03d%s", p.now().Format("20060102T150405"), p.seq, extension(mediaType))
	p.mu.Unlock()

	path := filepath.Join(p.dir, name)
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return fmt.Errorf("writing reply %s: %w", path, err)
	}
	return nil
}

func extension(mediaType string) string {
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	}
	if mediaType != "" {
		base, _, err := mime.ParseMediaType(mediaType)
		if err == nil && base != mediaType {
			return extension(base)
		}
	}
	return ".bin"
}
