package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// CommandPlayer pipes reply audio into an external player such as
// `ffplay -nodisp -autoexit -loglevel quiet -` and waits for it to exit.
type CommandPlayer struct {
	command []string
	logger  *slog.Logger
}

func NewCommandPlayer(command []string, logger *slog.Logger) (*CommandPlayer, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("playback command is empty")
	}
	return &CommandPlayer{command: command, logger: logger}, nil
}

func (p *CommandPlayer) Play(ctx context.Context, audio []byte, mediaType string) error {
	cmd := exec.CommandContext(ctx, p.command[0], p.command[1:]...)
	cmd.Stdin = bytes.NewReader(audio)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.logger.Debug("playing reply", "bytes", len(audio), "mediaType", mediaType, "command", p.command[0])

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("running %s: %w: %s", p.command[0], err, msg)
		}
		return fmt.Errorf("running %s: %w", p.command[0], err)
	}
	return nil
}
