// Package playback pipes raw PCM into an external player command.
package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

// ErrNoCommand is returned when no player command is configured.
var ErrNoCommand = errors.New("playback command empty")

// rateToken in a command argument is replaced by the sample rate.
const rateToken = "{rate}"

// Player runs one player process per Play call. Calls are serialized so two
// utterances never overlap on the device.
type Player struct {
	args []string
	mu   sync.Mutex
}

// New parses command with shell quoting rules.
func New(command string) (*Player, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse playback command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrNoCommand
	}
	return &Player{args: args}, nil
}

// Args returns the command line Play would run for sampleRate.
func (p *Player) Args(sampleRate int) []string {
	args := make([]string, len(p.args))
	rate := strconv.Itoa(sampleRate)
	for i, a := range p.args {
		args[i] = strings.ReplaceAll(a, rateToken, rate)
	}
	return args
}

// Play writes pcm to the player's stdin and waits for it to exit.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	args := p.Args(sampleRate)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = bytes.NewReader(pcm)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("playback command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
