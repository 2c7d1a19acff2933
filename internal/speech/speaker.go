package speech

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/metcalfc/narr/internal/narration"
)

// DefaultCommand is the speech synthesizer used when none is configured.
const DefaultCommand = "espeak-ng"

// ErrNoSpeaker means the speech command is not installed.
var ErrNoSpeaker = errors.New("speech command not found")

// Speaker produces audio for an utterance.
type Speaker interface {
	Voices() ([]string, error)
	Start(text string, voice narration.Voice, wpm int) (Process, error)
}

// Process is a running utterance.
type Process interface {
	Pause()
	Resume()
	Stop()
	// Done receives the exit result once. Stopped processes report nil.
	Done() <-chan error
}

// CommandSpeaker speaks through an espeak-compatible command line tool.
type CommandSpeaker struct {
	Command string
}

// NewCommandSpeaker returns a speaker for command, or DefaultCommand.
func NewCommandSpeaker(command string) *CommandSpeaker {
	if command == "" {
		command = DefaultCommand
	}
	return &CommandSpeaker{Command: command}
}

func (s *CommandSpeaker) path() (string, error) {
	path, err := exec.LookPath(s.Command)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoSpeaker, s.Command)
	}
	return path, nil
}

// Voices lists the languages the command can speak.
func (s *CommandSpeaker) Voices() ([]string, error) {
	path, err := s.path()
	if err != nil {
		return nil, err
	}
	out, err := exec.Command(path, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	return parseVoices(out), nil
}

// parseVoices reads the language column of `espeak-ng --voices`.
func parseVoices(out []byte) []string {
	var voices []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 {
			voices = append(voices, fields[1])
		}
	}
	return voices
}

// Args builds the command arguments for an utterance. Text is sent on stdin.
func (s *CommandSpeaker) Args(voice narration.Voice, wpm int) []string {
	args := []string{"-s", strconv.Itoa(wpm), "-p", strconv.Itoa(espeakPitch(voice.Pitch))}
	switch {
	case voice.Name != "":
		args = append(args, "-v", voice.Name)
	case voice.Lang != "":
		args = append(args, "-v", voice.Lang)
	}
	return append(args, "--stdin")
}

// espeakPitch maps a 0..2 pitch multiplier onto espeak's 0..99 scale.
func espeakPitch(pitch float64) int {
	if pitch <= 0 {
		pitch = 1
	}
	p := int(pitch * 50)
	if p > 99 {
		p = 99
	}
	return p
}

// Start launches the command for text.
func (s *CommandSpeaker) Start(text string, voice narration.Voice, wpm int) (Process, error) {
	path, err := s.path()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, s.Args(voice, wpm)...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", s.Command, err)
	}

	proc := &cmdProcess{cmd: cmd, done: make(chan error, 1)}
	go func() {
		err := cmd.Wait()
		if proc.wasStopped() {
			err = nil
		}
		proc.done <- err
	}()
	return proc, nil
}

type cmdProcess struct {
	cmd  *exec.Cmd
	done chan error

	mu      sync.Mutex
	stopped bool
}

func (p *cmdProcess) Done() <-chan error { return p.done }

func (p *cmdProcess) Pause() {
	suspend(p.cmd.Process)
}

func (p *cmdProcess) Resume() {
	resume(p.cmd.Process)
}

func (p *cmdProcess) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	resume(p.cmd.Process)
	p.cmd.Process.Kill()
}

func (p *cmdProcess) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
