package speech

import (
	"errors"
	"fmt"
	"testing"

	"github.com/metcalfc/narr/internal/narration"
)

func TestParseVoices(t *testing.T) {
	out := []byte(`Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-gb           --/M      English_(Great_Britain) gmw/en
 2  en-us           --/M      English_(America)  gmw/en-US

`)
	got := parseVoices(out)
	if fmt.Sprint(got) != "[af en-gb en-us]" {
		t.Errorf("parseVoices() = %v", got)
	}
}

func TestCommandSpeakerArgs(t *testing.T) {
	s := NewCommandSpeaker("")
	if s.Command != DefaultCommand {
		t.Errorf("Command = %q, want %q", s.Command, DefaultCommand)
	}

	tests := []struct {
		name  string
		voice narration.Voice
		wpm   int
		want  string
	}{
		{"defaults", narration.Voice{}, 175, "[-s 175 -p 50 --stdin]"},
		{"language", narration.Voice{Lang: "en-us", Pitch: 1.2}, 200, "[-s 200 -p 60 -v en-us --stdin]"},
		{"name wins", narration.Voice{Lang: "en", Name: "en-gb", Pitch: 3}, 150, "[-s 150 -p 99 -v en-gb --stdin]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmt.Sprint(s.Args(tt.voice, tt.wpm)); got != tt.want {
				t.Errorf("Args() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCommandSpeakerMissing(t *testing.T) {
	s := NewCommandSpeaker("narr-no-such-speech-command")

	if _, err := s.Voices(); !errors.Is(err, ErrNoSpeaker) {
		t.Errorf("Voices() error = %v, want ErrNoSpeaker", err)
	}
	if _, err := s.Start("hi", narration.Voice{}, 175); !errors.Is(err, ErrNoSpeaker) {
		t.Errorf("Start() error = %v, want ErrNoSpeaker", err)
	}
}
