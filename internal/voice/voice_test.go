package voice

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"I'm tired", BreakRequested, true},
		{"i really need a break now", BreakRequested, true},
		{"PAUSE", BreakRequested, true},
		{"ok stop", BreakRequested, true},
		{"break   time", BreakRequested, true},
		{"I’m done", DoneRequested, true},
		{"i am done for today", DoneRequested, true},
		{"keep going", 0, false},
		{"   ", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseCommand(tt.in)
		if ok != tt.ok || got.Kind != tt.want {
			t.Errorf("ParseCommand(%q) = (%v, %v), want (%v, %v)", tt.in, got.Kind, ok, tt.want, tt.ok)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"15", 15},
		{"about 20 seconds", 20},
		{"1 and 5", 15},
		{"a little while", DefaultBreakSeconds},
		{"0", DefaultBreakSeconds},
		{"", DefaultBreakSeconds},
		{"99999999999999999999999", DefaultBreakSeconds},
		{"5551234567890", DefaultBreakSeconds},
		{"3600", MaxBreakSeconds},
		{"3601", DefaultBreakSeconds},
	}

	for _, tt := range tests {
		if got := ParseDuration(tt.in); got != tt.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// TestListenerRoutesTokens verifies that each token lands on its own channel
// in order, that only the utterance after a break counts as an answer, and
// that the listener stops after done.
func TestListenerRoutesTokens(t *testing.T) {
	transcript := strings.Join([]string{
		"twenty reps coming up",
		"need a break",
		"15",
		"pause",
		"uh",
		"i'm done",
		"break time",
	}, "\n")

	l := NewListener(0, discardLogger())
	if err := l.Run(context.Background(), strings.NewReader(transcript)); err != nil {
		t.Fatal(err)
	}

	if got := len(l.Breaks()); got != 2 {
		t.Errorf("breaks = %d, want 2 (the one after done must not be heard)", got)
	}
	if got := len(l.Done()); got != 1 {
		t.Errorf("done = %d, want 1", got)
	}
	var answers []int
	for len(l.Answers()) > 0 {
		answers = append(answers, (<-l.Answers()).Seconds)
	}
	if len(answers) != 2 || answers[0] != 15 || answers[1] != DefaultBreakSeconds {
		t.Errorf("answers = %v, want [15 %d]", answers, DefaultBreakSeconds)
	}
}

// TestListenerDropsWhenFull verifies that a full queue drops new tokens
// instead of blocking the listener.
func TestListenerDropsWhenFull(t *testing.T) {
	l := NewListener(2, discardLogger())
	for i := 0; i < 5; i++ {
		l.Handle("pause")
	}
	if got := len(l.Breaks()); got != 2 {
		t.Errorf("breaks = %d, want 2", got)
	}
}

// TestPrompter verifies answer delivery and the default on timeout.
func TestPrompter(t *testing.T) {
	answers := make(chan Command, 1)
	p := NewPrompter(answers, 20*time.Millisecond, discardLogger())

	answers <- Command{Kind: DurationAnswer, Seconds: 15}
	if got := p.AskBreakDuration(context.Background()); got != 15*time.Second {
		t.Errorf("answered = %v, want 15s", got)
	}
	if got := p.AskBreakDuration(context.Background()); got != DefaultBreakSeconds*time.Second {
		t.Errorf("timed out = %v, want default", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := NewPrompter(answers, 0, discardLogger()).AskBreakDuration(ctx); got != DefaultBreakSeconds*time.Second {
		t.Errorf("cancelled = %v, want default", got)
	}
}

// TestPrompterClampsAnswers verifies that an out-of-range answer pushed
// directly onto the channel still gives a positive default break.
func TestPrompterClampsAnswers(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{30, 30 * time.Second},
		{MaxBreakSeconds + 1, DefaultBreakSeconds * time.Second},
		{1 << 40, DefaultBreakSeconds * time.Second},
		{-5, DefaultBreakSeconds * time.Second},
	}

	for _, tt := range tests {
		answers := make(chan Command, 1)
		answers <- Command{Kind: DurationAnswer, Seconds: tt.seconds}
		if got := NewPrompter(answers, time.Second, nil).AskBreakDuration(context.Background()); got != tt.want {
			t.Errorf("seconds %d: got %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

// TestPrompterDropsLateAnswers verifies that an answer arriving after its
// prompt timed out is not used for the next break, whether the listener
// heard it after giving up or had already queued it.
func TestPrompterDropsLateAnswers(t *testing.T) {
	tests := []struct {
		name string
		late func(l *Listener)
	}{
		{"heard after timeout", func(l *Listener) { l.Handle("20") }},
		{"queued at timeout", func(l *Listener) {
			l.answers <- Command{Kind: DurationAnswer, Seconds: 20, Break: 1}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewListener(0, discardLogger())
			p := l.Prompter(20 * time.Millisecond)

			l.Handle("pause")
			<-l.Breaks()
			if got := p.AskBreakDuration(context.Background()); got != DefaultBreakSeconds*time.Second {
				t.Fatalf("first break = %v, want default", got)
			}

			tt.late(l)

			l.Handle("need a break")
			l.Handle("5 seconds")
			<-l.Breaks()
			if got := p.AskBreakDuration(context.Background()); got != 5*time.Second {
				t.Errorf("second break = %v, want 5s", got)
			}
		})
	}
}

// TestPrompterAnswerBeforePrompt verifies that an answer heard before the
// prompt starts waiting is still used.
func TestPrompterAnswerBeforePrompt(t *testing.T) {
	l := NewListener(0, discardLogger())
	p := l.Prompter(time.Second)

	l.Handle("pause")
	l.Handle("15")
	if got := p.AskBreakDuration(context.Background()); got != 15*time.Second {
		t.Errorf("got %v, want 15s", got)
	}
}
