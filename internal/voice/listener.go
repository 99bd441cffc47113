package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultQueueSize bounds each token channel.
const DefaultQueueSize = 8

// Listener reads one utterance per line and produces control tokens into
// independent bounded channels. It never blocks on a full channel: the token
// is dropped and logged, so a stalled consumer can not stall recognition.
type Listener struct {
	breaks  chan Command
	done    chan Command
	answers chan Command
	log     *slog.Logger

	mu sync.Mutex
	// breakSeq counts break requests heard so far.
	breakSeq int
	// awaitingAnswer is set after a break request; the next utterance that is
	// not itself a command is taken as the duration answer. It is cleared
	// when the prompt for that break gives up.
	awaitingAnswer bool
}

// NewListener creates a Listener whose channels hold up to queueSize tokens
// each (DefaultQueueSize if queueSize <= 0).
func NewListener(queueSize int, log *slog.Logger) *Listener {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Listener{
		breaks:  make(chan Command, queueSize),
		done:    make(chan Command, queueSize),
		answers: make(chan Command, queueSize),
		log:     log,
	}
}

// Breaks delivers BreakRequested tokens in the order they were heard.
func (l *Listener) Breaks() <-chan Command { return l.breaks }

// Done delivers DoneRequested tokens.
func (l *Listener) Done() <-chan Command { return l.done }

// Answers delivers DurationAnswer tokens.
func (l *Listener) Answers() <-chan Command { return l.answers }

// Run consumes utterances from r until it is exhausted, a done request is
// heard, or ctx is cancelled. The channels are never closed, so a listener
// that stops simply stops producing.
func (l *Listener) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if l.Handle(scanner.Text()) {
			l.log.Info("done requested, listener stopping")
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("voice: read transcripts: %w", err)
	}
	return nil
}

// Handle classifies one utterance and enqueues the resulting token. It
// reports true when the utterance was a done request.
func (l *Listener) Handle(text string) bool {
	if cmd, ok := ParseCommand(text); ok {
		switch cmd.Kind {
		case DoneRequested:
			l.send(l.done, cmd)
			return true
		case BreakRequested:
			l.mu.Lock()
			l.breakSeq++
			l.awaitingAnswer = true
			cmd.Break = l.breakSeq
			l.mu.Unlock()
			l.send(l.breaks, cmd)
		}
		return false
	}
	if normalize(text) == "" {
		return false
	}
	l.mu.Lock()
	awaiting, seq := l.awaitingAnswer, l.breakSeq
	l.awaitingAnswer = false
	l.mu.Unlock()
	if awaiting {
		l.send(l.answers, Command{Kind: DurationAnswer, Seconds: ParseDuration(text), Break: seq})
	}
	return false
}

// expire stops waiting for an answer and returns the last break request
// heard. Answers for that break or earlier ones are stale from then on.
func (l *Listener) expire() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.awaitingAnswer = false
	return l.breakSeq
}

// Prompter returns a Prompter fed by this listener's answers. When a prompt
// times out the listener stops waiting, and an answer that was already
// queued for that break is discarded by later prompts.
func (l *Listener) Prompter(timeout time.Duration) *Prompter {
	p := NewPrompter(l.answers, timeout, l.log)
	p.expire = l.expire
	return p
}

func (l *Listener) send(ch chan Command, cmd Command) {
	select {
	case ch <- cmd:
		l.log.Debug("voice command queued", "kind", cmd.Kind, "seconds", cmd.Seconds)
	default:
		l.log.Warn("voice command dropped, queue full", "kind", cmd.Kind)
	}
}

// Prompter answers break-duration requests from a stream of DurationAnswer
// tokens.
type Prompter struct {
	answers <-chan Command
	timeout time.Duration
	log     *slog.Logger

	// expire is called when a prompt gives up and returns the break number
	// it gave up on. Answers numbered at or below stale are skipped.
	expire func() int
	stale  int
}

// NewPrompter creates a Prompter. When no answer arrives within timeout the
// default break length is used; a zero timeout waits until ctx is done.
func NewPrompter(answers <-chan Command, timeout time.Duration, log *slog.Logger) *Prompter {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Prompter{answers: answers, timeout: timeout, log: log}
}

// AskBreakDuration waits for the next duration answer that is not left over
// from a break whose prompt already gave up.
func (p *Prompter) AskBreakDuration(ctx context.Context) time.Duration {
	var expired <-chan time.Time
	if p.timeout > 0 {
		t := time.NewTimer(p.timeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		select {
		case cmd := <-p.answers:
			if cmd.Break != 0 && cmd.Break <= p.stale {
				p.log.Debug("stale break duration dropped", "break", cmd.Break, "seconds", cmd.Seconds)
				continue
			}
			return breakDuration(cmd.Seconds)
		case <-expired:
			p.log.Info("no break duration heard, using default", "seconds", DefaultBreakSeconds)
		case <-ctx.Done():
		}
		p.giveUp()
		return DefaultBreakSeconds * time.Second
	}
}

func (p *Prompter) giveUp() {
	if p.expire != nil {
		p.stale = p.expire()
	}
}

// breakDuration converts answered seconds, falling back to the default for
// values ParseDuration would not produce.
func breakDuration(seconds int) time.Duration {
	if seconds <= 0 || seconds > MaxBreakSeconds {
		seconds = DefaultBreakSeconds
	}
	return time.Duration(seconds) * time.Second
}
