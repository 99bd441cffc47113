// Package session runs the frame loop: buffering, classification, repetition
// counting and break/done control for one workout session.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/classifier"
	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/voice"
)

// Auto selects auto-detect mode instead of a pinned exercise.
const Auto = "auto"

// Mode names as they appear in summaries.
const (
	ModeFixed = "fixed"
	ModeAuto  = "auto"
)

var (
	// ErrSensorUnavailable means the landmark source could not be started.
	ErrSensorUnavailable = errors.New("sensor unavailable")
	// ErrInvalidConfiguration means the session was asked to run something it can not.
	ErrInvalidConfiguration = errors.New("invalid session configuration")
)

// Source produces one landmark frame per tick. Next returns a nil frame when
// nothing was detected and io.EOF when the stream has ended.
type Source interface {
	Start(ctx context.Context) error
	Next(ctx context.Context) (pose.Frame, error)
}

// Classifier predicts workout-type and form labels for a full window.
type Classifier interface {
	PredictWorkout(ctx context.Context, window []pose.Frame) (string, error)
	PredictForm(ctx context.Context, window []pose.Frame) (string, error)
}

// Compile-time check: the gateway satisfies Classifier.
var _ Classifier = (*classifier.Gateway)(nil)

// Prompter asks the user how long a break should last.
type Prompter interface {
	AskBreakDuration(ctx context.Context) time.Duration
}

// Store persists session summaries. merged is false when the session had
// already been merged before.
type Store interface {
	MergeSessionSummary(ctx context.Context, s metrics.SessionSummary) (merged bool, err error)
}

// Controls are the control-token channels polled once per tick. Either may
// be nil.
type Controls struct {
	Breaks <-chan voice.Command
	Done   <-chan voice.Command
}

// Options configure a session.
type Options struct {
	Exercise     string        // exercise tag or Auto
	UserID       string        // summary key
	WindowSize   int           // frames per classifier window, default pose.DefaultWindow
	Stability    time.Duration // how long a workout label must hold before it is announced
	DefaultBreak time.Duration // used when no Prompter is set
}

// Result is what a finished session hands back to the caller.
type Result struct {
	Summary metrics.SessionSummary
	// Merged reports whether the store accepted the summary.
	Merged bool
	// PersistErr is set when the summary could not be saved. The session is
	// still considered successful.
	PersistErr error
	// SourceErr is set when the source failed mid-session and ended it early.
	SourceErr error
}

// Controller owns all engine state for one session. Run must be called at
// most once, from a single goroutine.
type Controller struct {
	opts     Options
	mode     string
	fixed    exercise.Tag
	src      Source
	gw       Classifier
	notifier Notifier
	log      *slog.Logger

	clock    Clock
	controls Controls
	prompter Prompter
	store    Store

	buffer   *pose.Buffer
	machines []*exercise.StateMachine
	plank    *exercise.PlankTracker
	agg      *metrics.Aggregator

	workout        string       // latest raw workout label
	lastTag        exercise.Tag // last workout label that named an exercise
	candidate      string
	candidateSince time.Time
	announced      string
	plankAnnounced int
}

// New validates opts and builds the state machines for the requested mode.
// An unknown exercise or missing user yields ErrInvalidConfiguration.
func New(opts Options, src Source, gw Classifier, notifier Notifier, log *slog.Logger) (*Controller, error) {
	if strings.TrimSpace(opts.UserID) == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidConfiguration)
	}
	if src == nil || gw == nil {
		return nil, fmt.Errorf("%w: source and classifier are required", ErrInvalidConfiguration)
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = pose.DefaultWindow
	}
	if opts.DefaultBreak <= 0 {
		opts.DefaultBreak = voice.DefaultBreakSeconds * time.Second
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Event) {})
	}

	c := &Controller{
		opts:     opts,
		src:      src,
		gw:       gw,
		notifier: notifier,
		log:      log,
		clock:    realClock{},
		buffer:   pose.NewBuffer(opts.WindowSize),
	}

	var tags []exercise.Tag
	if strings.EqualFold(strings.TrimSpace(opts.Exercise), Auto) {
		c.mode = ModeAuto
		tags = append(append(tags, exercise.Discrete...), exercise.Plank)
	} else {
		tag, err := exercise.ParseTag(opts.Exercise)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		c.mode = ModeFixed
		c.fixed = tag
		tags = []exercise.Tag{tag}
	}

	for _, tag := range tags {
		rule, err := exercise.Lookup(tag)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		switch r := rule.(type) {
		case exercise.RepRule:
			c.machines = append(c.machines, exercise.NewStateMachine(r))
		case exercise.HoldRule:
			c.plank = exercise.NewPlankTracker(r)
		}
	}
	return c, nil
}

// SetClock replaces the wall clock.
func (c *Controller) SetClock(clock Clock) { c.clock = clock }

// SetControls attaches the break and done channels.
func (c *Controller) SetControls(ctl Controls) { c.controls = ctl }

// SetPrompter attaches the break-duration prompt.
func (c *Controller) SetPrompter(p Prompter) { c.prompter = p }

// SetStore attaches the summary store. Without one the summary is only returned.
func (c *Controller) SetStore(s Store) { c.store = s }

// Mode returns ModeFixed or ModeAuto.
func (c *Controller) Mode() string { return c.mode }

// Run starts the source and processes frames until a done token, the end of
// the stream, or ctx cancellation. It returns an error only when the session
// could not run at all.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if err := c.src.Start(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSensorUnavailable, err)
	}

	c.agg = metrics.NewAggregator(c.clock.Now())
	c.log.Info("session started", "session_id", c.agg.SessionID(), "user", c.opts.UserID, "mode", c.mode, "exercise", c.fixed)

	res := &Result{}
	if err := c.loop(ctx, res); err != nil {
		return nil, err
	}

	res.Summary = c.agg.Summary(c.opts.UserID, c.mode, c.clock.Now())
	c.log.Info("session ended",
		"session_id", res.Summary.SessionID,
		"reps", res.Summary.TotalReps(),
		"plank_seconds", res.Summary.PlankSeconds,
		"calories", res.Summary.Calories,
	)

	if c.store != nil {
		// Saving must still happen when the loop ended because ctx was cancelled.
		merged, err := c.store.MergeSessionSummary(context.WithoutCancel(ctx), res.Summary)
		if err != nil {
			c.log.Warn("failed to save session summary", "session_id", res.Summary.SessionID, "error", err)
			res.PersistErr = err
		}
		res.Merged = merged
	}
	return res, nil
}

func (c *Controller) loop(ctx context.Context, res *Result) error {
	for {
		if ctx.Err() != nil {
			c.log.Info("session cancelled")
			return nil
		}

		frame, err := c.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			c.log.Info("landmark stream ended")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("landmark source failed, ending session", "error", err)
			res.SourceErr = err
			return nil
		}

		handled, stop := c.handleControls(ctx)
		if stop {
			c.log.Info("done requested")
			return nil
		}
		if handled {
			continue
		}

		if err := c.process(ctx, frame); err != nil {
			return err
		}
	}
}

// handleControls drains pending control tokens. Pending breaks are
// coalesced into one break. It reports whether anything was handled and
// whether the session should stop.
func (c *Controller) handleControls(ctx context.Context) (handled, stop bool) {
	if drain(c.controls.Done) > 0 {
		return true, true
	}
	if drain(c.controls.Breaks) > 0 {
		c.takeBreak(ctx)
		return true, false
	}
	return false, false
}

func drain(ch <-chan voice.Command) int {
	n := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// takeBreak blocks for the requested duration, surfacing a countdown every
// second. Buffered frames and exercise state are left as they are; only the
// plank timer is stopped so the break is not counted as held time.
func (c *Controller) takeBreak(ctx context.Context) {
	if c.plank != nil {
		c.plank.Suspend()
	}

	c.notifier.Notify(Event{Kind: EventBreakPrompt})
	d := c.opts.DefaultBreak
	if c.prompter != nil {
		d = c.prompter.AskBreakDuration(ctx)
	}
	c.log.Info("break started", "seconds", d.Seconds())
	c.notifier.Notify(Event{Kind: EventBreakStarted, Remaining: d})

	for remaining := d; remaining > 0; {
		step := min(time.Second, remaining)
		select {
		case <-c.clock.After(step):
		case <-ctx.Done():
			return
		}
		remaining -= step
		c.notifier.Notify(Event{Kind: EventCountdown, Remaining: remaining})
	}

	c.log.Info("break ended")
	c.notifier.Notify(Event{Kind: EventBreakEnded})
}

// process runs one tick for a frame.
func (c *Controller) process(ctx context.Context, frame pose.Frame) error {
	if frame == nil {
		return nil
	}
	if err := frame.Validate(); err != nil {
		c.log.Warn("skipping malformed frame", "error", err)
		return nil
	}
	c.buffer.Push(frame)
	if !c.buffer.Full() {
		return nil
	}

	window, err := c.buffer.Snapshot()
	if err != nil {
		return err
	}
	now := c.clock.Now()

	if c.mode == ModeAuto {
		label, err := c.gw.PredictWorkout(ctx, window)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		c.observeWorkout(label, now)
	}
	active := c.activeTag()

	verdict, haveVerdict := "", false
	for _, m := range c.machines {
		meas, fired := m.Step(frame)
		if !fired || (active != "" && m.Tag() != active) {
			continue
		}
		if !haveVerdict {
			verdict, err = c.gw.PredictForm(ctx, window)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
			}
			haveVerdict = true
		}
		rep := m.Commit(meas, verdict)
		c.agg.RecordRep(rep)
		c.log.Debug("repetition", "exercise", rep.Exercise, "count", rep.Count, "label", rep.Label, "from_classifier", rep.FromClassifier)
		c.notifier.Notify(Event{
			Kind:     EventRep,
			Exercise: rep.Exercise,
			Count:    rep.Count,
			Label:    rep.Label,
			Good:     rep.Good,
			Calories: metrics.RoundCalories(c.agg.Calories()),
		})
	}

	if c.plank != nil {
		elapsed, _ := c.plank.Step(frame, now)
		if active == "" || active == exercise.Plank {
			cal := c.plank.Commit(elapsed)
			c.agg.RecordPlank(elapsed, cal)
			if s := int(math.Floor(c.plank.Seconds())); s > c.plankAnnounced {
				c.plankAnnounced = s
				c.notifier.Notify(Event{
					Kind:     EventPlankProgress,
					Exercise: exercise.Plank,
					Seconds:  s,
					Calories: metrics.RoundCalories(c.agg.Calories()),
				})
			}
		}
	}
	return nil
}

// observeWorkout tracks how long the workout label has been stable and
// announces it once it has held for the stability duration.
func (c *Controller) observeWorkout(label string, now time.Time) {
	c.workout = label
	if label != c.candidate {
		c.candidate = label
		c.candidateSince = now
	}
	if label == classifier.Unknown || label == c.announced {
		return
	}
	if now.Sub(c.candidateSince) < c.opts.Stability {
		return
	}
	tag, err := exercise.ParseTag(label)
	if err != nil {
		return
	}
	c.announced = label
	c.log.Info("workout changed", "exercise", tag)
	c.notifier.Notify(Event{Kind: EventWorkoutChanged, Exercise: tag})
}

// activeTag is the exercise repetitions are attributed to this tick. In auto
// mode an Unknown or unrecognised workout label keeps the last exercise the
// classifier named. Before any exercise has been named it is empty, and every
// machine that fires is counted on geometry alone.
func (c *Controller) activeTag() exercise.Tag {
	if c.mode == ModeFixed {
		return c.fixed
	}
	if tag, err := exercise.ParseTag(c.workout); err == nil {
		c.lastTag = tag
	}
	return c.lastTag
}
