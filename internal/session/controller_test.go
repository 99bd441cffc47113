package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/classifier"
	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/pose/posetest"
	"github.com/claude/repcoach/internal/voice"
)

const tick = 100 * time.Millisecond

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances only when told to; After advances it by d immediately.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 7, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// scriptedSource replays frames one per tick, advancing the clock, and runs
// hooks just before the frame with the same index is returned.
type scriptedSource struct {
	frames   []pose.Frame
	clock    *fakeClock
	hooks    map[int]func()
	startErr error
	next     int
}

func (s *scriptedSource) Start(context.Context) error { return s.startErr }

func (s *scriptedSource) Next(context.Context) (pose.Frame, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	i := s.next
	s.next++
	if s.clock != nil && i > 0 {
		s.clock.now = s.clock.now.Add(tick)
	}
	if h := s.hooks[i]; h != nil {
		h()
	}
	return s.frames[i], nil
}

type fixedPrompter time.Duration

func (p fixedPrompter) AskBreakDuration(context.Context) time.Duration { return time.Duration(p) }

type recorder struct {
	events []Event
	onKind map[EventKind]func()
}

func (r *recorder) Notify(e Event) {
	r.events = append(r.events, e)
	if f := r.onKind[e.Kind]; f != nil {
		f()
	}
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type fakeStore struct {
	saved []metrics.SessionSummary
	err   error
}

func (s *fakeStore) MergeSessionSummary(_ context.Context, sum metrics.SessionSummary) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.saved = append(s.saved, sum)
	return true, nil
}

// repeat returns n copies of f.
func repeat(f pose.Frame, n int) []pose.Frame {
	out := make([]pose.Frame, n)
	for i := range out {
		out[i] = f
	}
	return out
}

// curlSession returns a window's worth of dead-zone frames followed by the
// given elbow angles, so that the first angle is the first full-window tick.
func curlSession(angles ...float64) []pose.Frame {
	frames := repeat(posetest.Curl(100), pose.DefaultWindow-1)
	for _, a := range angles {
		frames = append(frames, posetest.Curl(a))
	}
	return frames
}

func newController(t *testing.T, opts Options, src Source, gw Classifier, n Notifier) *Controller {
	t.Helper()
	if opts.UserID == "" {
		opts.UserID = "alice"
	}
	c, err := New(opts, src, gw, n, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// TestCurlSessionScenario verifies the reference curl run end to end: one
// repetition filed as bad by the classifier, half a calorie, one
// notification.
func TestCurlSessionScenario(t *testing.T) {
	clock := newFakeClock()
	src := &scriptedSource{frames: curlSession(170, 170, 20, 20, 170), clock: clock}
	gw := classifier.NewGateway(classifier.Static("curls"), classifier.Static("curlsbad"), pose.DefaultWindow, discardLogger())
	rec := &recorder{}
	store := &fakeStore{}

	c := newController(t, Options{Exercise: "curls"}, src, gw, rec)
	c.SetClock(clock)
	c.SetStore(store)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	got := res.Summary.Exercises[exercise.Curls]
	if got != (metrics.ExerciseTotals{Good: 0, Bad: 1, Total: 1}) {
		t.Errorf("curls = %+v, want bad=1 total=1", got)
	}
	if res.Summary.Calories != 0.5 {
		t.Errorf("calories = %v, want 0.5", res.Summary.Calories)
	}
	if rec.count(EventRep) != 1 {
		t.Errorf("rep notifications = %d, want 1", rec.count(EventRep))
	}
	if res.Summary.Mode != ModeFixed || res.Summary.UserID != "alice" {
		t.Errorf("summary = %+v", res.Summary)
	}
	if !res.Merged || len(store.saved) != 1 || store.saved[0].SessionID != res.Summary.SessionID {
		t.Errorf("store saved %d summaries, merged=%v", len(store.saved), res.Merged)
	}
}

// TestSkipsMissingAndMalformedFrames verifies that no-detection ticks and
// frames of the wrong length never reach the buffer.
func TestSkipsMissingAndMalformedFrames(t *testing.T) {
	frames := []pose.Frame{posetest.Curl(100), nil, posetest.Curl(100)[:50], posetest.Curl(100)}
	src := &scriptedSource{frames: frames}
	c := newController(t, Options{Exercise: "curls"}, src, classifier.NewGateway(nil, nil, 0, discardLogger()), nil)

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.buffer.Len() != 2 {
		t.Errorf("buffer len = %d, want 2", c.buffer.Len())
	}
}

// TestBreakLeavesStateUntouched verifies that a break with a spoken answer of
// 15 seconds blocks for exactly 15 one-second countdown steps and that the
// buffer and every counter are identical before and after it.
func TestBreakLeavesStateUntouched(t *testing.T) {
	clock := newFakeClock()
	breaks := make(chan voice.Command, 1)
	frames := curlSession(170, 20, 170, 20, 170, 170, 100, 20, 170)
	src := &scriptedSource{frames: frames, clock: clock, hooks: map[int]func(){
		pose.DefaultWindow + 3: func() { breaks <- voice.Command{Kind: voice.BreakRequested} },
	}}
	gw := classifier.NewGateway(nil, classifier.Static("curlsgood"), pose.DefaultWindow, discardLogger())

	type snapshot struct {
		buffer []pose.Frame
		states []exercise.State
		counts exercise.Counts
	}
	var c *Controller
	take := func() snapshot {
		buf, _ := c.buffer.Snapshot()
		var states []exercise.State
		for _, m := range c.machines {
			states = append(states, m.State())
		}
		return snapshot{buffer: buf, states: states, counts: c.agg.Counts(exercise.Curls)}
	}
	var before, after snapshot
	var breakStart, breakEnd time.Time
	rec := &recorder{onKind: map[EventKind]func(){
		EventBreakPrompt: func() { before = take(); breakStart = clock.Now() },
		EventBreakEnded:  func() { after = take(); breakEnd = clock.Now() },
	}}

	c = newController(t, Options{Exercise: "curls"}, src, gw, rec)
	c.SetClock(clock)
	c.SetControls(Controls{Breaks: breaks})
	c.SetPrompter(fixedPrompter(15 * time.Second))

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if before.counts.Total() != 2 {
		t.Fatalf("reps before break = %d, want 2", before.counts.Total())
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("state changed across break:\nbefore %+v\nafter  %+v", before.states, after.states)
	}
	if got := rec.count(EventCountdown); got != 15 {
		t.Errorf("countdown ticks = %d, want 15", got)
	}
	if got := breakEnd.Sub(breakStart); got != 15*time.Second {
		t.Errorf("break lasted %v, want 15s", got)
	}
	if got := res.Summary.Exercises[exercise.Curls].Total; got != 3 {
		t.Errorf("total after session = %d, want 3", got)
	}
}

// TestCoalescesPendingBreaks verifies that several break tokens queued in one
// tick produce a single break.
func TestCoalescesPendingBreaks(t *testing.T) {
	breaks := make(chan voice.Command, 4)
	src := &scriptedSource{frames: curlSession(170, 170), hooks: map[int]func(){
		3: func() {
			for i := 0; i < 3; i++ {
				breaks <- voice.Command{Kind: voice.BreakRequested}
			}
		},
	}}
	rec := &recorder{}
	c := newController(t, Options{Exercise: "curls", DefaultBreak: 2 * time.Second}, src, classifier.NewGateway(nil, nil, 0, discardLogger()), rec)
	c.SetClock(newFakeClock())
	c.SetControls(Controls{Breaks: breaks})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := rec.count(EventBreakStarted); got != 1 {
		t.Errorf("breaks = %d, want 1", got)
	}
	if got := rec.count(EventCountdown); got != 2 {
		t.Errorf("countdown = %d, want 2", got)
	}
}

// TestFailingClassifierMatchesGeometry verifies that a form classifier that
// always panics yields the same counts as one that always agrees with the
// geometric rule, and that every verdict then came from geometry.
func TestFailingClassifierMatchesGeometry(t *testing.T) {
	angles := []float64{170, 20, 170, 28, 165, 10, 100, 175, 26, 170, 15}
	curl, _ := exercise.Lookup(exercise.Curls)
	rule := curl.(exercise.RepRule)

	agreeing := classifier.BackendFunc(func(_ context.Context, w []pose.Frame) (string, error) {
		label, _ := exercise.ResolveForm(rule, rule.Measure(w[len(w)-1]), "")
		return label, nil
	})
	panicking := classifier.BackendFunc(func(context.Context, []pose.Frame) (string, error) {
		panic("inference crashed")
	})

	run := func(form classifier.Backend) (*Result, classifier.Stats) {
		gw := classifier.NewGateway(nil, form, pose.DefaultWindow, discardLogger())
		c := newController(t, Options{Exercise: "curls"}, &scriptedSource{frames: curlSession(angles...)}, gw, nil)
		res, err := c.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return res, gw.Stats()
	}

	good, _ := run(agreeing)
	failed, stats := run(panicking)

	if !reflect.DeepEqual(good.Summary.Exercises, failed.Summary.Exercises) {
		t.Errorf("counts differ:\nagreeing %+v\nfailing  %+v", good.Summary.Exercises, failed.Summary.Exercises)
	}
	if stats.FormCalls == 0 || stats.FormFailures != stats.FormCalls {
		t.Errorf("stats = %+v, want every form call to fail", stats)
	}
	if failed.Summary.Exercises[exercise.Curls].Total != 5 {
		t.Errorf("total = %d, want 5", failed.Summary.Exercises[exercise.Curls].Total)
	}
}

// TestDoneStopsAfterCurrentTick verifies that a done token ends the loop
// without reading further frames.
func TestDoneStopsAfterCurrentTick(t *testing.T) {
	done := make(chan voice.Command, 1)
	frames := repeat(posetest.Curl(100), 50)
	src := &scriptedSource{frames: frames, hooks: map[int]func(){
		10: func() { done <- voice.Command{Kind: voice.DoneRequested} },
	}}
	c := newController(t, Options{Exercise: "curls"}, src, classifier.NewGateway(nil, nil, 0, discardLogger()), nil)
	c.SetControls(Controls{Done: done})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.next != 11 {
		t.Errorf("frames read = %d, want 11", src.next)
	}
	if c.buffer.Len() != 10 {
		t.Errorf("buffer len = %d, want 10", c.buffer.Len())
	}
}

// TestStartErrors verifies the two conditions that prevent a session from
// running.
func TestStartErrors(t *testing.T) {
	gw := classifier.NewGateway(nil, nil, 0, discardLogger())

	tests := []struct {
		name string
		opts Options
		src  *scriptedSource
		want error
	}{
		{"unknown exercise", Options{Exercise: "burpees", UserID: "a"}, &scriptedSource{}, ErrInvalidConfiguration},
		{"missing user", Options{Exercise: "curls"}, &scriptedSource{}, ErrInvalidConfiguration},
		{"no camera", Options{Exercise: "auto", UserID: "a"}, &scriptedSource{startErr: errors.New("no such device")}, ErrSensorUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts, tt.src, gw, nil, discardLogger())
			if err == nil {
				_, err = c.Run(context.Background())
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestPersistenceFailureKeepsSummary verifies that a failed save is recorded
// on the result without failing the session.
func TestPersistenceFailureKeepsSummary(t *testing.T) {
	src := &scriptedSource{frames: curlSession(170, 20)}
	c := newController(t, Options{Exercise: "curls"}, src, classifier.NewGateway(nil, nil, 0, discardLogger()), nil)
	c.SetStore(&fakeStore{err: errors.New("connection refused")})

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.PersistErr == nil || res.Merged {
		t.Errorf("result = %+v, want persistence error", res)
	}
	if res.Summary.Exercises[exercise.Curls].Total != 1 {
		t.Errorf("summary lost: %+v", res.Summary)
	}
}

// TestFixedPlankAccruesTime verifies plank tracking in fixed mode using the
// session clock.
func TestFixedPlankAccruesTime(t *testing.T) {
	clock := newFakeClock()
	frames := repeat(posetest.Plank(178), pose.DefaultWindow-1+50)
	rec := &recorder{}
	c := newController(t, Options{Exercise: "plank"}, &scriptedSource{frames: frames, clock: clock}, classifier.NewGateway(nil, nil, 0, discardLogger()), rec)
	c.SetClock(clock)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// 50 in-position ticks: the first starts the timer, the other 49 add 0.1s each.
	if res.Summary.PlankSeconds != 4.9 {
		t.Errorf("plank seconds = %v, want 4.9", res.Summary.PlankSeconds)
	}
	if res.Summary.Calories != 0.4 {
		t.Errorf("calories = %v, want 0.4", res.Summary.Calories)
	}
	if got := rec.count(EventPlankProgress); got != 4 {
		t.Errorf("plank notifications = %d, want 4", got)
	}
}

func squatCycle(n int) []pose.Frame {
	frames := repeat(posetest.Squat(120), pose.DefaultWindow-1)
	for i := 0; i < n; i++ {
		frames = append(frames, posetest.Squat(170), posetest.Squat(170), posetest.Squat(60), posetest.Squat(60))
	}
	return frames
}

// TestAutoModeStability verifies that a workout label is announced once,
// only after holding for the stability duration, and that no repetition is
// lost while the classifier warms up.
func TestAutoModeStability(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	var firstSquats, announcedAt time.Time
	workout := classifier.BackendFunc(func(context.Context, []pose.Frame) (string, error) {
		calls++
		if calls <= 10 {
			return "", errors.New("warming up")
		}
		if firstSquats.IsZero() {
			firstSquats = clock.Now()
		}
		return "squats", nil
	})
	gw := classifier.NewGateway(workout, nil, pose.DefaultWindow, discardLogger())
	rec := &recorder{onKind: map[EventKind]func(){
		EventWorkoutChanged: func() { announcedAt = clock.Now() },
	}}

	c := newController(t, Options{Exercise: "auto", Stability: 5 * time.Second}, &scriptedSource{frames: squatCycle(25), clock: clock}, gw, rec)
	c.SetClock(clock)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if got := rec.count(EventWorkoutChanged); got != 1 {
		t.Fatalf("workout announcements = %d, want 1", got)
	}
	if held := announcedAt.Sub(firstSquats); held != 5*time.Second {
		t.Errorf("announced after %v, want 5s", held)
	}
	squats := res.Summary.Exercises[exercise.Squats]
	// The ten unknown ticks before the first label still count on geometry.
	if squats.Total != 25 {
		t.Errorf("squats = %d, want 25", squats.Total)
	}
	for _, tag := range []exercise.Tag{exercise.Curls, exercise.Pushups, exercise.Situps} {
		if n := res.Summary.Exercises[tag].Total; n != 0 {
			t.Errorf("%s = %d, want 0", tag, n)
		}
	}
	if res.Summary.Mode != ModeAuto {
		t.Errorf("mode = %s", res.Summary.Mode)
	}
}

// TestAutoModeFlickerNeverAnnounces verifies that a label that keeps
// changing never reaches the stability duration.
func TestAutoModeFlickerNeverAnnounces(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	workout := classifier.BackendFunc(func(context.Context, []pose.Frame) (string, error) {
		calls++
		if calls%2 == 0 {
			return "curls", nil
		}
		return "squats", nil
	})
	rec := &recorder{}
	c := newController(t, Options{Exercise: "auto", Stability: 5 * time.Second},
		&scriptedSource{frames: squatCycle(25), clock: clock},
		classifier.NewGateway(workout, nil, pose.DefaultWindow, discardLogger()), rec)
	c.SetClock(clock)

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := rec.count(EventWorkoutChanged); got != 0 {
		t.Errorf("workout announcements = %d, want 0", got)
	}
}

// TestAutoModeWithoutWorkoutLabel verifies that auto mode keeps counting when
// the workout classifier is missing or stops answering: reps are attributed
// to the last exercise it named, or to every machine that fires before it has
// named one.
func TestAutoModeWithoutWorkoutLabel(t *testing.T) {
	calls := 0
	failsLater := classifier.BackendFunc(func(context.Context, []pose.Frame) (string, error) {
		calls++
		if calls <= 20 {
			return "squats", nil
		}
		return "", errors.New("inference service down")
	})

	tests := []struct {
		name    string
		workout classifier.Backend
		frames  []pose.Frame
		want    map[exercise.Tag]int
	}{
		{"no workout classifier", nil, squatCycle(25), map[exercise.Tag]int{exercise.Squats: 25}},
		{"classifier fails after naming squats", failsLater, squatCycle(25), map[exercise.Tag]int{exercise.Squats: 25}},
		{"static label", classifier.Static("squats"), squatCycle(25), map[exercise.Tag]int{exercise.Squats: 25}},
		{"label names another exercise", classifier.Static("curls"), squatCycle(25), map[exercise.Tag]int{}},
		{"curls without classifier", nil, curlSession(170, 20, 170, 20), map[exercise.Tag]int{exercise.Curls: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = 0
			gw := classifier.NewGateway(tt.workout, nil, pose.DefaultWindow, discardLogger())
			c := newController(t, Options{Exercise: Auto}, &scriptedSource{frames: tt.frames}, gw, nil)

			res, err := c.Run(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			for _, tag := range exercise.Discrete {
				if got := res.Summary.Exercises[tag].Total; got != tt.want[tag] {
					t.Errorf("%s = %d, want %d", tag, got, tt.want[tag])
				}
			}
		})
	}
}

// TestAutoModePlank verifies plank time in auto mode: it accrues when the
// classifier names the plank or names nothing, and not while another
// exercise is labelled.
func TestAutoModePlank(t *testing.T) {
	tests := []struct {
		name    string
		workout classifier.Backend
		want    float64
	}{
		{"labelled plank", classifier.Static("plank"), 4.9},
		{"no workout classifier", nil, 4.9},
		{"labelled squats", classifier.Static("squats"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			frames := repeat(posetest.Plank(178), pose.DefaultWindow-1+50)
			rec := &recorder{}
			gw := classifier.NewGateway(tt.workout, nil, pose.DefaultWindow, discardLogger())
			c := newController(t, Options{Exercise: Auto, Stability: time.Second}, &scriptedSource{frames: frames, clock: clock}, gw, rec)
			c.SetClock(clock)

			res, err := c.Run(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if res.Summary.PlankSeconds != tt.want {
				t.Errorf("plank seconds = %v, want %v", res.Summary.PlankSeconds, tt.want)
			}
			if tt.want > 0 && rec.count(EventPlankProgress) != 4 {
				t.Errorf("plank notifications = %d, want 4", rec.count(EventPlankProgress))
			}
			if res.Summary.TotalReps() != 0 {
				t.Errorf("reps = %d, want 0 while holding a plank", res.Summary.TotalReps())
			}
		})
	}
}
