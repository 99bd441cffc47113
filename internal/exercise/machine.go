package exercise

import (
	"time"

	"github.com/claude/repcoach/internal/pose"
)

// Counts holds the form-bucketed repetition counters for one exercise.
// The total is always derived, so Good+Bad == Total by construction.
type Counts struct {
	Good int `json:"good"`
	Bad  int `json:"bad"`
}

// Total returns the number of counted repetitions.
func (c Counts) Total() int {
	return c.Good + c.Bad
}

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{Good: c.Good + o.Good, Bad: c.Bad + o.Bad}
}

// State is the mutable state of one StateMachine.
type State struct {
	Stage    Stage
	Counts   Counts
	Calories float64
}

// Rep describes one counted repetition.
type Rep struct {
	Exercise       Tag
	Count          int     // total repetitions for the exercise including this one
	Label          string  // resolved form label
	Good           bool    // Label is the exercise's good label
	FromClassifier bool    // Label came from the form classifier, not the geometric rule
	Calories       float64 // calories this repetition added
	Measurement    Measurement
}

// ResolveForm picks the form label for a repetition: the classifier verdict
// when it is one of the exercise's two labels, the geometric rule otherwise.
func ResolveForm(rule RepRule, m Measurement, verdict string) (label string, fromClassifier bool) {
	labels := Labels(rule.Tag())
	if labels.Valid(verdict) {
		return verdict, true
	}
	if rule.GoodForm(m) {
		return labels.Good, false
	}
	return labels.Bad, false
}

// StateMachine turns a frame stream into repetition events for one exercise.
// Stepping and committing are separate so a caller can keep the stage current
// for an exercise without attributing repetitions to it.
type StateMachine struct {
	rule  RepRule
	state State
}

// NewStateMachine creates a machine in StageNone with zeroed counters.
func NewStateMachine(rule RepRule) *StateMachine {
	return &StateMachine{rule: rule}
}

// Tag returns the exercise this machine counts.
func (m *StateMachine) Tag() Tag {
	return m.rule.Tag()
}

// State returns a copy of the current state.
func (m *StateMachine) State() State {
	return m.state
}

// Step measures the frame and applies the hysteresis transition. It reports
// true when the frame completed a repetition; the stage has then already
// moved to the fire stage and the caller may Commit it.
func (m *StateMachine) Step(f pose.Frame) (Measurement, bool) {
	meas := m.rule.Measure(f)
	switch m.rule.Zone(meas) {
	case ZoneArm:
		m.state.Stage = m.rule.ArmStage()
	case ZoneFire:
		if m.state.Stage == m.rule.ArmStage() {
			m.state.Stage = m.rule.FireStage()
			return meas, true
		}
	}
	return meas, false
}

// Commit records a repetition completed by Step, resolving its form label
// from the classifier verdict or the geometric rule.
func (m *StateMachine) Commit(meas Measurement, verdict string) Rep {
	label, fromClassifier := ResolveForm(m.rule, meas, verdict)
	good := label == Labels(m.rule.Tag()).Good
	if good {
		m.state.Counts.Good++
	} else {
		m.state.Counts.Bad++
	}
	cal := m.rule.CaloriesPerRep()
	m.state.Calories += cal
	return Rep{
		Exercise:       m.rule.Tag(),
		Count:          m.state.Counts.Total(),
		Label:          label,
		Good:           good,
		FromClassifier: fromClassifier,
		Calories:       cal,
		Measurement:    meas,
	}
}

// Advance steps and, on a completed repetition, commits it.
func (m *StateMachine) Advance(f pose.Frame, verdict string) (Rep, bool) {
	meas, fired := m.Step(f)
	if !fired {
		return Rep{}, false
	}
	return m.Commit(meas, verdict), true
}

// PlankTracker accumulates time spent in the plank position.
type PlankTracker struct {
	rule       HoldRule
	inPosition bool
	last       time.Time
	seconds    float64
	calories   float64
}

// NewPlankTracker creates a tracker that is out of position with no time accrued.
func NewPlankTracker(rule HoldRule) *PlankTracker {
	return &PlankTracker{rule: rule}
}

// Step evaluates the frame at time now and returns the seconds held since the
// previous tick. Entering the position starts the timer and accrues nothing;
// leaving it stops the timer. The returned time is not recorded until Commit.
func (p *PlankTracker) Step(f pose.Frame, now time.Time) (elapsed float64, entered bool) {
	in := p.rule.InPosition(p.rule.Measure(f))
	switch {
	case in && !p.inPosition:
		p.inPosition = true
		p.last = now
		return 0, true
	case in:
		if d := now.Sub(p.last).Seconds(); d > 0 {
			elapsed = d
		}
		p.last = now
	default:
		p.inPosition = false
	}
	return elapsed, false
}

// Commit adds held seconds to the total and returns the calories they burned.
func (p *PlankTracker) Commit(seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	cal := seconds * p.rule.CaloriesPerSecond()
	p.seconds += seconds
	p.calories += cal
	return cal
}

// Suspend stops the timer without discarding accumulated time. The next
// in-position frame restarts it.
func (p *PlankTracker) Suspend() {
	p.inPosition = false
}

// InPosition reports whether the last frame was in the plank position.
func (p *PlankTracker) InPosition() bool {
	return p.inPosition
}

// Seconds returns the accumulated time in position.
func (p *PlankTracker) Seconds() float64 {
	return p.seconds
}

// Calories returns the calories burned holding the plank.
func (p *PlankTracker) Calories() float64 {
	return p.calories
}
