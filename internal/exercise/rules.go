// Package exercise holds the per-exercise geometric rules and the hysteresis
// state machines that count repetitions from them.
package exercise

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/claude/repcoach/internal/pose"
)

// Tag identifies an exercise.
type Tag string

const (
	Curls   Tag = "curls"
	Pushups Tag = "pushups"
	Situps  Tag = "situps"
	Squats  Tag = "squats"
	Plank   Tag = "plank"
)

// Discrete lists the repetition-counted exercises in display order.
var Discrete = []Tag{Curls, Pushups, Situps, Squats}

// aliases maps spoken or singular names onto tags.
var aliases = map[string]Tag{
	"curl":    Curls,
	"pushup":  Pushups,
	"push-up": Pushups,
	"situp":   Situps,
	"sit-up":  Situps,
	"squat":   Squats,
	"planks":  Plank,
}

// ParseTag resolves an exercise name. Returns an error for unknown names.
func ParseTag(s string) (Tag, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if _, ok := table[Tag(name)]; ok {
		return Tag(name), nil
	}
	if tag, ok := aliases[name]; ok {
		return tag, nil
	}
	return "", fmt.Errorf("unknown exercise %q", s)
}

// Stage is the phase an exercise is currently in.
type Stage int

const (
	StageNone Stage = iota
	StageUp
	StageDown
)

func (s Stage) String() string {
	switch s {
	case StageUp:
		return "up"
	case StageDown:
		return "down"
	default:
		return "none"
	}
}

// Zone is where a measurement falls relative to the hysteresis ranges.
type Zone int

const (
	// ZoneDead lies between the two ranges and never changes the stage.
	ZoneDead Zone = iota
	// ZoneArm sets the resting stage that a repetition must start from.
	ZoneArm
	// ZoneFire completes a repetition when the stage is armed.
	ZoneFire
)

// Measurement is the geometry a rule extracts from one frame.
type Measurement struct {
	Primary   float64 // main joint angle, degrees
	Secondary float64 // second joint angle where the rule uses one, degrees
	Height    float64 // rule-specific normalized vertical quantity
}

// FormLabels are the two verdicts that are valid for one exercise.
type FormLabels struct {
	Good string
	Bad  string
}

// Labels returns the form labels for tag ("<exercise>good", "<exercise>bad").
func Labels(tag Tag) FormLabels {
	return FormLabels{Good: string(tag) + "good", Bad: string(tag) + "bad"}
}

// Valid reports whether label is one of the pair.
func (l FormLabels) Valid(label string) bool {
	return label == l.Good || label == l.Bad
}

// Rule is the geometry common to every exercise.
type Rule interface {
	Tag() Tag
	Measure(f pose.Frame) Measurement
}

// RepRule describes a repetition-counted exercise.
type RepRule interface {
	Rule
	Zone(m Measurement) Zone
	// ArmStage is the stage set by ZoneArm; FireStage is entered on a repetition.
	ArmStage() Stage
	FireStage() Stage
	// GoodForm is the geometric form verdict used when no classifier verdict applies.
	GoodForm(m Measurement) bool
	CaloriesPerRep() float64
}

// HoldRule describes a duration-tracked exercise.
type HoldRule interface {
	Rule
	InPosition(m Measurement) bool
	CaloriesPerSecond() float64
}

var table = map[Tag]Rule{
	Curls:   curlRule{},
	Pushups: pushupRule{},
	Situps:  situpRule{},
	Squats:  squatRule{},
	Plank:   plankRule{},
}

// Lookup returns the rule for tag.
func Lookup(tag Tag) (Rule, error) {
	r, ok := table[tag]
	if !ok {
		return nil, fmt.Errorf("unknown exercise %q", tag)
	}
	return r, nil
}

// Info is a catalog entry describing one exercise's configuration.
type Info struct {
	Tag               Tag     `json:"tag"`
	Kind              string  `json:"kind"`
	CaloriesPerRep    float64 `json:"calories_per_rep,omitempty"`
	CaloriesPerSecond float64 `json:"calories_per_second,omitempty"`
	GoodLabel         string  `json:"good_label"`
	BadLabel          string  `json:"bad_label"`
}

// Catalog lists every configured exercise, sorted by tag.
func Catalog() []Info {
	out := make([]Info, 0, len(table))
	for tag, r := range table {
		l := Labels(tag)
		info := Info{Tag: tag, GoodLabel: l.Good, BadLabel: l.Bad}
		switch rr := r.(type) {
		case RepRule:
			info.Kind = "reps"
			info.CaloriesPerRep = rr.CaloriesPerRep()
		case HoldRule:
			info.Kind = "hold"
			info.CaloriesPerSecond = rr.CaloriesPerSecond()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// curlRule: shoulder-elbow-wrist. Extended arm arms the curl, full flexion counts.
type curlRule struct{}

func (curlRule) Tag() Tag { return Curls }

func (curlRule) Measure(f pose.Frame) Measurement {
	return Measurement{Primary: f.JointAngle(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist)}
}

func (curlRule) Zone(m Measurement) Zone {
	switch {
	case m.Primary > 160:
		return ZoneArm
	case m.Primary < 30:
		return ZoneFire
	}
	return ZoneDead
}

func (curlRule) ArmStage() Stage         { return StageDown }
func (curlRule) FireStage() Stage        { return StageUp }
func (curlRule) CaloriesPerRep() float64 { return 0.5 }

func (curlRule) GoodForm(m Measurement) bool {
	return m.Primary < 25 || m.Primary > 170
}

// pushupRule: elbow angle drives the rep, the shoulder-hip-ankle line must stay
// roughly straight, and the shoulder height separates the bottom from the top.
type pushupRule struct{}

func (pushupRule) Tag() Tag { return Pushups }

func (pushupRule) Measure(f pose.Frame) Measurement {
	return Measurement{
		Primary:   f.JointAngle(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist),
		Secondary: f.JointAngle(pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle),
		Height:    f.Point(pose.LeftShoulder).Y,
	}
}

func (pushupRule) Zone(m Measurement) Zone {
	if m.Secondary < 150 {
		return ZoneDead
	}
	switch {
	case m.Primary < 90 && m.Height > 0.6:
		return ZoneArm
	case m.Primary > 150 && m.Height < 0.4:
		return ZoneFire
	}
	return ZoneDead
}

func (pushupRule) ArmStage() Stage         { return StageDown }
func (pushupRule) FireStage() Stage        { return StageUp }
func (pushupRule) CaloriesPerRep() float64 { return 0.5 }

func (pushupRule) GoodForm(m Measurement) bool {
	return m.Secondary >= 175 && m.Secondary <= 183 && m.Primary > 165 && m.Height < 0.35
}

// situpRule: shoulder-hip-knee. Lying back arms, curling up counts.
type situpRule struct{}

func (situpRule) Tag() Tag { return Situps }

func (situpRule) Measure(f pose.Frame) Measurement {
	return Measurement{Primary: f.JointAngle(pose.LeftShoulder, pose.LeftHip, pose.LeftKnee)}
}

func (situpRule) Zone(m Measurement) Zone {
	switch {
	case m.Primary > 120:
		return ZoneArm
	case m.Primary < 75:
		return ZoneFire
	}
	return ZoneDead
}

func (situpRule) ArmStage() Stage         { return StageDown }
func (situpRule) FireStage() Stage        { return StageUp }
func (situpRule) CaloriesPerRep() float64 { return 0.6 }

func (situpRule) GoodForm(m Measurement) bool {
	return m.Primary < 50
}

// squatRule: hip-knee-ankle. Standing arms, reaching depth counts.
type squatRule struct{}

func (squatRule) Tag() Tag { return Squats }

func (squatRule) Measure(f pose.Frame) Measurement {
	return Measurement{Primary: f.JointAngle(pose.LeftHip, pose.LeftKnee, pose.LeftAnkle)}
}

func (squatRule) Zone(m Measurement) Zone {
	switch {
	case m.Primary > 150:
		return ZoneArm
	case m.Primary < 90:
		return ZoneFire
	}
	return ZoneDead
}

func (squatRule) ArmStage() Stage         { return StageUp }
func (squatRule) FireStage() Stage        { return StageDown }
func (squatRule) CaloriesPerRep() float64 { return 0.7 }

func (squatRule) GoodForm(m Measurement) bool {
	return m.Primary < 70
}

// plankRule: shoulder-hip-ankle line held straight with the body horizontal.
// Height is the vertical spread between shoulder and ankle, which keeps a
// person standing upright from registering as a plank.
type plankRule struct{}

func (plankRule) Tag() Tag { return Plank }

func (plankRule) Measure(f pose.Frame) Measurement {
	return Measurement{
		Primary: f.JointAngle(pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle),
		Height:  math.Abs(f.Point(pose.LeftShoulder).Y - f.Point(pose.LeftAnkle).Y),
	}
}

func (plankRule) InPosition(m Measurement) bool {
	return m.Primary > 160 && m.Primary < 195 && m.Height < 0.25
}

// 5 kcal per minute.
func (plankRule) CaloriesPerSecond() float64 { return 5.0 / 60.0 }
