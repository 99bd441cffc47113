package exercise

import "testing"

func TestParseTag(t *testing.T) {
	tests := []struct {
		in      string
		want    Tag
		wantErr bool
	}{
		{"curls", Curls, false},
		{"Curl", Curls, false},
		{" pushup ", Pushups, false},
		{"sit-up", Situps, false},
		{"squats", Squats, false},
		{"plank", Plank, false},
		{"burpees", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseTag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestRangesDoNotOverlap verifies for each repetition rule that no primary
// angle is classified as both arming and firing, sweeping the full range.
func TestRangesDoNotOverlap(t *testing.T) {
	for _, tag := range Discrete {
		rule := repRule(t, tag)
		sawArm, sawFire := false, false
		for deg := 0.0; deg <= 180; deg += 0.5 {
			for _, h := range []float64{0.3, 0.7} {
				z := rule.Zone(Measurement{Primary: deg, Secondary: 178, Height: h})
				sawArm = sawArm || z == ZoneArm
				sawFire = sawFire || z == ZoneFire
			}
		}
		if !sawArm || !sawFire {
			t.Errorf("%s: arm=%v fire=%v, want both reachable", tag, sawArm, sawFire)
		}
		if rule.ArmStage() == rule.FireStage() {
			t.Errorf("%s: arm and fire stages are both %v", tag, rule.ArmStage())
		}
	}
}

func TestLabels(t *testing.T) {
	l := Labels(Squats)
	if l.Good != "squatsgood" || l.Bad != "squatsbad" {
		t.Errorf("Labels(squats) = %+v", l)
	}
	if l.Valid("unknown") || l.Valid("curlsgood") || !l.Valid("squatsbad") {
		t.Error("Valid returned wrong result")
	}
}

// TestCatalog verifies that the catalog lists every exercise with its
// calorie constant.
func TestCatalog(t *testing.T) {
	cat := Catalog()
	if len(cat) != 5 {
		t.Fatalf("catalog entries = %d, want 5", len(cat))
	}
	byTag := map[Tag]Info{}
	for _, info := range cat {
		byTag[info.Tag] = info
	}
	if byTag[Squats].CaloriesPerRep != 0.7 || byTag[Squats].Kind != "reps" {
		t.Errorf("squats entry = %+v", byTag[Squats])
	}
	if byTag[Plank].Kind != "hold" || byTag[Plank].CaloriesPerSecond == 0 {
		t.Errorf("plank entry = %+v", byTag[Plank])
	}
}
