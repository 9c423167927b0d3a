package domain

import "testing"

func TestMoodClampRanges(t *testing.T) {
	m := Mood{Valence: 5, Arousal: -2, Intensity: 99}
	m.Clamp()
	if m.Valence != maxValence {
		t.Errorf("valence = %v, want %v", m.Valence, maxValence)
	}
	if m.Arousal != minArousal {
		t.Errorf("arousal = %v, want %v", m.Arousal, minArousal)
	}
	if m.Intensity != maxIntensity {
		t.Errorf("intensity = %v, want %v", m.Intensity, maxIntensity)
	}
}

func TestMoodClampFillsEmptyTags(t *testing.T) {
	m := Mood{Valence: 0.5, Arousal: 0.8}
	m.Clamp()
	if len(m.Tags) != 1 || m.Tags[0] != "excited" {
		t.Errorf("tags = %v, want [excited]", m.Tags)
	}
}

func TestMoodClampCapsTagsAtThree(t *testing.T) {
	m := Mood{Tags: []string{"a", "b", "c", "d"}}
	m.Clamp()
	if len(m.Tags) != 3 {
		t.Errorf("len(tags) = %d, want 3", len(m.Tags))
	}
}

func TestDeriveTagTable(t *testing.T) {
	cases := []struct {
		valence, arousal float64
		want             string
	}{
		{0.5, 0.6, "excited"},
		{0.5, 0.4, "pleased"},
		{-0.5, 0.6, "angry"},
		{-0.5, 0.4, "downcast"},
		{0, 0, "calm"},
	}
	for _, c := range cases {
		got := DeriveTag(c.valence, c.arousal)
		if got != c.want {
			t.Errorf("DeriveTag(%v, %v) = %q, want %q", c.valence, c.arousal, got, c.want)
		}
	}
}

func TestMoodCloneDoesNotAliasTags(t *testing.T) {
	m := Mood{Tags: []string{"calm"}}
	clone := m.Clone()
	clone.Tags[0] = "mutated"
	if m.Tags[0] != "calm" {
		t.Errorf("original mutated through clone: %v", m.Tags)
	}
}
