package domain

import (
	"fmt"
	"strings"
)

// Mood is the five-field emotional vector carried by a role.
//
// Modeled after the teacher's entity.Agent / entity.TokenUsage pattern of small,
// JSON-tagged value structs (see service/agents/domain/entity) — here applied to
// the spec's mood vector (spec §3).
type Mood struct {
	Valence     float64 `json:"valence"`     // [-1.0, 1.0]
	Arousal     float64 `json:"arousal"`     // [0.0, 1.0]
	Intensity   int     `json:"intensity"`   // {1..10}
	Tags        []string `json:"tags"`
	Description string  `json:"description"`
}

const (
	minValence = -1.0
	maxValence = 1.0
	minArousal = 0.0
	maxArousal = 1.0
	minIntensity = 1
	maxIntensity = 10
)

// Clamp enforces the spec §3 invariant: numeric fields are clamped to their
// ranges, intensity is rounded to an integer, and empty tags are filled from a
// deterministic rule on (valence, arousal).
func (m *Mood) Clamp() {
	m.Valence = clampF(m.Valence, minValence, maxValence)
	m.Arousal = clampF(m.Arousal, minArousal, maxArousal)
	if m.Intensity < minIntensity {
		m.Intensity = minIntensity
	}
	if m.Intensity > maxIntensity {
		m.Intensity = maxIntensity
	}
	if len(m.Tags) == 0 {
		m.Tags = []string{DeriveTag(m.Valence, m.Arousal)}
	}
	if len(m.Tags) > 3 {
		m.Tags = m.Tags[:3]
	}
}

// DeriveTag applies the fixed (valence, arousal) -> tag table from spec §4.G.
func DeriveTag(valence, arousal float64) string {
	switch {
	case valence > 0 && arousal >= 0.5:
		return "excited"
	case valence > 0:
		return "pleased"
	case valence < 0 && arousal >= 0.5:
		return "angry"
	case valence < 0:
		return "downcast"
	default:
		return "calm"
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clone returns a deep copy so callers can mutate without aliasing a cached mood.
func (m Mood) Clone() Mood {
	out := m
	out.Tags = append([]string(nil), m.Tags...)
	return out
}

// String renders a short prompt-ready summary, e.g. "valence=0.10 arousal=0.40
// intensity=4 tags=[focused]".
func (m Mood) String() string {
	return fmt.Sprintf("valence=%.2f arousal=%.2f intensity=%d tags=[%s]",
		m.Valence, m.Arousal, m.Intensity, strings.Join(m.Tags, ","))
}
