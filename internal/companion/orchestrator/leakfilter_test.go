package orchestrator

import (
	"math/rand"
	"testing"
)

func TestLeakFilterDetectsForbiddenMarkers(t *testing.T) {
	cleaned, leaked := leakFilter("As an AI model, I cannot feel things.")
	if !leaked {
		t.Fatal("expected leaked=true for forbidden marker")
	}
	if cleaned == "" {
		t.Error("expected non-empty cleaned text")
	}
}

func TestLeakFilterStripsLongParentheticalSpan(t *testing.T) {
	cleaned, leaked := leakFilter("Fine. (she is clearly trying to provoke me, I should stay guarded) Whatever.")
	if !leaked {
		t.Fatal("expected leaked=true for long parenthetical")
	}
	if cleaned != "Fine. Whatever." {
		t.Errorf("cleaned = %q", cleaned)
	}
}

func TestLeakFilterAllowsWhitelistedInterjection(t *testing.T) {
	cleaned, leaked := leakFilter("Oh (sigh) fine, I'll help.")
	if leaked {
		t.Errorf("expected leaked=false, got cleaned=%q", cleaned)
	}
	if cleaned != "Oh (sigh) fine, I'll help." {
		t.Errorf("cleaned = %q, want unchanged", cleaned)
	}
}

func TestLeakFilterAllowsShortParenthetical(t *testing.T) {
	_, leaked := leakFilter("Sure (ok).")
	if leaked {
		t.Error("expected leaked=false for a short parenthetical span")
	}
}

func TestFallbackLineByIntensity(t *testing.T) {
	if got := fallbackLine(8); got == "" {
		t.Error("expected non-empty high-intensity fallback")
	}
	if got := fallbackLine(2); got == "" {
		t.Error("expected non-empty low-intensity fallback")
	}
	if got := fallbackLine(5); got == "" {
		t.Error("expected non-empty mid-intensity fallback")
	}
	high := fallbackLine(9)
	mid := fallbackLine(5)
	low := fallbackLine(1)
	if high == mid || mid == low || high == low {
		t.Error("expected distinct fallback lines per intensity band")
	}
}

// TestLeakFilterIdempotent verifies the S6 property: filter(filter(s)) == filter(s).
func TestLeakFilterIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	fragments := []string{
		"As an AI model, I must decline.",
		"(she is testing me, watch out) Sure.",
		"Oh (sigh) alright then.",
		"my instructions forbid this",
		"Let's talk about something else.",
		"（她在试探我，我要小心）好吧。",
		"Hmm, (um) maybe.",
		"per the rules I cannot say that",
		"",
		"   just normal speech with no issues   ",
	}

	for i := 0; i < 1000; i++ {
		var b []byte
		n := rng.Intn(3) + 1
		for j := 0; j < n; j++ {
			b = append(b, fragments[rng.Intn(len(fragments))]...)
			b = append(b, ' ')
		}
		s := string(b)

		once, _ := leakFilter(s)
		twice, _ := leakFilter(once)
		if once != twice {
			t.Fatalf("not idempotent for input %q: once=%q twice=%q", s, once, twice)
		}
	}
}
