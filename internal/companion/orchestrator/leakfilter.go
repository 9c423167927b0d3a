package orchestrator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// forbiddenMarkers is the long forbidden-substring list spec §9's design note
// keeps from the source implementation: explicit inner-OS / meta-instruction
// markers that must never appear in a character's reply.
var forbiddenMarkers = []string{
	"inner os", "inner-os", "system prompt", "as an ai", "as an ai model",
	"my instructions", "per my persona", "per the rules", "i was told to",
	"according to my programming", "my guidelines", "as a language model",
}

// whitelistedInterjections are the only tokens a parenthesized span may be
// composed solely of without being flagged (spec §9: "reject spans > 2
// characters unless composed solely of a whitelisted interjection set").
var whitelistedInterjections = map[string]bool{
	"ha": true, "haha": true, "hahaha": true, "hehe": true, "heh": true,
	"hmm": true, "hmm~": true, "um": true, "uh": true, "uhh": true,
	"lol": true, "sigh": true, "oh": true, "ugh": true, "oof": true,
	"wow": true, "whew": true, "tsk": true, "ahem": true, "eh": true,
}

// parenRE matches both half-width and full-width parenthesized spans.
var parenRE = regexp.MustCompile(`[(（]([^()（）]*)[)）]`)

// leakFilter is the idempotent predicate spec §8/S6 requires: scanning for
// any parenthesized inner-thought pattern and the forbidden-marker list,
// stripping whatever is flagged. Grounded on spec §9's design note: "keep the
// list, but additionally run a structural check on every parenthesized span...
// The two checks together are the idempotent predicate whose property S6
// verifies." filter(filter(s)) == filter(s) holds because passes repeat until
// one finds nothing left to strip, and such a pass returns its input unchanged.
func leakFilter(text string) (cleaned string, leaked bool) {
	cleaned, leaked = leakPass(text)
	for again := leaked; again; {
		cleaned, again = leakPass(cleaned)
	}
	return cleaned, leaked
}

// leakPass runs the marker scan and the parenthesized-span check once.
// Stripping can expose new leaks (a nested span, markers joined by whitespace
// collapsing), which is why leakFilter repeats it.
func leakPass(text string) (cleaned string, leaked bool) {
	lower := strings.ToLower(text)
	for _, marker := range forbiddenMarkers {
		if strings.Contains(lower, marker) {
			leaked = true
		}
	}

	cleaned = parenRE.ReplaceAllStringFunc(text, func(match string) string {
		sub := parenRE.FindStringSubmatch(match)
		if len(sub) < 2 || isWhitelistedSpan(sub[1]) {
			return match
		}
		leaked = true
		return ""
	})

	if leaked {
		for _, marker := range forbiddenMarkers {
			cleaned = stripCaseInsensitive(cleaned, marker)
		}
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return cleaned, leaked
}

// isWhitelistedSpan reports whether a parenthesized span's content is short
// enough, or composed solely of whitelisted interjection tokens, to pass.
func isWhitelistedSpan(inner string) bool {
	trimmed := strings.TrimSpace(inner)
	if utf8.RuneCountInString(trimmed) <= 2 {
		return true
	}
	for _, tok := range strings.Fields(strings.ToLower(trimmed)) {
		tok = strings.Trim(tok, ".,!?~～ ")
		if !whitelistedInterjections[tok] {
			return false
		}
	}
	return true
}

func stripCaseInsensitive(s, needle string) string {
	for {
		idx := strings.Index(strings.ToLower(s), needle)
		if idx < 0 {
			return s
		}
		s = s[:idx] + s[idx+len(needle):]
	}
}

// fallbackLine returns the bounded intensity-keyed fallback line emitted when
// a regenerated response still leaks (spec §4.J step 7).
func fallbackLine(intensity int) string {
	switch {
	case intensity >= 7:
		return "I'm not in the mood — leave me alone."
	case intensity <= 3:
		return "...sorry, I need a moment."
	default:
		return "Let's not talk about that right now."
	}
}
