package llm

import "strings"

// ExtractJSON strips markdown code fences and returns the substring from the
// first '{' to the last '}', the "tolerant" structured-output extraction spec
// §4.E requires ("must tolerate model responses that wrap the JSON in code
// fences; strip fences, locate the first '{' and last '}', parse"). Reused by
// the Analyzer, Thought-Chain Composer, Mood Engine's user-impact call, and
// the Plot Generator (spec §4.L: "parsing uses 'first {, last }' extraction").
func ExtractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
