package llm

import "context"

// FuncProvider adapts a plain function to Provider — used by tests to script
// deterministic model responses without standing up a real eino chat model.
type FuncProvider struct {
	Fn func(systemText, userText string) (string, error)
}

func (f FuncProvider) Complete(_ context.Context, systemText, userText string, _ CompletionOptions) (string, error) {
	return f.Fn(systemText, userText)
}

// ScriptedProvider replays a fixed sequence of responses, one per call, then
// repeats the final entry — used to simulate the "first call leaks, second
// call is clean" regeneration scenario (spec S4).
type ScriptedProvider struct {
	Responses []string
	Errs      []error
	calls     int
}

func (s *ScriptedProvider) Complete(_ context.Context, _, _ string, _ CompletionOptions) (string, error) {
	i := s.calls
	if i >= len(s.Responses) {
		i = len(s.Responses) - 1
	}
	s.calls++
	var err error
	if i < len(s.Errs) {
		err = s.Errs[i]
	}
	if i < 0 {
		return "", err
	}
	return s.Responses[i], err
}

// Calls returns how many times Complete has been invoked.
func (s *ScriptedProvider) Calls() int { return s.calls }
