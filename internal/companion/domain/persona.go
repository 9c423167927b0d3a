package domain

// Persona is the immutable per-role static identity loaded once at role
// selection (spec §4.C, §3 "Persona (role)"). Modeled after the teacher's
// entity.Agent, but stripped of the tool/model-binding fields that belong to
// the llm package here — a Persona is pure identity, never mutated after load.
type Persona struct {
	RoleID       string `json:"role_id"`
	RoleName     string `json:"role_name"`
	Age          int    `json:"age"`
	PersonaText  string `json:"persona_text"`
	InitialMood  Mood   `json:"initial_mood"`

	// Paths to auxiliary content, resolved by the Persona Store.
	PersonaPath string `json:"persona_path"`
	SummaryPath string `json:"summary_path"`
	PlotRoot    string `json:"plot_root"`
}
