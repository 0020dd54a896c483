package task

// PlanStep is one numbered, described step of a Plan. Shape mirrors the
// reference controller's handoff.ImplementationStep (Order, Description,
// File, Notes) — this runner keeps the same field set but drops the
// PR-handoff-specific vocabulary (it is not produced by a discrete PLAN
// sub-agent, it is the Planning stage's own output).
type PlanStep struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
	File        string `json:"file,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Plan is the Planning stage's output: an overall goal, the ordered steps
// to reach it, and the boundaries the agent should not cross. Immutable
// once approved; superseded wholesale by a new Plan on FeedbackForPlan.
type Plan struct {
	Goal       string     `json:"goal"`
	Steps      []PlanStep `json:"steps"`
	Boundaries []string   `json:"boundaries"`
}
