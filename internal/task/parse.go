package task

import (
	"encoding/json"
	"fmt"
)

// ParseFailure is the reason a total parsing function could not turn an
// agent's free-form response into the expected structured shape. It is
// never a panic or a bare error return: every Parse* function in this file
// returns (zero value, *ParseFailure) rather than raising, so the stage
// pipeline's single-retry-then-Blocked policy (spec.md §4.1 "Failure
// semantics") has a concrete value to inspect.
type ParseFailure struct {
	Stage  string // which stage's expected output failed to parse
	Reason string
	Raw    string // the text that failed to parse, for diagnostics
}

func (f *ParseFailure) Error() string {
	return fmt.Sprintf("%s: parse failure: %s", f.Stage, f.Reason)
}

// ExtractJSON finds the first complete top-level JSON value (object or
// array) in s and returns its source text. Agents routinely wrap their
// structured answer in prose or markdown fences; this scans for the first
// '{' or '[' and walks forward tracking brace/bracket depth and string
// state, the same brace-matching approach the reference controller's
// handoff parser uses to pull an AGENTIUM_HANDOFF payload out of free-form
// output.
func ExtractJSON(s string) (string, error) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start == -1 {
		return "", fmt.Errorf("no JSON object or array found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("incomplete JSON value")
}

// ParsePlan is the total parsing function for the Planning stage's
// expected output.
func ParsePlan(raw string) (*Plan, *ParseFailure) {
	jsonStr, err := ExtractJSON(raw)
	if err != nil {
		return nil, &ParseFailure{Stage: "planning", Reason: err.Error(), Raw: raw}
	}
	var p Plan
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		return nil, &ParseFailure{Stage: "planning", Reason: err.Error(), Raw: raw}
	}
	if p.Goal == "" || len(p.Steps) == 0 {
		return nil, &ParseFailure{Stage: "planning", Reason: "plan missing goal or steps", Raw: raw}
	}
	return &p, nil
}

// conditionProposal is the wire shape the agent returns for a single
// proposed condition, decoded then converted into a task.Condition with a
// fresh ID and Pending approval.
type conditionProposal struct {
	Description string `json:"description"`
	Role        Role   `json:"role"`
	Command     string `json:"command"`
	TimeoutSec  int    `json:"timeout_sec"`
}

// ParseConditions is the total parsing function for the Conditions stage's
// expected output: a JSON array of proposed conditions.
func ParseConditions(raw string) ([]Condition, *ParseFailure) {
	jsonStr, err := ExtractJSON(raw)
	if err != nil {
		return nil, &ParseFailure{Stage: "conditions", Reason: err.Error(), Raw: raw}
	}
	var proposals []conditionProposal
	if err := json.Unmarshal([]byte(jsonStr), &proposals); err != nil {
		return nil, &ParseFailure{Stage: "conditions", Reason: err.Error(), Raw: raw}
	}
	out := make([]Condition, 0, len(proposals))
	for _, p := range proposals {
		role := p.Role
		if role != RoleBlocking && role != RoleSignal {
			role = RoleSignal
		}
		c := NewCondition(p.Description, role, p.Command)
		c.TimeoutSec = p.TimeoutSec
		out = append(out, c)
	}
	return out, nil
}

// ParseClarificationQuestions is the total parsing function for the
// Clarification stage's expected output: a JSON array of questions.
func ParseClarificationQuestions(raw string) ([]ClarificationQuestion, *ParseFailure) {
	jsonStr, err := ExtractJSON(raw)
	if err != nil {
		return nil, &ParseFailure{Stage: "clarification", Reason: err.Error(), Raw: raw}
	}
	var qs []ClarificationQuestion
	if err := json.Unmarshal([]byte(jsonStr), &qs); err != nil {
		return nil, &ParseFailure{Stage: "clarification", Reason: err.Error(), Raw: raw}
	}
	for i := range qs {
		hasDecideForMe := false
		for _, o := range qs[i].Options {
			if o.Key == DecideForMeOption.Key {
				hasDecideForMe = true
				break
			}
		}
		if !hasDecideForMe {
			qs[i].Options = append(qs[i].Options, DecideForMeOption)
		}
	}
	return qs, nil
}

// IntakeFields is the structured record the Intake stage produces when the
// raw task description left goals, constraints, or workspace root
// unstated.
type IntakeFields struct {
	Goals       []string `json:"goals"`
	Constraints []string `json:"constraints"`
}

// ParseIntakeFields is the total parsing function for the Intake stage's
// agent query, used only when the caller did not already supply goals and
// constraints directly.
func ParseIntakeFields(raw string) (*IntakeFields, *ParseFailure) {
	jsonStr, err := ExtractJSON(raw)
	if err != nil {
		return nil, &ParseFailure{Stage: "intake", Reason: err.Error(), Raw: raw}
	}
	var f IntakeFields
	if err := json.Unmarshal([]byte(jsonStr), &f); err != nil {
		return nil, &ParseFailure{Stage: "intake", Reason: err.Error(), Raw: raw}
	}
	return &f, nil
}
