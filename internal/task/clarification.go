package task

// ClarificationOption is one choice offered for a ClarificationQuestion.
type ClarificationOption struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// DecideForMeOption is the standard "let the agent choose" option every
// ClarificationQuestion should include alongside its concrete choices.
var DecideForMeOption = ClarificationOption{
	Key:         "_auto",
	Label:       "Decide for me",
	Description: "Let the agent choose based on best practices",
}

// ClarificationQuestion is one ambiguity the Clarification stage surfaces
// to the user via the on_clarification callback.
type ClarificationQuestion struct {
	ID            string                 `json:"id"`
	Question      string                 `json:"question"`
	Context       string                 `json:"context,omitempty"`
	Options       []ClarificationOption  `json:"options"`
	AllowCustom   bool                   `json:"allow_custom"`
	DefaultOption string                 `json:"default_option,omitempty"`
}

// ClarificationAnswer is the user's answer to a ClarificationQuestion. A
// SelectedOption of DecideForMeOption.Key means the agent must choose at
// plan time rather than being told a specific answer.
type ClarificationAnswer struct {
	QuestionID     string `json:"question_id"`
	SelectedOption string `json:"selected_option"`
	CustomValue    string `json:"custom_value,omitempty"`
}

// IsDecideForMe reports whether the user deferred this answer to the agent.
func (a ClarificationAnswer) IsDecideForMe() bool {
	return a.SelectedOption == DecideForMeOption.Key
}
