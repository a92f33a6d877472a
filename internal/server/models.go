package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// Request/response bodies for the interaction API. The mixed snake/camel
// field naming is part of the frontend contract and must not be normalized.

// InteractRequest is the phase-one payload. Mode is only consulted when
// EnhancerEnabled is true.
type InteractRequest struct {
	Prompt          string `json:"prompt"`
	EnhancerEnabled bool   `json:"enhancerEnabled"`
	Mode            string `json:"mode,omitempty"`
	ConversationID  string `json:"conversationId,omitempty"`
}

// InteractResponse is returned by both phase-one paths. Nullable fields are
// pointers so the bypass path serializes them as JSON null.
type InteractResponse struct {
	InteractionID     string  `json:"interaction_id"`
	ConversationID    string  `json:"conversationId"`
	Intent            *string `json:"intent"`
	Topic             *string `json:"topic"`
	RewrittenPrompt   *string `json:"rewritten_prompt"`
	RewriteStrategy   *string `json:"rewrite_strategy"`
	DecisionRationale string  `json:"decisionRationale"`
	PromptFeedback    *string `json:"promptFeedback"`
	FinalAnswer       *string `json:"final_answer"`
	ShowReasoning     bool    `json:"showReasoning"`
}

// AnswerRequest is the phase-two payload. Prompt carries the final chosen
// text; OriginalPrompt and RewrittenPrompt are echoed back for the turn log.
type AnswerRequest struct {
	Prompt          string `json:"prompt"`
	Mode            string `json:"mode"`
	Intent          string `json:"intent"`
	Topic           string `json:"topic"`
	InteractionID   string `json:"interaction_id,omitempty"`
	ConversationID  string `json:"conversationId,omitempty"`
	ChosenVersion   string `json:"chosen_version,omitempty"`
	OriginalPrompt  string `json:"original_prompt,omitempty"`
	RewrittenPrompt string `json:"rewritten_prompt,omitempty"`
}

// AnswerResponse carries the generated answer.
type AnswerResponse struct {
	FinalAnswer    string `json:"final_answer"`
	ConversationID string `json:"conversationId"`
}
