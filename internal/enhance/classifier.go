package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"learnagent/internal/llm"
	"learnagent/internal/telemetry"
)

// Classifier maps a raw prompt to a learning intent and topic via the LLM.
// Classification is best-effort: every failure path yields the documented
// fallback and never an error.
type Classifier struct {
	provider    llm.Provider
	temperature float64
	logger      *log.Logger
}

// NewClassifier creates a classifier on top of the given provider.
func NewClassifier(provider llm.Provider, temperature float64) *Classifier {
	return &Classifier{
		provider:    provider,
		temperature: temperature,
		logger:      log.New(log.Writer(), "[CLASSIFY] ", log.LstdFlags),
	}
}

var fallbackClassification = Classification{Intent: IntentOther, Topic: "general"}

const classifierSystemPrompt = "You are a learning intent classifier. Always respond with valid JSON only."

// Classify returns the intent category and topic for a prompt.
func (c *Classifier) Classify(ctx context.Context, prompt string) Classification {
	classificationPrompt := fmt.Sprintf(`Analyze the following user prompt and classify it by learning intent and extract the main topic.

Learning Intent Categories:
- "direct_answer": User wants a quick, direct answer without explanation
- "conceptual": User wants to understand a concept deeply
- "debugging": User is trying to fix an error or solve a problem
- "intuition": User wants to build intuition or understand "why" something works
- "example": User wants examples or demonstrations
- "other": Doesn't fit the above categories

Return your response in this exact JSON format:
{
  "intent": "one of the categories above",
  "topic": "a short topic description (e.g., 'reinforcement learning', 'sql joins', 'python decorators')"
}

User prompt:
%s

JSON response:`, prompt)

	messages := []llm.Message{
		{Role: "system", Content: classifierSystemPrompt},
		{Role: "user", Content: classificationPrompt},
	}
	out, err := c.provider.Chat(ctx, messages, llm.Options{Temperature: c.temperature, JSONOnly: true})
	if err != nil {
		c.logger.Printf("classification failed, using fallback: %v", err)
		telemetry.LLMCalls.WithLabelValues("classify", "error").Inc()
		telemetry.EnhancerFallbacks.WithLabelValues("classify").Inc()
		return fallbackClassification
	}
	telemetry.LLMCalls.WithLabelValues("classify", "ok").Inc()

	var parsed struct {
		Intent string `json:"intent"`
		Topic  string `json:"topic"`
	}
	if err := json.Unmarshal([]byte(ExtractFirstJSON(out)), &parsed); err != nil {
		c.logger.Printf("classification parse failed, using fallback: %v", err)
		telemetry.EnhancerFallbacks.WithLabelValues("classify").Inc()
		return fallbackClassification
	}
	topic := parsed.Topic
	if topic == "" {
		topic = "general"
	}
	return Classification{Intent: ParseIntent(parsed.Intent), Topic: topic}
}

// ExtractFirstJSON attempts to find the first top-level JSON object in a string
func ExtractFirstJSON(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return s
}
