package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"learnagent/internal/llm"
	"learnagent/internal/telemetry"
)

// Rewriter transforms a prompt into a learning-oriented version selected by
// (mode, intent). Like the classifier it degrades to the original prompt on
// any provider or parse failure.
type Rewriter struct {
	provider    llm.Provider
	temperature float64
	logger      *log.Logger
}

// NewRewriter creates a rewriter on top of the given provider.
func NewRewriter(provider llm.Provider, temperature float64) *Rewriter {
	return &Rewriter{
		provider:    provider,
		temperature: temperature,
		logger:      log.New(log.Writer(), "[REWRITE] ", log.LstdFlags),
	}
}

const rewriterSystemPrompt = "You are a prompt rewriting assistant that helps make prompts more learning-oriented. Always respond with valid JSON only."

const learningInstruction = `
Rewrite this prompt so that it turns the original question into a **deep, structured learning task**, not just a more verbose version.

The rewritten prompt should:
- Keep the user's original goal and topic.
- Start with a request for a **high-level intuition first**, then a more formal explanation.
- Ask for a **step-by-step walkthrough** (when relevant, e.g., algorithms / processes).
- Ask for **2-3 concrete examples or scenarios** that make the idea feel real.
- (If applicable) Ask for **a small numerical or code example** to ground the idea.
- End with **1 short diagnostic question or mini-exercise** the user can use to test themselves.

Constraints:
- Keep the rewritten prompt to 1-3 sentences or bullet points (concise but structured).
- Do NOT restate the original prompt text verbatim; transform it into clear instructions to the LLM.

Example style:
"Explain [concept] starting from an intuitive explanation, then give a step-by-step walkthrough and a small numerical example. After that, show 2-3 real-world applications, and finish with a short question I can answer to check my understanding."
`

const socraticInstruction = `
Rewrite the user's prompt into a **strict meta-instruction** that tells the LLM how to behave as a Socratic tutor.

The rewritten prompt must enforce ALL of the following rules:

1. Start by asking the user **exactly 2 clarifying questions**, one after the other.
2. DO NOT provide ANY explanation, definitions, hints, or teaching until the user has answered **BOTH** questions.
3. After the user answers both questions, ask **1 additional probing question** based on their response.
4. ONLY AFTER the user answers that probing question may you begin explaining the concept.
5. When you explain, tailor it **specifically** to the user's expressed misunderstandings.
6. Continue tutoring by alternating between:
- asking a targeted question,
- waiting for the user's answer,
- giving a **small, incremental** explanation.
7. NEVER give a full explanation in one dump. Break explanations into small pieces.
8. NEVER skip ahead to teaching before the user has responded to your questions.
9. Maintain a tone that is curious, patient, and encouraging.

Important:
- The rewritten prompt should NOT contain the actual questions or explanations.
- It should be a **meta-instruction** describing HOW the LLM should conduct the interaction, not the content itself.

Example style:
"You are a Socratic tutor. Begin by asking me exactly two clarifying questions about my understanding of [topic]. Wait for my responses before explaining anything. After I answer both, ask one targeted follow-up question. Only then begin a step-by-step explanation tailored to my answers. Continue alternating between asking and explaining in small increments."

Return only the rewritten meta-prompt.
`

// intentGuidance layers a secondary stylistic directive on top of the mode
// template. direct_answer and other add nothing.
func intentGuidance(intent Intent) string {
	switch intent {
	case IntentDebugging:
		return `
Because the intent is "debugging", make sure the rewritten prompt:
- Asks the LLM to reason about likely root causes,
- Requests an ordered checklist of things to try,
- And ends by asking what extra context (error messages, code snippets) I should provide next time.
`
	case IntentIntuition:
		return `
Because the intent is "intuition", focus the rewritten prompt on:
- metaphors, visualizations, and "why it works" reasoning,
- comparisons to simpler ideas the user might already know,
- and one or two probing questions that challenge common misconceptions.
`
	case IntentExample:
		return `
Because the intent is "example", make the rewritten prompt:
- Ask explicitly for several diverse, concrete examples,
- Include one example that is very close to a real-world scenario a student might see,
- And ask for a brief explanation of why each example fits.
`
	case IntentConceptual:
		return `
Because the intent is "conceptual", emphasize:
- clear definitions,
- connections between related concepts,
- and a short summary that restates the idea in plain language.
`
	default:
		return ""
	}
}

// Rewrite produces the transformed prompt for (mode, intent). An unknown mode
// is an immediate no-op, not an error.
func (r *Rewriter) Rewrite(ctx context.Context, original string, intent Intent, mode Mode) Rewrite {
	var instruction string
	switch mode {
	case ModeLearning:
		instruction = learningInstruction
	case ModeSocratic:
		instruction = socraticInstruction
	default:
		r.logger.Printf("unknown mode %q, returning original prompt", mode)
		return Rewrite{Prompt: original, Strategy: StrategyOther}
	}
	strategy := DefaultStrategy(mode)

	rewritePrompt := fmt.Sprintf(`You are a prompt rewriting assistant.

Given:
- the user's original prompt: "%s"
- the selected mode: %s
- the detected intent: %s

%s

You MUST:
1. Rewrite the prompt (if helpful for this mode and intent).
2. Provide a short explanation (2-3 bullet points) for the user that:
   - highlights the most important change you made (not every tiny tweak),
   - ties that change directly to their original wording or goal,
   - and gives ONE very concrete "next time you write a prompt, try X" tip.
Avoid generic feedback like "this will enhance your learning" without specifics.

Instruction for rewriting:
%s

Respond in strict JSON with:
{
  "rewrittenPrompt": "...",
  "rewriteStrategy": "%s",
  "promptFeedback": [
    "First bullet...",
    "Second bullet...",
    "Optional third bullet..."
  ]
}`, original, mode, intent, intentGuidance(intent), instruction, strategy)

	messages := []llm.Message{
		{Role: "system", Content: rewriterSystemPrompt},
		{Role: "user", Content: rewritePrompt},
	}
	out, err := r.provider.Chat(ctx, messages, llm.Options{Temperature: r.temperature, JSONOnly: true})
	if err != nil {
		r.logger.Printf("rewrite failed, returning original prompt: %v", err)
		telemetry.LLMCalls.WithLabelValues("rewrite", "error").Inc()
		telemetry.EnhancerFallbacks.WithLabelValues("rewrite").Inc()
		return Rewrite{Prompt: original, Strategy: strategy}
	}
	telemetry.LLMCalls.WithLabelValues("rewrite", "ok").Inc()

	var parsed struct {
		RewrittenPrompt string   `json:"rewrittenPrompt"`
		RewriteStrategy string   `json:"rewriteStrategy"`
		PromptFeedback  []string `json:"promptFeedback"`
	}
	if err := json.Unmarshal([]byte(ExtractFirstJSON(out)), &parsed); err != nil {
		r.logger.Printf("rewrite parse failed, returning original prompt: %v", err)
		telemetry.EnhancerFallbacks.WithLabelValues("rewrite").Inc()
		return Rewrite{Prompt: original, Strategy: strategy}
	}
	result := Rewrite{Prompt: parsed.RewrittenPrompt, Strategy: strategy, Feedback: parsed.PromptFeedback}
	if result.Prompt == "" {
		result.Prompt = original
	}
	if s := parsed.RewriteStrategy; s == string(StrategyLearning) || s == string(StrategySocratic) || s == string(StrategyOther) {
		result.Strategy = Strategy(s)
	}
	return result
}
