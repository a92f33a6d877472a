package enhance

import "fmt"

// Rationale produces the end-user explanation of the routing decision. It is
// a pure function of already-known choices, never a model call.
func Rationale(enhancerEnabled bool, mode Mode, intent Intent, rewriteHappened bool) string {
	if !enhancerEnabled {
		return "The enhancer is disabled, so the agent kept your original wording and sent it directly to the model."
	}
	if !mode.Known() {
		return "The enhancer is enabled but no mode was specified."
	}
	if !rewriteHappened {
		return fmt.Sprintf("You're in %s mode, so the agent kept your original wording and sent it directly to the model.", titleMode(mode))
	}

	switch mode {
	case ModeLearning:
		switch intent {
		case IntentConceptual:
			return "Your question was classified as conceptual and you're in Learning mode, so the agent expanded your prompt to encourage a deeper explanation with examples and a small exercise."
		case IntentDirectAnswer:
			return "Your question was classified as requesting a direct answer, but you're in Learning mode, so the agent transformed it into a learning opportunity with structured explanations and examples."
		case IntentDebugging:
			return "Your question was classified as debugging, and you're in Learning mode, so the agent rewrote your prompt to guide you toward understanding the root cause with examples."
		case IntentIntuition:
			return "Your question was classified as seeking intuition, and you're in Learning mode, so the agent expanded your prompt to focus on building deep understanding of why things work."
		case IntentExample:
			return "Your question was classified as requesting examples, and you're in Learning mode, so the agent structured your prompt to request examples with clear explanations."
		default:
			return "You're in Learning mode, so the agent expanded your prompt to encourage a deeper explanation with examples and a small exercise."
		}
	case ModeSocratic:
		return "Because you selected Socratic mode, the agent rewrote your prompt to encourage the model to ask you clarifying questions before explaining."
	default:
		return fmt.Sprintf("You're in %s mode, so the agent processed your prompt accordingly.", titleMode(mode))
	}
}

func titleMode(mode Mode) string {
	switch mode {
	case ModeLearning:
		return "Learning"
	case ModeSocratic:
		return "Socratic"
	default:
		return string(mode)
	}
}
