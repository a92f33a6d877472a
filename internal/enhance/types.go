package enhance

// Mode selects the overall prompt transformation shape.
type Mode string

const (
	ModeLearning Mode = "learning"
	ModeSocratic Mode = "socratic"
	// ModeNone means the enhancer was bypassed for the turn.
	ModeNone Mode = ""
)

// ParseMode is the single place unknown mode strings are resolved. Anything
// that is not a known mode maps to ModeNone, which downstream treats as a
// rewrite no-op rather than an error.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeLearning, ModeSocratic:
		return Mode(s)
	default:
		return ModeNone
	}
}

// Known reports whether m is one of the selectable modes.
func (m Mode) Known() bool { return m == ModeLearning || m == ModeSocratic }

// Intent is the coarse learning-intent category of a prompt.
type Intent string

const (
	IntentDirectAnswer Intent = "direct_answer"
	IntentConceptual   Intent = "conceptual"
	IntentDebugging    Intent = "debugging"
	IntentIntuition    Intent = "intuition"
	IntentExample      Intent = "example"
	IntentOther        Intent = "other"
)

// ParseIntent funnels every unknown intent value to IntentOther.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentDirectAnswer, IntentConceptual, IntentDebugging, IntentIntuition, IntentExample, IntentOther:
		return Intent(s)
	default:
		return IntentOther
	}
}

// Strategy names the rewrite transformation that was applied.
type Strategy string

const (
	StrategyLearning Strategy = "learning_explanation"
	StrategySocratic Strategy = "socratic_questioning"
	StrategyOther    Strategy = "other"
)

// DefaultStrategy is the fallback strategy reported when a rewrite call for
// the given mode fails and the original prompt is used instead.
func DefaultStrategy(mode Mode) Strategy {
	switch mode {
	case ModeLearning:
		return StrategyLearning
	case ModeSocratic:
		return StrategySocratic
	default:
		return StrategyOther
	}
}

// Version identifies which prompt text the user chose to send.
type Version string

const (
	VersionOriginal  Version = "original"
	VersionRewritten Version = "rewritten"
	VersionEdited    Version = "edited"
)

// ParseVersion maps unknown chosen-version values to VersionOriginal.
func ParseVersion(s string) Version {
	switch Version(s) {
	case VersionOriginal, VersionRewritten, VersionEdited:
		return Version(s)
	default:
		return VersionOriginal
	}
}

// Classification is the classifier output.
type Classification struct {
	Intent Intent
	Topic  string
}

// Rewrite is the rewriter output. Prompt is always usable: on any failure it
// carries the original prompt unchanged.
type Rewrite struct {
	Prompt   string
	Strategy Strategy
	Feedback []string
}
