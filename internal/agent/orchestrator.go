// Package agent sequences classification, rewriting, persona resolution and
// the model call for each incoming request, implementing the two-phase
// propose/answer protocol.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"learnagent/config"
	"learnagent/internal/conversation"
	"learnagent/internal/enhance"
	"learnagent/internal/llm"
	"learnagent/internal/store"
	"learnagent/internal/telemetry"
)

// ErrModeRequired is returned when an enhanced interaction arrives without a
// usable mode. The request is rejected before any side effect.
var ErrModeRequired = errors.New("mode is required when the enhancer is enabled")

// ErrModel marks a failed final-answer model call on either path; the HTTP
// layer maps it to a bad-gateway response.
var ErrModel = errors.New("model call failed")

const defaultSystemPrompt = "You are a helpful AI assistant focused on teaching and learning. " +
	"Provide clear, educational responses. You can reference previous parts of the conversation when relevant."

// Orchestrator drives one interaction end to end. It holds no per-request
// state; everything per-conversation is derived from the store each call.
type Orchestrator struct {
	store      *store.Store
	conv       *conversation.Manager
	provider   llm.Provider
	classifier *enhance.Classifier
	rewriter   *enhance.Rewriter

	answerTemperature float64
	previewChars      int
	logger            *log.Logger
}

// New wires an orchestrator from an opened store, a constructed provider and
// the loaded configuration.
func New(st *store.Store, provider llm.Provider, cfg *config.Config) *Orchestrator {
	conv := cfg.Conversation.Normalize()
	return &Orchestrator{
		store:             st,
		conv:              conversation.NewManager(st, conv),
		provider:          provider,
		classifier:        enhance.NewClassifier(provider, cfg.LLM.ClassifyTemperature),
		rewriter:          enhance.NewRewriter(provider, cfg.LLM.RewriteTemperature),
		answerTemperature: cfg.LLM.AnswerTemperature,
		previewChars:      conv.AnswerPreviewChars,
		logger:            log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
	}
}

// InteractResult is the outcome of the first phase. Pointer fields are absent
// on the path that does not produce them: the bypass path fills FinalAnswer
// only, the proposal path fills everything except FinalAnswer.
type InteractResult struct {
	InteractionID  string
	ConversationID string

	Intent          *string
	Topic           *string
	RewrittenPrompt *string
	RewriteStrategy *string

	DecisionRationale string
	PromptFeedback    *string
	FinalAnswer       *string
	ShowReasoning     bool
}

// Interact runs phase one. With the enhancer off it answers immediately from
// the raw prompt and persists a complete turn; with it on it proposes a
// rewrite, persists a stub and defers the answer to a later Answer call.
func (o *Orchestrator) Interact(ctx context.Context, prompt string, enhancerEnabled bool, mode, conversationID string) (*InteractResult, error) {
	interactionID := uuid.NewString()
	if conversationID == "" {
		conversationID = uuid.NewString()
		o.logger.Printf("created new conversation %s", conversationID)
	}

	if !enhancerEnabled {
		return o.interactBypass(ctx, prompt, interactionID, conversationID)
	}

	parsedMode := enhance.ParseMode(mode)
	if !parsedMode.Known() {
		telemetry.Interactions.WithLabelValues("propose", "invalid").Inc()
		return nil, ErrModeRequired
	}
	return o.interactPropose(ctx, prompt, parsedMode, interactionID, conversationID)
}

// interactBypass is the single-step path: no classification, no rewrite, the
// raw prompt goes straight to the model and the turn completes in one write.
func (o *Orchestrator) interactBypass(ctx context.Context, prompt, interactionID, conversationID string) (*InteractResult, error) {
	turnIndex, err := o.store.NextTurnIndex(ctx, conversationID)
	if err != nil {
		telemetry.Interactions.WithLabelValues("bypass", "error").Inc()
		return nil, fmt.Errorf("allocate turn: %w", err)
	}

	persona, _ := o.conv.ResolvePersona(ctx, conversationID, turnIndex, prompt, true)
	answer, err := o.generateAnswer(ctx, conversationID, prompt, persona)
	if err != nil {
		telemetry.Interactions.WithLabelValues("bypass", "error").Inc()
		return nil, err
	}

	preview := truncate(answer, o.previewChars)
	turn := &store.Turn{
		InteractionID:  interactionID,
		ConversationID: conversationID,
		OriginalPrompt: prompt,
		FinalAnswer:    &preview,
	}
	if err := o.store.AppendTurn(ctx, turn); err != nil {
		// the answer already exists; losing the log line is not worth a 500
		o.logger.Printf("logging bypass turn failed (conversation %s): %v", conversationID, err)
	}

	telemetry.Interactions.WithLabelValues("bypass", "ok").Inc()
	return &InteractResult{
		InteractionID:     interactionID,
		ConversationID:    conversationID,
		DecisionRationale: enhance.Rationale(false, enhance.ModeNone, enhance.IntentOther, false),
		FinalAnswer:       &answer,
		ShowReasoning:     false,
	}, nil
}

// interactPropose classifies and rewrites the prompt, persists a stub turn
// and returns the proposal without calling the model for an answer.
func (o *Orchestrator) interactPropose(ctx context.Context, prompt string, mode enhance.Mode, interactionID, conversationID string) (*InteractResult, error) {
	classification := o.classifier.Classify(ctx, prompt)
	rewrite := o.rewriter.Rewrite(ctx, prompt, classification.Intent, mode)
	rewriteHappened := rewrite.Prompt != "" && rewrite.Prompt != prompt

	modeStr := string(mode)
	intentStr := string(classification.Intent)
	strategyStr := string(rewrite.Strategy)
	turn := &store.Turn{
		InteractionID:   interactionID,
		ConversationID:  conversationID,
		OriginalPrompt:  prompt,
		Mode:            &modeStr,
		Intent:          &intentStr,
		Topic:           &classification.Topic,
		RewrittenPrompt: &rewrite.Prompt,
	}
	if err := o.store.AppendTurn(ctx, turn); err != nil {
		// Answer falls back to allocating a fresh turn when no stub exists.
		o.logger.Printf("logging stub turn failed (conversation %s): %v", conversationID, err)
	}

	telemetry.Interactions.WithLabelValues("propose", "ok").Inc()
	return &InteractResult{
		InteractionID:     interactionID,
		ConversationID:    conversationID,
		Intent:            &intentStr,
		Topic:             &classification.Topic,
		RewrittenPrompt:   &rewrite.Prompt,
		RewriteStrategy:   &strategyStr,
		DecisionRationale: enhance.Rationale(true, mode, classification.Intent, rewriteHappened),
		PromptFeedback:    formatFeedback(rewrite.Feedback),
		ShowReasoning:     true,
	}, nil
}

// AnswerParams carries the caller's phase-two choices. Prompt is the final
// chosen text; OriginalPrompt and RewrittenPrompt are kept for the turn log.
type AnswerParams struct {
	Prompt          string
	Mode            string
	Intent          string
	Topic           string
	InteractionID   string
	ConversationID  string
	ChosenVersion   string
	OriginalPrompt  string
	RewrittenPrompt string
}

// AnswerResult is the phase-two outcome.
type AnswerResult struct {
	FinalAnswer    string
	ConversationID string
}

// Answer runs phase two: locate the proposal stub, resolve the persona, call
// the model with history, persist the completed turn and evaluate persona
// activation.
func (o *Orchestrator) Answer(ctx context.Context, p AnswerParams) (*AnswerResult, error) {
	stub, conversationID, turnIndex, err := o.locateTurn(ctx, p)
	if err != nil {
		telemetry.Interactions.WithLabelValues("answer", "error").Inc()
		return nil, err
	}

	persona, _ := o.conv.ResolvePersona(ctx, conversationID, turnIndex, p.Prompt, false)
	answer, err := o.generateAnswer(ctx, conversationID, p.Prompt, persona)
	if err != nil {
		telemetry.Interactions.WithLabelValues("answer", "error").Inc()
		return nil, err
	}

	personaPrompt := o.personaToActivate(ctx, p, conversationID, turnIndex)
	preview := truncate(answer, o.previewChars)
	chosen := string(enhance.ParseVersion(p.ChosenVersion))

	if stub != nil {
		if err := o.store.CompleteTurn(ctx, stub.ID, p.Prompt, chosen, preview, personaPrompt); err != nil {
			o.logger.Printf("completing turn %d failed: %v", stub.ID, err)
		}
	} else {
		turn := &store.Turn{
			InteractionID:   p.InteractionID,
			ConversationID:  conversationID,
			OriginalPrompt:  firstNonEmpty(p.OriginalPrompt, p.Prompt),
			Mode:            optional(p.Mode),
			Intent:          optional(p.Intent),
			Topic:           optional(p.Topic),
			RewrittenPrompt: optional(p.RewrittenPrompt),
			ChosenVersion:   &chosen,
			FinalPrompt:     &p.Prompt,
			FinalAnswer:     &preview,
			PersonaPrompt:   personaPrompt,
		}
		if err := o.store.AppendTurn(ctx, turn); err != nil {
			o.logger.Printf("logging answer turn failed (conversation %s): %v", conversationID, err)
		}
	}

	telemetry.Interactions.WithLabelValues("answer", "ok").Inc()
	return &AnswerResult{FinalAnswer: answer, ConversationID: conversationID}, nil
}

// locateTurn resolves which turn this answer belongs to: the proposal stub
// when one exists, otherwise a freshly allocated index in the conversation.
func (o *Orchestrator) locateTurn(ctx context.Context, p AnswerParams) (stub *store.Turn, conversationID string, turnIndex int, err error) {
	conversationID = p.ConversationID
	if p.InteractionID != "" {
		stub, err = o.store.FindStub(ctx, p.InteractionID)
		if err != nil {
			return nil, "", 0, fmt.Errorf("locate stub: %w", err)
		}
		if stub != nil {
			return stub, stub.ConversationID, stub.TurnIndex, nil
		}
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
		o.logger.Printf("created new conversation %s", conversationID)
	}
	turnIndex, err = o.store.NextTurnIndex(ctx, conversationID)
	if err != nil {
		return nil, "", 0, fmt.Errorf("allocate turn: %w", err)
	}
	return nil, conversationID, turnIndex, nil
}

// personaToActivate applies the activation rule: socratic mode, the rewritten
// prompt chosen and present, and no persona already active. Returns the text
// to store on this turn or nil.
func (o *Orchestrator) personaToActivate(ctx context.Context, p AnswerParams, conversationID string, turnIndex int) *string {
	if enhance.ParseMode(p.Mode) != enhance.ModeSocratic {
		return nil
	}
	if enhance.ParseVersion(p.ChosenVersion) != enhance.VersionRewritten || p.RewrittenPrompt == "" {
		return nil
	}
	active, err := o.conv.PersonaActiveAt(ctx, conversationID, turnIndex)
	if err != nil {
		o.logger.Printf("persona activation check failed (conversation %s): %v", conversationID, err)
		return nil
	}
	if active {
		// keeping the original activation turn preserves its expiration clock
		return nil
	}
	o.logger.Printf("activating Socratic persona at turn %d (conversation %s)", turnIndex, conversationID)
	telemetry.PersonaTransitions.WithLabelValues("activated").Inc()
	return &p.RewrittenPrompt
}

// generateAnswer assembles system prompt + history + user prompt and performs
// the final model call.
func (o *Orchestrator) generateAnswer(ctx context.Context, conversationID, prompt, persona string) (string, error) {
	system := defaultSystemPrompt
	if persona != "" {
		system = persona
	}
	history, err := o.conv.History(ctx, conversationID)
	if err != nil {
		o.logger.Printf("loading history failed (conversation %s): %v", conversationID, err)
		history = nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	answer, err := o.provider.Chat(ctx, messages, llm.Options{Temperature: o.answerTemperature})
	if err != nil {
		telemetry.LLMCalls.WithLabelValues("answer", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrModel, err)
	}
	telemetry.LLMCalls.WithLabelValues("answer", "ok").Inc()
	return answer, nil
}

// formatFeedback renders rewrite feedback bullets as one displayable block,
// or nil when there is nothing to show.
func formatFeedback(bullets []string) *string {
	var lines []string
	for _, b := range bullets {
		if b == "" {
			continue
		}
		lines = append(lines, "• "+b)
	}
	if len(lines) == 0 {
		return nil
	}
	joined := strings.Join(lines, "\n")
	return &joined
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
