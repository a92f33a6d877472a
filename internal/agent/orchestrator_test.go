package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"learnagent/config"
	"learnagent/internal/llm"
	"learnagent/internal/store"
)

// scriptedProvider replays canned responses in call order and records every
// request for assertions.
type scriptedProvider struct {
	script []scriptedCall
	calls  [][]llm.Message
}

type scriptedCall struct {
	out string
	err error
}

func (p *scriptedProvider) Chat(_ context.Context, messages []llm.Message, _ llm.Options) (string, error) {
	p.calls = append(p.calls, messages)
	if len(p.script) == 0 {
		return "", errors.New("unexpected provider call")
	}
	next := p.script[0]
	p.script = p.script[1:]
	return next.out, next.err
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			ClassifyTemperature: 0.3,
			RewriteTemperature:  0.5,
			AnswerTemperature:   0.7,
		},
		Conversation: config.ConversationConfig{}.Normalize(),
	}
}

func newTestOrchestrator(t *testing.T, p *scriptedProvider, cfg *config.Config) (*Orchestrator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "turns.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st, p, cfg), st
}

const classifyOut = `{"intent": "conceptual", "topic": "recursion"}`
const rewriteOut = `{"rewrittenPrompt": "socratic meta prompt", "rewriteStrategy": "socratic_questioning", "promptFeedback": ["Asked questions first"]}`

func TestInteractBypassAnswersDirectly(t *testing.T) {
	p := &scriptedProvider{script: []scriptedCall{{out: "recursion is self-reference"}}}
	o, st := newTestOrchestrator(t, p, testConfig())

	res, err := o.Interact(context.Background(), "what is recursion", false, "", "")
	if err != nil {
		t.Fatalf("interact: %v", err)
	}
	if res.ShowReasoning {
		t.Fatalf("bypass must not show reasoning")
	}
	if res.FinalAnswer == nil || *res.FinalAnswer != "recursion is self-reference" {
		t.Fatalf("missing final answer: %+v", res)
	}
	if res.Intent != nil || res.Topic != nil || res.RewrittenPrompt != nil {
		t.Fatalf("bypass must leave enhancer fields null")
	}
	if res.ConversationID == "" || res.InteractionID == "" {
		t.Fatalf("ids must be generated")
	}

	// the single provider call carries the default system prompt
	if len(p.calls) != 1 {
		t.Fatalf("want 1 model call, got %d", len(p.calls))
	}
	if p.calls[0][0].Role != "system" || !strings.Contains(p.calls[0][0].Content, "teaching and learning") {
		t.Fatalf("unexpected system message: %+v", p.calls[0][0])
	}

	// a complete bypassed turn was persisted at index 0
	turns, err := st.RecentCompleted(context.Background(), res.ConversationID, 5)
	if err != nil {
		t.Fatalf("recent completed: %v", err)
	}
	if len(turns) != 1 || turns[0].TurnIndex != 0 {
		t.Fatalf("want one completed turn at index 0, got %+v", turns)
	}
	if turns[0].Mode != nil || turns[0].Intent != nil || turns[0].Topic != nil {
		t.Fatalf("bypassed turn must have absent mode/intent/topic")
	}
}

func TestInteractEnhancedRequiresMode(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedProvider{}, testConfig())
	if _, err := o.Interact(context.Background(), "hello", true, "", ""); !errors.Is(err, ErrModeRequired) {
		t.Fatalf("want ErrModeRequired, got %v", err)
	}
	if _, err := o.Interact(context.Background(), "hello", true, "turbo", ""); !errors.Is(err, ErrModeRequired) {
		t.Fatalf("unknown mode should be rejected, got %v", err)
	}
}

func TestInteractProposeStoresStub(t *testing.T) {
	p := &scriptedProvider{script: []scriptedCall{{out: classifyOut}, {out: rewriteOut}}}
	o, st := newTestOrchestrator(t, p, testConfig())

	res, err := o.Interact(context.Background(), "what is recursion", true, "socratic", "")
	if err != nil {
		t.Fatalf("interact: %v", err)
	}
	if !res.ShowReasoning {
		t.Fatalf("proposal must show reasoning")
	}
	if res.FinalAnswer != nil {
		t.Fatalf("proposal must not carry an answer")
	}
	if res.Intent == nil || *res.Intent != "conceptual" {
		t.Fatalf("intent not surfaced: %+v", res)
	}
	if res.RewrittenPrompt == nil || *res.RewrittenPrompt != "socratic meta prompt" {
		t.Fatalf("rewrite not surfaced: %+v", res)
	}
	if res.PromptFeedback == nil || !strings.HasPrefix(*res.PromptFeedback, "• ") {
		t.Fatalf("feedback should be bulleted, got %v", res.PromptFeedback)
	}

	stub, err := st.FindStub(context.Background(), res.InteractionID)
	if err != nil {
		t.Fatalf("find stub: %v", err)
	}
	if stub == nil || stub.TurnIndex != 0 {
		t.Fatalf("stub not persisted: %+v", stub)
	}
	if stub.Mode == nil || *stub.Mode != "socratic" {
		t.Fatalf("stub mode wrong: %+v", stub)
	}
}

func TestAnswerCompletesStubAndActivatesPersona(t *testing.T) {
	p := &scriptedProvider{script: []scriptedCall{
		{out: classifyOut},
		{out: rewriteOut},
		{out: "let me ask you two questions"},
	}}
	o, st := newTestOrchestrator(t, p, testConfig())
	ctx := context.Background()

	proposal, err := o.Interact(ctx, "what is recursion", true, "socratic", "")
	if err != nil {
		t.Fatalf("interact: %v", err)
	}

	res, err := o.Answer(ctx, AnswerParams{
		Prompt:          *proposal.RewrittenPrompt,
		Mode:            "socratic",
		Intent:          "conceptual",
		Topic:           "recursion",
		InteractionID:   proposal.InteractionID,
		ConversationID:  proposal.ConversationID,
		ChosenVersion:   "rewritten",
		OriginalPrompt:  "what is recursion",
		RewrittenPrompt: *proposal.RewrittenPrompt,
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.FinalAnswer != "let me ask you two questions" {
		t.Fatalf("got %q", res.FinalAnswer)
	}

	// the stub completed in place, no extra turn appeared
	next, err := st.NextTurnIndex(ctx, proposal.ConversationID)
	if err != nil {
		t.Fatalf("next index: %v", err)
	}
	if next != 1 {
		t.Fatalf("answer should complete the stub, next index = %d", next)
	}

	persona, err := st.LatestPersonaTurn(ctx, proposal.ConversationID)
	if err != nil {
		t.Fatalf("latest persona: %v", err)
	}
	if persona == nil || *persona.PersonaPrompt != "socratic meta prompt" {
		t.Fatalf("persona not activated: %+v", persona)
	}
}

func TestAnswerSkipsActivationForOriginalVersion(t *testing.T) {
	p := &scriptedProvider{script: []scriptedCall{
		{out: classifyOut},
		{out: rewriteOut},
		{out: "plain answer"},
	}}
	o, st := newTestOrchestrator(t, p, testConfig())
	ctx := context.Background()

	proposal, err := o.Interact(ctx, "what is recursion", true, "socratic", "")
	if err != nil {
		t.Fatalf("interact: %v", err)
	}
	if _, err := o.Answer(ctx, AnswerParams{
		Prompt:          "what is recursion",
		Mode:            "socratic",
		Intent:          "conceptual",
		Topic:           "recursion",
		InteractionID:   proposal.InteractionID,
		ConversationID:  proposal.ConversationID,
		ChosenVersion:   "original",
		RewrittenPrompt: *proposal.RewrittenPrompt,
	}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	persona, err := st.LatestPersonaTurn(ctx, proposal.ConversationID)
	if err != nil {
		t.Fatalf("latest persona: %v", err)
	}
	if persona != nil {
		t.Fatalf("original version must not activate a persona")
	}
}

func TestPersonaInjectedIntoFollowUpBypass(t *testing.T) {
	p := &scriptedProvider{script: []scriptedCall{
		{out: classifyOut},
		{out: rewriteOut},
		{out: "question one?"},
		{out: "question two?"},
	}}
	o, _ := newTestOrchestrator(t, p, testConfig())
	ctx := context.Background()

	proposal, err := o.Interact(ctx, "what is recursion", true, "socratic", "")
	if err != nil {
		t.Fatalf("interact: %v", err)
	}
	if _, err := o.Answer(ctx, AnswerParams{
		Prompt:          *proposal.RewrittenPrompt,
		Mode:            "socratic",
		Intent:          "conceptual",
		Topic:           "recursion",
		InteractionID:   proposal.InteractionID,
		ConversationID:  proposal.ConversationID,
		ChosenVersion:   "rewritten",
		RewrittenPrompt: *proposal.RewrittenPrompt,
	}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// one bypassed follow-up: persona still active, becomes the system prompt
	if _, err := o.Interact(ctx, "my answer to your question", false, "", proposal.ConversationID); err != nil {
		t.Fatalf("bypass interact: %v", err)
	}
	last := p.calls[len(p.calls)-1]
	if last[0].Role != "system" || last[0].Content != "socratic meta prompt" {
		t.Fatalf("persona should be the system prompt, got %+v", last[0])
	}
	// and the history window carries the previous exchange
	foundHistory := false
	for _, msg := range last[1 : len(last)-1] {
		if msg.Role == "assistant" && msg.Content == "question one?" {
			foundHistory = true
		}
	}
	if !foundHistory {
		t.Fatalf("previous answer missing from history: %+v", last)
	}
}

func TestAnswerWithoutStubAllocatesTurn(t *testing.T) {
	p := &scriptedProvider{script: []scriptedCall{{out: "answer"}}}
	o, st := newTestOrchestrator(t, p, testConfig())
	ctx := context.Background()

	res, err := o.Answer(ctx, AnswerParams{
		Prompt: "explain pointers please",
		Mode:   "learning",
		Intent: "conceptual",
		Topic:  "pointers",
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.ConversationID == "" {
		t.Fatalf("a conversation id must be allocated")
	}
	turns, err := st.RecentCompleted(ctx, res.ConversationID, 5)
	if err != nil {
		t.Fatalf("recent completed: %v", err)
	}
	if len(turns) != 1 || turns[0].TurnIndex != 0 {
		t.Fatalf("want one turn at index 0, got %+v", turns)
	}
}

func TestModelFailureSurfacesOnBothPaths(t *testing.T) {
	p := &scriptedProvider{script: []scriptedCall{{err: errors.New("upstream down")}}}
	o, st := newTestOrchestrator(t, p, testConfig())
	ctx := context.Background()

	_, err := o.Interact(ctx, "hello", false, "", "conv")
	if !errors.Is(err, ErrModel) {
		t.Fatalf("bypass should surface ErrModel, got %v", err)
	}
	// nothing persisted on failure
	next, err := st.NextTurnIndex(ctx, "conv")
	if err != nil {
		t.Fatalf("next index: %v", err)
	}
	if next != 0 {
		t.Fatalf("failed bypass must not persist a turn")
	}

	p.script = []scriptedCall{{err: errors.New("upstream down")}}
	if _, err := o.Answer(ctx, AnswerParams{Prompt: "p", Mode: "learning", Intent: "other", Topic: "t"}); !errors.Is(err, ErrModel) {
		t.Fatalf("answer should surface ErrModel, got %v", err)
	}
}

func TestAnswerPreviewTruncatedOnWrite(t *testing.T) {
	long := strings.Repeat("x", 40)
	p := &scriptedProvider{script: []scriptedCall{{out: long}}}
	cfg := testConfig()
	cfg.Conversation.AnswerPreviewChars = 10
	o, st := newTestOrchestrator(t, p, cfg)
	ctx := context.Background()

	res, err := o.Interact(ctx, "hello", false, "", "")
	if err != nil {
		t.Fatalf("interact: %v", err)
	}
	if *res.FinalAnswer != long {
		t.Fatalf("caller must receive the full answer")
	}
	turns, err := st.RecentCompleted(ctx, res.ConversationID, 1)
	if err != nil {
		t.Fatalf("recent completed: %v", err)
	}
	if got := *turns[0].FinalAnswer; got != strings.Repeat("x", 10) {
		t.Fatalf("stored preview not truncated: %d chars", len(got))
	}
}
