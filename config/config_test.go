package config

import "testing"

func TestConversationNormalizeDefaults(t *testing.T) {
	got := ConversationConfig{}.Normalize()
	if got.HistoryTurns != 5 {
		t.Fatalf("history turns = %d", got.HistoryTurns)
	}
	if got.PersonaMaxTurns != 3 {
		t.Fatalf("persona max turns = %d", got.PersonaMaxTurns)
	}
	if got.BypassClearThreshold != 2 {
		t.Fatalf("bypass clear threshold = %d", got.BypassClearThreshold)
	}
	if got.AnswerPreviewChars != 500 {
		t.Fatalf("answer preview chars = %d", got.AnswerPreviewChars)
	}
}

func TestConversationNormalizeKeepsExplicitValues(t *testing.T) {
	got := ConversationConfig{HistoryTurns: 2, PersonaMaxTurns: 7, BypassClearThreshold: 4, AnswerPreviewChars: 100}.Normalize()
	if got.HistoryTurns != 2 || got.PersonaMaxTurns != 7 || got.BypassClearThreshold != 4 || got.AnswerPreviewChars != 100 {
		t.Fatalf("explicit values overwritten: %+v", got)
	}
}

func TestLLMValidate(t *testing.T) {
	if err := (LLMConfig{}).Validate(); err == nil {
		t.Fatalf("empty config should fail")
	}
	if err := (LLMConfig{APIKey: "k"}).Validate(); err == nil {
		t.Fatalf("missing model should fail")
	}
	if err := (LLMConfig{APIKey: "k", Model: "gpt-4o-mini"}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestSQLiteValidate(t *testing.T) {
	if err := (SQLiteConfig{}).Validate(); err == nil {
		t.Fatalf("empty path should fail")
	}
	if err := (SQLiteConfig{Path: "learning_agent.db"}).Validate(); err != nil {
		t.Fatalf("valid path rejected: %v", err)
	}
}
