package enhance

import (
	"context"
	"errors"
	"testing"

	"learnagent/internal/llm"
)

// fakeProvider returns a canned response or error for every call.
type fakeProvider struct {
	out string
	err error

	lastMessages []llm.Message
	lastOpts     llm.Options
}

func (f *fakeProvider) Chat(_ context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	f.lastMessages = messages
	f.lastOpts = opts
	return f.out, f.err
}

func TestClassifyParsesProviderJSON(t *testing.T) {
	p := &fakeProvider{out: `{"intent": "debugging", "topic": "segfaults"}`}
	c := NewClassifier(p, 0.3)

	got := c.Classify(context.Background(), "fix my segfault")
	if got.Intent != IntentDebugging || got.Topic != "segfaults" {
		t.Fatalf("got %+v", got)
	}
	if !p.lastOpts.JSONOnly {
		t.Fatalf("classification should request JSON-only output")
	}
}

func TestClassifyToleratesSurroundingText(t *testing.T) {
	p := &fakeProvider{out: "Sure! Here is the result:\n{\"intent\": \"example\", \"topic\": \"sql joins\"}\nHope that helps."}
	c := NewClassifier(p, 0.3)

	got := c.Classify(context.Background(), "show me join examples")
	if got.Intent != IntentExample || got.Topic != "sql joins" {
		t.Fatalf("got %+v", got)
	}
}

func TestClassifyFallbackOnProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	c := NewClassifier(p, 0.3)

	got := c.Classify(context.Background(), "anything")
	if got.Intent != IntentOther || got.Topic != "general" {
		t.Fatalf("want {other general}, got %+v", got)
	}
}

func TestClassifyFallbackOnMalformedJSON(t *testing.T) {
	p := &fakeProvider{out: "not json at all"}
	c := NewClassifier(p, 0.3)

	got := c.Classify(context.Background(), "anything")
	if got.Intent != IntentOther || got.Topic != "general" {
		t.Fatalf("want {other general}, got %+v", got)
	}
}

func TestClassifyUnknownIntentFallsBack(t *testing.T) {
	p := &fakeProvider{out: `{"intent": "philosophy", "topic": ""}`}
	c := NewClassifier(p, 0.3)

	got := c.Classify(context.Background(), "anything")
	if got.Intent != IntentOther {
		t.Fatalf("unknown intent should map to other, got %q", got.Intent)
	}
	if got.Topic != "general" {
		t.Fatalf("empty topic should default to general, got %q", got.Topic)
	}
}

func TestExtractFirstJSON(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{`prefix {"a":{"b":2}} suffix {"c":3}`, `{"a":{"b":2}}`},
		{`no braces here`, `no braces here`},
	}
	for _, tc := range cases {
		if got := ExtractFirstJSON(tc.in); got != tc.want {
			t.Fatalf("ExtractFirstJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
