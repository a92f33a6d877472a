package conversation

import (
	"context"
	"fmt"

	"learnagent/internal/llm"
)

// History builds the model context window from the last HistoryTurns completed
// turns of the conversation, oldest first. Each turn contributes the user's
// original prompt and the stored answer preview as an assistant message.
// Incomplete turns never appear, so a bypassed request racing its own stub is
// not a concern.
func (m *Manager) History(ctx context.Context, conversationID string) ([]llm.Message, error) {
	turns, err := m.Store.RecentCompleted(ctx, conversationID, m.HistoryTurns)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	msgs := make([]llm.Message, 0, 2*len(turns))
	for _, t := range turns {
		if t.FinalAnswer == nil {
			continue
		}
		msgs = append(msgs,
			llm.Message{Role: "user", Content: t.OriginalPrompt},
			llm.Message{Role: "assistant", Content: *t.FinalAnswer},
		)
	}
	return msgs, nil
}
