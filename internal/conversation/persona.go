// Package conversation derives per-conversation state from the turn store:
// the bounded history window and the Socratic persona lifecycle. Nothing in
// here is cached across requests; every request recomputes state from rows.
package conversation

import (
	"context"
	"log"
	"strings"

	"learnagent/config"
	"learnagent/internal/store"
	"learnagent/internal/telemetry"
)

// Manager owns persona lifecycle decisions and the history window for a
// conversation.
type Manager struct {
	Store *store.Store

	// PersonaMaxTurns is the lazy expiration window: a persona activated at
	// turn T is inactive once current_turn - T >= PersonaMaxTurns.
	PersonaMaxTurns int
	// BypassClearThreshold is the number of consecutive bypassed turns
	// (including the current request) after which an active persona is
	// cleared.
	BypassClearThreshold int
	HistoryTurns         int

	logger *log.Logger
}

// NewManager builds a manager with the conversation tuning from config.
func NewManager(st *store.Store, cfg config.ConversationConfig) *Manager {
	cfg = cfg.Normalize()
	return &Manager{
		Store:                st,
		PersonaMaxTurns:      cfg.PersonaMaxTurns,
		BypassClearThreshold: cfg.BypassClearThreshold,
		HistoryTurns:         cfg.HistoryTurns,
		logger:               log.New(log.Writer(), "[PERSONA] ", log.LstdFlags),
	}
}

// stopPhrases end Socratic questioning immediately when they appear anywhere
// in the incoming prompt, case-insensitive.
var stopPhrases = []string{
	"stop asking", "no more questions", "stop questioning",
	"please stop", "don't ask", "no questions", "stop the questions",
	"go with the", "just explain", "give me the", "skip the questions",
	"start explaining", "begin explaining", "explain", "start the explanation",
	"i'm good", "nah im good", "im good", "that's enough", "thats enough",
}

func containsStopPhrase(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, phrase := range stopPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ResolvePersona decides whether a Socratic persona is active for the request
// at currentTurnIndex and applies any transition the request triggers.
//
// The returned persona is "" when none is active. cleared reports that this
// request ended the persona; the stored persona_prompt clear is best-effort
// and a storage failure is logged and swallowed, with the request proceeding
// as if cleared.
func (m *Manager) ResolvePersona(ctx context.Context, conversationID string, currentTurnIndex int, prompt string, enhancerBypassed bool) (persona string, cleared bool) {
	origin, err := m.Store.LatestPersonaTurn(ctx, conversationID)
	if err != nil {
		// state is derived, so a failed read just means no persona this request
		m.logger.Printf("persona lookup failed for conversation %s: %v", conversationID, err)
		return "", false
	}
	if origin == nil || origin.PersonaPrompt == nil {
		return "", false
	}

	// Lazy turn-count expiration: computed every request, never stored.
	turnsSince := currentTurnIndex - origin.TurnIndex
	if turnsSince >= m.PersonaMaxTurns {
		m.logger.Printf("persona expired after %d turns (conversation %s)", turnsSince, conversationID)
		telemetry.PersonaTransitions.WithLabelValues("expired").Inc()
		return "", false
	}

	// Consecutive-bypass cancellation only runs on bypassed proposal-phase
	// requests. Count completed bypassed turns after the origin turn, newest
	// first, stopping at the first enhanced turn; the current request adds 1.
	if enhancerBypassed {
		modes, err := m.Store.CompletedModesAfter(ctx, conversationID, origin.TurnIndex)
		if err != nil {
			m.logger.Printf("bypass count failed for conversation %s: %v", conversationID, err)
		} else {
			consecutive := 1 // the current request
			for _, mode := range modes {
				if mode == nil || *mode == "" {
					consecutive++
					continue
				}
				break
			}
			if consecutive >= m.BypassClearThreshold {
				m.logger.Printf("clearing persona after %d consecutive non-enhanced turns (conversation %s)", consecutive, conversationID)
				telemetry.PersonaTransitions.WithLabelValues("bypass").Inc()
				m.clearPersona(ctx, origin.ID)
				return "", true
			}
		}
	}

	// Explicit cancellation beats the expiration window: a stop phrase ends
	// Socratic mode within the same request regardless of turns_since.
	if containsStopPhrase(prompt) {
		m.logger.Printf("user requested to stop Socratic questioning (conversation %s)", conversationID)
		telemetry.PersonaTransitions.WithLabelValues("stop_phrase").Inc()
		m.clearPersona(ctx, origin.ID)
		return "", true
	}

	return *origin.PersonaPrompt, false
}

// clearPersona overwrites the stored persona to absent. Best-effort: failure
// never blocks the user flow, the request already treats the persona as gone.
func (m *Manager) clearPersona(ctx context.Context, turnID int64) {
	if err := m.Store.ClearPersona(ctx, turnID); err != nil {
		m.logger.Printf("clearing persona failed (turn %d): %v", turnID, err)
	}
}

// PersonaActiveAt reports whether a persona would still be active at the
// given turn index, used by the activation gate so a fresh Socratic rewrite
// does not reset an existing persona's expiration clock.
func (m *Manager) PersonaActiveAt(ctx context.Context, conversationID string, turnIndex int) (bool, error) {
	origin, err := m.Store.LatestPersonaTurn(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if origin == nil || origin.PersonaPrompt == nil {
		return false, nil
	}
	return turnIndex-origin.TurnIndex < m.PersonaMaxTurns, nil
}
