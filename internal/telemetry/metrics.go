// Package telemetry exposes prometheus metrics for the learning agent,
// served from the default registry via /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Interactions counts /interact and /answer requests by path and outcome.
	Interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnagent_interactions_total",
		Help: "Interaction requests handled, by phase and outcome",
	}, []string{"phase", "outcome"})

	// LLMCalls counts chat-completion calls by purpose and outcome.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnagent_llm_calls_total",
		Help: "Chat completion calls, by purpose and outcome",
	}, []string{"purpose", "outcome"})

	// EnhancerFallbacks counts classify/rewrite calls that degraded to their
	// documented fallback value.
	EnhancerFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnagent_enhancer_fallbacks_total",
		Help: "Classifier and rewriter fallbacks, by stage",
	}, []string{"stage"})

	// PersonaTransitions counts persona lifecycle transitions.
	PersonaTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnagent_persona_transitions_total",
		Help: "Socratic persona transitions, by kind (activated, expired, stop_phrase, bypass)",
	}, []string{"kind"})
)
