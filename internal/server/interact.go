package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"learnagent/internal/agent"
)

// InteractHandler exposes the two-phase interaction protocol over HTTP.
type InteractHandler struct {
	Agent *agent.Orchestrator
}

// Register mounts the interaction routes on the echo instance.
func (h *InteractHandler) Register(e *echo.Echo) {
	e.POST("/interact", h.interact)
	e.POST("/answer", h.answer)
}

// interact handles phase one: enhancer off answers directly, enhancer on
// returns a rewrite proposal to be confirmed via /answer.
func (h *InteractHandler) interact(c echo.Context) error {
	var req InteractRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}
	if req.EnhancerEnabled && req.Mode == "" {
		// reject before any side effect
		return echo.NewHTTPError(http.StatusBadRequest, "mode is required when enhancer is enabled")
	}

	res, err := h.Agent.Interact(c.Request().Context(), req.Prompt, req.EnhancerEnabled, req.Mode, req.ConversationID)
	if err != nil {
		return mapAgentError(err)
	}
	return c.JSON(http.StatusOK, InteractResponse{
		InteractionID:     res.InteractionID,
		ConversationID:    res.ConversationID,
		Intent:            res.Intent,
		Topic:             res.Topic,
		RewrittenPrompt:   res.RewrittenPrompt,
		RewriteStrategy:   res.RewriteStrategy,
		DecisionRationale: res.DecisionRationale,
		PromptFeedback:    res.PromptFeedback,
		FinalAnswer:       res.FinalAnswer,
		ShowReasoning:     res.ShowReasoning,
	})
}

// answer handles phase two: the caller's chosen prompt becomes the model
// input and the proposal stub is completed.
func (h *InteractHandler) answer(c echo.Context) error {
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	res, err := h.Agent.Answer(c.Request().Context(), agent.AnswerParams{
		Prompt:          req.Prompt,
		Mode:            req.Mode,
		Intent:          req.Intent,
		Topic:           req.Topic,
		InteractionID:   req.InteractionID,
		ConversationID:  req.ConversationID,
		ChosenVersion:   req.ChosenVersion,
		OriginalPrompt:  req.OriginalPrompt,
		RewrittenPrompt: req.RewrittenPrompt,
	})
	if err != nil {
		return mapAgentError(err)
	}
	return c.JSON(http.StatusOK, AnswerResponse{FinalAnswer: res.FinalAnswer, ConversationID: res.ConversationID})
}

func mapAgentError(err error) error {
	switch {
	case errors.Is(err, agent.ErrModeRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrModel):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return err
	}
}
