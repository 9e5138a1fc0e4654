package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-backend-go/internal/ai"
	"clinic-backend-go/internal/authz"
)

// AIHandler exposes the AI text flows and the sign-in error catalogue.
type AIHandler struct {
	flows  *ai.Flows
	logger *zap.Logger
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(flows *ai.Flows, logger *zap.Logger) *AIHandler {
	return &AIHandler{flows: flows, logger: logger}
}

// SummarizeCondition handles POST /ai/summarize-condition
func (h *AIHandler) SummarizeCondition(c *gin.Context) {
	var in ai.ConditionSummaryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.flows.SummarizeCondition(c.Request.Context(), in)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// SuggestExercise handles POST /ai/suggest-exercise
func (h *AIHandler) SuggestExercise(c *gin.Context) {
	var in ai.ExerciseSuggestionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.flows.SuggestExercise(c.Request.Context(), in)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// DescribeAuthError handles GET /auth/errors/*code. Provider codes contain a
// slash, e.g. auth/popup-blocked.
func DescribeAuthError(c *gin.Context) {
	code := strings.TrimPrefix(c.Param("code"), "/")
	c.JSON(http.StatusOK, AuthErrorResponse{
		Code:    code,
		Message: authz.DescribeAuthError(code),
		Known:   authz.IsKnownAuthError(code),
	})
}
