package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/feedback-insights-api/internal/dto"
	"github.com/noah-isme/feedback-insights-api/internal/middleware"
	"github.com/noah-isme/feedback-insights-api/internal/service"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
	"github.com/noah-isme/feedback-insights-api/pkg/response"
)

// FeedbackHandler exposes the feedback submission endpoint.
type FeedbackHandler struct {
	service *service.FeedbackService
}

// NewFeedbackHandler constructs handler.
func NewFeedbackHandler(svc *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// Submit godoc
// @Summary Submit feedback
// @Description Record or replace the caller's rating for a question
// @Tags Feedback
// @Accept json
// @Produce json
// @Param payload body dto.SubmitFeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}

	record, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}
