package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"exam-editor/internal/domain"
	"exam-editor/internal/service"
	"exam-editor/internal/storage"
)

type createSubmissionRequest struct {
	Assignment string `json:"assignment" binding:"required"`
	Language   string `json:"language"`
	Code       string `json:"code" binding:"required"`
}

type SubmissionResponse struct {
	Key        string `json:"key"`
	Location   string `json:"location"`
	Assignment string `json:"assignment"`
	Language   string `json:"language,omitempty"`
	OwnerID    int64  `json:"ownerId"`
	Size       int64  `json:"size"`
	CreatedAt  string `json:"createdAt"`
}

func submissionToResponse(sub domain.Submission) SubmissionResponse {
	return SubmissionResponse{
		Key:        sub.Key,
		Location:   sub.Location,
		Assignment: sub.Assignment,
		Language:   sub.Language,
		OwnerID:    sub.OwnerID,
		Size:       sub.Size,
		CreatedAt:  sub.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) createSubmission(c *gin.Context) {
	p, _ := principalFrom(c)

	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeMessage(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	sub, err := h.submissions.Submit(c.Request.Context(), *p, service.SubmissionInput{
		Assignment: req.Assignment,
		Language:   req.Language,
		Code:       req.Code,
	})
	if err != nil {
		h.submissionError(c, "create submission", err)
		return
	}
	c.JSON(http.StatusCreated, submissionToResponse(*sub))
}

func (h *Handler) listSubmissions(c *gin.Context) {
	h.writeSubmissionList(c, false)
}

func (h *Handler) listAllSubmissions(c *gin.Context) {
	h.writeSubmissionList(c, true)
}

func (h *Handler) writeSubmissionList(c *gin.Context, everyone bool) {
	p, _ := principalFrom(c)

	subs, err := h.submissions.List(c.Request.Context(), *p, c.Query("assignment"), everyone)
	if err != nil {
		h.submissionError(c, "list submissions", err)
		return
	}

	resp := make([]SubmissionResponse, len(subs))
	for i := range subs {
		resp[i] = submissionToResponse(subs[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) submissionURL(c *gin.Context) {
	p, _ := principalFrom(c)

	key := c.Query("key")
	if key == "" {
		writeMessage(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	url, err := h.submissions.PresignURL(c.Request.Context(), *p, key)
	if err != nil {
		h.submissionError(c, "presign submission", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) submissionError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSubmission):
		writeMessage(c, http.StatusBadRequest, "Invalid submission")
	case errors.Is(err, service.ErrSubmissionTooLarge):
		writeMessage(c, http.StatusRequestEntityTooLarge, "Submission too large")
	case errors.Is(err, service.ErrForbidden):
		writeMessage(c, http.StatusForbidden, "Forbidden")
	case errors.Is(err, storage.ErrNotConfigured):
		writeMessage(c, http.StatusServiceUnavailable, "Submission storage is not configured")
	default:
		h.internalError(c, op, err)
	}
}
