package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GoblinVrc/service-request-backend/internal/models"
)

func requestID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Request ID must be a positive integer")
		return 0, false
	}
	return id, true
}

// CreateRequest submits a new service request
func (h *Handler) CreateRequest(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var draft models.ServiceRequestDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.requests.Create(c.Request.Context(), p, draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListRequests returns the caller's visible requests
func (h *Handler) ListRequests(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var filter models.RequestListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err.Error())
		return
	}

	out, err := h.requests.List(c.Request.Context(), p, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetRequest returns one request with its attachments
func (h *Handler) GetRequest(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := requestID(c, "id")
	if !ok {
		return
	}

	req, err := h.requests.Get(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// UpdateRequestStatus transitions a request. The status comes from the JSON
// body or, for older clients, the new_status query parameter.
func (h *Handler) UpdateRequestStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := requestID(c, "id")
	if !ok {
		return
	}

	var body models.UpdateStatusRequest
	if q := c.Query("new_status"); q != "" {
		body.Status = q
		body.Note = c.Query("note")
	} else if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Body must be JSON with a status field")
		return
	}

	res, err := h.requests.UpdateStatus(c.Request.Context(), p, id, body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetRequestActivity returns the activity log of a request
func (h *Handler) GetRequestActivity(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := requestID(c, "id")
	if !ok {
		return
	}

	out, err := h.requests.Activity(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
