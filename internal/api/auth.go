package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoblinVrc/service-request-backend/internal/models"
)

// Login exchanges email and password for a bearer token
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A valid email and password are required")
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Me echoes the resolved Principal
func (h *Handler) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}
