package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/identity"
	"github.com/GoblinVrc/service-request-backend/internal/logging"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

const principalKey = "principal"

// AuthMiddleware resolves the bearer credential into a Principal
func AuthMiddleware(resolver identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := identity.ParseBearer(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		principal, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Set("email", principal.Email)
		c.Set("role", string(principal.Role))
		c.Next()
	}
}

// GetPrincipal returns the Principal stored by AuthMiddleware
func GetPrincipal(c *gin.Context) (models.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// principal aborts with 401 when no Principal is present
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := GetPrincipal(c)
	if !ok {
		respondError(c, apperr.Unauthenticated("authentication required"))
		return models.Principal{}, false
	}
	return p, true
}

// respondError renders err as an ErrorResponse with the status of its Kind
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	resp := models.ErrorResponse{Error: apperr.Title(kind), Message: err.Error()}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Details = ae.Details
	}
	if kind == apperr.KindInternal {
		_ = c.Error(err)
		logging.LogKV("error", "request_failed", map[string]interface{}{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		})
		if ae == nil {
			resp.Message = "An unexpected error occurred"
		}
	}
	c.JSON(apperr.HTTPStatus(kind), resp)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   apperr.Title(apperr.KindBadRequest),
		Message: message,
	})
}
