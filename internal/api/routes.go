package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoblinVrc/service-request-backend/internal/identity"
)

// RegisterRoutes mounts the health, public and authenticated routes on r
func RegisterRoutes(r *gin.Engine, h *Handler, resolver identity.Resolver) {
	// Health and readiness endpoints
	r.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ready", h.Ready)
	r.GET("/", h.Info)

	r.POST("/api/auth/login", h.Login)

	apiGroup := r.Group("/api")
	apiGroup.Use(AuthMiddleware(resolver))
	{
		apiGroup.GET("/auth/me", h.Me)

		apiGroup.GET("/requests", h.ListRequests)
		apiGroup.POST("/requests", h.CreateRequest)
		apiGroup.GET("/requests/:id", h.GetRequest)
		apiGroup.PATCH("/requests/:id/status", h.UpdateRequestStatus)
		apiGroup.GET("/requests/:id/activity", h.GetRequestActivity)

		apiGroup.POST("/upload", h.UploadAttachments)
		apiGroup.GET("/download/:id/:file", h.DownloadAttachment)

		apiGroup.POST("/validate/item", h.ValidateItem)
		apiGroup.GET("/validate/customer", h.ValidateCustomer)

		apiGroup.GET("/lookups/serial", h.SearchSerials)
		apiGroup.GET("/lookups/lot", h.SearchLots)
		apiGroup.GET("/lookups/item", h.SearchItems)
		apiGroup.GET("/lookups/reasons", h.GetReasons)

		// Intake form aliases used by the web client
		apiGroup.POST("/intake/submit", h.CreateRequest)
		apiGroup.GET("/intake/issue-reasons", h.GetIssueReasons)
		apiGroup.GET("/intake/repairability-statuses", h.GetRepairabilityStatuses)

		apiGroup.GET("/countries", h.GetCountries)
		apiGroup.GET("/countries/:code/languages", h.GetCountryLanguages)
		apiGroup.GET("/countries/:code/legal", h.GetLegalDocuments)
	}
}
