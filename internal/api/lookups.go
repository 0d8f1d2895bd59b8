package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoblinVrc/service-request-backend/internal/models"
)

func (h *Handler) SearchSerials(c *gin.Context) {
	out, err := h.lookups.SearchSerials(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) SearchLots(c *gin.Context) {
	out, err := h.lookups.SearchLots(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) SearchItems(c *gin.Context) {
	out, err := h.lookups.SearchItems(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetReasons groups every language's issue reasons
func (h *Handler) GetReasons(c *gin.Context) {
	out, err := h.lookups.IssueReasons(c.Request.Context(), "")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetIssueReasons groups the issue reasons of one language (default en)
func (h *Handler) GetIssueReasons(c *gin.Context) {
	out, err := h.lookups.IssueReasons(c.Request.Context(), c.DefaultQuery("language_code", "en"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetRepairabilityStatuses(c *gin.Context) {
	out, err := h.lookups.RepairabilityStatuses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ValidateItem checks item eligibility for a country
func (h *Handler) ValidateItem(c *gin.Context) {
	var req models.ValidateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.lookups.ValidateItem(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ValidateCustomer looks up autofill data by email and country
func (h *Handler) ValidateCustomer(c *gin.Context) {
	res, err := h.lookups.ValidateCustomer(c.Request.Context(), c.Query("email"), c.Query("country_code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetCountries(c *gin.Context) {
	out, err := h.lookups.Countries(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetCountryLanguages(c *gin.Context) {
	out, err := h.lookups.CountryLanguages(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetLegalDocuments(c *gin.Context) {
	out, err := h.lookups.LegalDocuments(c.Request.Context(), c.Param("code"), c.Query("language_code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
