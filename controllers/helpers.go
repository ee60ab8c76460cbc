// Package controllers holds the gin HTTP handlers. Handlers bind and
// validate transport input, call a service and translate its error kind
// to a status code; no domain decisions are made here.
package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jpkontreras/cw-sub006/apperrors"
	"github.com/jpkontreras/cw-sub006/services"
)

// respondError writes the error with its mapped status code. Promotion
// rule failures carry every failed rule so clients can show them all.
func respondError(c *gin.Context, err error) {
	var promoErr *services.PromotionFailureError
	if errors.As(err, &promoErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    "offer is not applicable",
			"failures": promoErr.Failures,
		})
		return
	}

	appErr := apperrors.AsError(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message, "kind": appErr.Kind})
}

// pathUUID parses a uuid path parameter, responding 400 on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads page and limit query params with sane bounds.
func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
