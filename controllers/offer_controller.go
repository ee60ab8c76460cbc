package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jpkontreras/cw-sub006/offers"
	"github.com/jpkontreras/cw-sub006/services"
)

type OfferController struct {
	service *services.OfferService
}

func NewOfferController(service *services.OfferService) *OfferController {
	return &OfferController{service: service}
}

// CreateOffer stores a new offer definition.
func (oc *OfferController) CreateOffer(c *gin.Context) {
	var offer offers.Offer
	if err := c.ShouldBindJSON(&offer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := oc.service.Create(c.Request.Context(), &offer); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

// GetOffer returns one offer definition.
func (oc *OfferController) GetOffer(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	offer, err := oc.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

// ListOffers returns offer definitions, paginated.
func (oc *OfferController) ListOffers(c *gin.Context) {
	page, limit := pagination(c)

	result, total, err := oc.service.List(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": result, "total": total, "page": page, "limit": limit})
}

// DeactivateOffer retires an offer.
func (oc *OfferController) DeactivateOffer(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := oc.service.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// PreviewOffer dry-runs a code against a submitted cart snapshot.
func (oc *OfferController) PreviewOffer(c *gin.Context) {
	var req struct {
		Code       string    `json:"code" binding:"required"`
		CustomerID string    `json:"customer_id"`
		LocationID uuid.UUID `json:"location_id"`
		Lines      []struct {
			ItemID     uuid.UUID `json:"item_id" binding:"required"`
			CategoryID uuid.UUID `json:"category_id"`
			UnitPrice  float64   `json:"unit_price" binding:"required"`
			Quantity   int       `json:"quantity" binding:"required"`
		} `json:"lines" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	snap := offers.OrderSnapshot{
		LocationID: req.LocationID,
		CustomerID: req.CustomerID,
	}
	for _, l := range req.Lines {
		snap.Lines = append(snap.Lines, offers.SnapshotLine{
			ItemID:     l.ItemID,
			CategoryID: l.CategoryID,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
		})
	}

	result, err := oc.service.Preview(c.Request.Context(), req.Code, req.CustomerID, snap)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
