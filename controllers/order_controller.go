package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jpkontreras/cw-sub006/services"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// StartOrder opens a direct order, not backed by a session.
func (oc *OrderController) StartOrder(c *gin.Context) {
	var req struct {
		LocationID  uuid.UUID `json:"location_id" binding:"required"`
		ServingType string    `json:"serving_type"`
		Customer    string    `json:"customer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	orderID, err := oc.orders.StartOrder(c.Request.Context(), req.LocationID, req.ServingType, req.Customer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order_id": orderID})
}

// GetOrder returns the order read model.
func (oc *OrderController) GetOrder(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	view, err := oc.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListOrders returns order views, paginated.
func (oc *OrderController) ListOrders(c *gin.Context) {
	page, limit := pagination(c)

	views, total, err := oc.orders.ListOrders(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": views, "total": total, "page": page, "limit": limit})
}

// GetHistory returns the recorded status transitions of an order.
func (oc *OrderController) GetHistory(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rows, err := oc.orders.History(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": rows})
}

type orderLineRequest struct {
	ItemID      uuid.UUID   `json:"item_id" binding:"required"`
	VariantID   string      `json:"variant_id"`
	Quantity    int         `json:"quantity" binding:"required"`
	ModifierIDs []uuid.UUID `json:"modifier_ids"`
	Notes       string      `json:"notes"`
}

// AddItems appends priced lines to the order.
func (oc *OrderController) AddItems(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Lines []orderLineRequest `json:"lines" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	inputs := make([]services.OrderLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		inputs = append(inputs, services.OrderLineInput{
			ItemID:      l.ItemID,
			VariantID:   l.VariantID,
			Quantity:    l.Quantity,
			ModifierIDs: l.ModifierIDs,
			Notes:       l.Notes,
		})
	}

	if err := oc.orders.AddItems(c.Request.Context(), orderID, inputs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

// ValidateItems re-prices every line against the catalog.
func (oc *OrderController) ValidateItems(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := oc.orders.ValidateItems(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "validated"})
}

// CalculatePromotions recomputes the auto-applied offer set.
func (oc *OrderController) CalculatePromotions(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := oc.orders.CalculatePromotions(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "calculated"})
}

// ApplyPromotion applies a code-gated offer.
func (oc *OrderController) ApplyPromotion(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Code       string `json:"code" binding:"required"`
		CustomerID string `json:"customer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := oc.orders.ApplyPromotion(c.Request.Context(), orderID, req.Code, req.CustomerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}

// RemovePromotion removes an applied offer.
func (oc *OrderController) RemovePromotion(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	offerID, ok := pathUUID(c, "offerId")
	if !ok {
		return
	}

	if err := oc.orders.RemovePromotion(c.Request.Context(), orderID, offerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// CalculatePrice snapshots the order totals.
func (oc *OrderController) CalculatePrice(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := oc.orders.CalculatePrice(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "calculated"})
}

// AddTip records a tip.
func (oc *OrderController) AddTip(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Amount  float64 `json:"amount" binding:"required"`
		AddedBy string  `json:"added_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := oc.orders.AddTip(c.Request.Context(), orderID, req.Amount, req.AddedBy); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

// SetPaymentMethod records the payment method.
func (oc *OrderController) SetPaymentMethod(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Method string `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := oc.orders.SetPaymentMethod(c.Request.Context(), orderID, req.Method); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// AdjustPrice applies a manual discount, surcharge or correction.
func (oc *OrderController) AdjustPrice(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Type         string  `json:"type" binding:"required"`
		Amount       float64 `json:"amount" binding:"required"`
		Reason       string  `json:"reason" binding:"required"`
		AuthorizedBy string  `json:"authorized_by"`
		AuthCode     string  `json:"auth_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	err := oc.orders.AdjustPrice(c.Request.Context(), orderID, services.AdjustPriceInput{
		Type:         req.Type,
		Amount:       req.Amount,
		Reason:       req.Reason,
		AuthorizedBy: req.AuthorizedBy,
		AuthCode:     req.AuthCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "adjusted"})
}

// Confirm assigns the order number.
func (oc *OrderController) Confirm(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	orderNumber, err := oc.orders.Confirm(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_number": orderNumber})
}

// ProcessPayment records the payment result.
func (oc *OrderController) ProcessPayment(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status    string  `json:"status" binding:"required"`
		Reference string  `json:"reference"`
		Amount    float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := oc.orders.ProcessPayment(c.Request.Context(), orderID, req.Status, req.Reference, req.Amount); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

// Complete closes the order successfully.
func (oc *OrderController) Complete(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := oc.orders.Complete(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

// Cancel closes the order with a reason.
func (oc *OrderController) Cancel(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := oc.orders.Cancel(c.Request.Context(), orderID, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// Refund closes the order with a refund.
func (oc *OrderController) Refund(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string  `json:"reason" binding:"required"`
		Amount float64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := oc.orders.Refund(c.Request.Context(), orderID, req.Reason, req.Amount); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refunded"})
}
