package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jpkontreras/cw-sub006/services"
)

type SessionController struct {
	sessions  *services.SessionService
	converter *services.Converter
}

func NewSessionController(sessions *services.SessionService, converter *services.Converter) *SessionController {
	return &SessionController{sessions: sessions, converter: converter}
}

// StartSession opens a new session.
func (sc *SessionController) StartSession(c *gin.Context) {
	var req struct {
		LocationID uuid.UUID `json:"location_id" binding:"required"`
		CustomerID string    `json:"customer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	sessionID, err := sc.sessions.StartSession(c.Request.Context(), req.LocationID, req.CustomerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": sessionID})
}

// GetSession returns the session read model. min_sequence lets a client
// that just issued a command demand a view at least that fresh.
func (sc *SessionController) GetSession(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	minSeq, _ := strconv.ParseInt(c.DefaultQuery("min_sequence", "0"), 10, 64)

	view, err := sc.sessions.GetSession(c.Request.Context(), sessionID, minSeq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListSessions returns sessions in a status, paginated.
func (sc *SessionController) ListSessions(c *gin.Context) {
	status := c.DefaultQuery("status", "active")
	page, limit := pagination(c)

	views, total, err := sc.sessions.ListSessions(c.Request.Context(), status, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views, "total": total, "page": page, "limit": limit})
}

// GetHistory returns the raw event stream of a session.
func (sc *SessionController) GetHistory(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	stream, err := sc.sessions.History(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": stream})
}

// RecordSearch records a catalog search as activity.
func (sc *SessionController) RecordSearch(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := sc.sessions.RecordSearch(c.Request.Context(), sessionID, req.Query); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// RecordBrowse records a category browse as activity.
func (sc *SessionController) RecordBrowse(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		CategoryID uuid.UUID `json:"category_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := sc.sessions.RecordBrowse(c.Request.Context(), sessionID, req.CategoryID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// AddItem adds an item to the cart. Prices in the payload are ignored;
// the catalog decides.
func (sc *SessionController) AddItem(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ItemID      uuid.UUID   `json:"item_id" binding:"required"`
		VariantID   string      `json:"variant_id"`
		Quantity    int         `json:"quantity" binding:"required"`
		ModifierIDs []uuid.UUID `json:"modifier_ids"`
		Notes       string      `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	err := sc.sessions.AddItem(c.Request.Context(), sessionID, services.AddItemInput{
		ItemID:      req.ItemID,
		VariantID:   req.VariantID,
		Quantity:    req.Quantity,
		ModifierIDs: req.ModifierIDs,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

// ChangeQuantity sets a line's absolute quantity; zero removes the line.
func (sc *SessionController) ChangeQuantity(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathUUID(c, "itemId")
	if !ok {
		return
	}
	var req struct {
		Quantity  *int   `json:"quantity" binding:"required"`
		VariantID string `json:"variant_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := sc.sessions.ChangeQuantity(c.Request.Context(), sessionID, itemID, req.VariantID, *req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// RemoveItem removes a cart line.
func (sc *SessionController) RemoveItem(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathUUID(c, "itemId")
	if !ok {
		return
	}

	if err := sc.sessions.RemoveItem(c.Request.Context(), sessionID, itemID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// SetServingType records dine-in / takeaway / delivery.
func (sc *SessionController) SetServingType(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ServingType string `json:"serving_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := sc.sessions.SetServingType(c.Request.Context(), sessionID, req.ServingType); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// SetCustomerInfo records checkout contact details.
func (sc *SessionController) SetCustomerInfo(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name  string `json:"name" binding:"required"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := sc.sessions.SetCustomerInfo(c.Request.Context(), sessionID, req.Name, req.Phone, req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// SelectPaymentMethod records the intended payment method.
func (sc *SessionController) SelectPaymentMethod(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
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

	if err := sc.sessions.SelectPaymentMethod(c.Request.Context(), sessionID, req.Method); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// SaveDraft records an explicit draft checkpoint.
func (sc *SessionController) SaveDraft(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := sc.sessions.SaveDraft(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// Recover reactivates a dormant session.
func (sc *SessionController) Recover(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := sc.sessions.Recover(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recovered"})
}

// Fail moves a session to the error state.
func (sc *SessionController) Fail(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
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

	if err := sc.sessions.Fail(c.Request.Context(), sessionID, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "failed"})
}

// Convert turns the session's cart into an order. Re-converting returns
// the existing order id with 409.
func (sc *SessionController) Convert(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	orderID, err := sc.converter.Convert(c.Request.Context(), sessionID)
	if err != nil {
		if orderID != uuid.Nil {
			c.JSON(http.StatusConflict, gin.H{"error": "session is already converted", "order_id": orderID})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order_id": orderID})
}
