package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/controllers"
	"github.com/jpkontreras/cw-sub006/middleware"
	"github.com/jpkontreras/cw-sub006/repository"
)

// RegisterRoutes wires the HTTP surface. Mutating session and order
// routes run behind the idempotency middleware.
func RegisterRoutes(
	router *gin.Engine,
	sessionController *controllers.SessionController,
	orderController *controllers.OrderController,
	offerController *controllers.OfferController,
	cache *repository.SessionCache,
	idempotencyTTL time.Duration,
	logger *zap.Logger,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "order-session-engine"})
	})

	idem := middleware.Idempotency(cache, idempotencyTTL, logger)

	sessions := router.Group("/sessions")
	{
		sessions.POST("", idem, sessionController.StartSession)
		sessions.GET("", sessionController.ListSessions)
		sessions.GET("/:id", sessionController.GetSession)
		sessions.GET("/:id/history", sessionController.GetHistory)

		sessions.POST("/:id/search", sessionController.RecordSearch)
		sessions.POST("/:id/browse", sessionController.RecordBrowse)
		sessions.POST("/:id/items", idem, sessionController.AddItem)
		sessions.PUT("/:id/items/:itemId", idem, sessionController.ChangeQuantity)
		sessions.DELETE("/:id/items/:itemId", idem, sessionController.RemoveItem)
		sessions.PUT("/:id/serving-type", sessionController.SetServingType)
		sessions.PUT("/:id/customer", sessionController.SetCustomerInfo)
		sessions.PUT("/:id/payment-method", sessionController.SelectPaymentMethod)
		sessions.POST("/:id/draft", sessionController.SaveDraft)
		sessions.POST("/:id/recover", sessionController.Recover)
		sessions.POST("/:id/fail", sessionController.Fail)
		sessions.POST("/:id/convert", idem, sessionController.Convert)
	}

	orders := router.Group("/orders")
	{
		orders.POST("", idem, orderController.StartOrder)
		orders.GET("", orderController.ListOrders)
		orders.GET("/:id", orderController.GetOrder)
		orders.GET("/:id/history", orderController.GetHistory)

		orders.POST("/:id/items", idem, orderController.AddItems)
		orders.POST("/:id/validate", orderController.ValidateItems)
		orders.POST("/:id/promotions/calculate", orderController.CalculatePromotions)
		orders.POST("/:id/promotions", idem, orderController.ApplyPromotion)
		orders.DELETE("/:id/promotions/:offerId", orderController.RemovePromotion)
		orders.POST("/:id/price", orderController.CalculatePrice)
		orders.POST("/:id/tip", orderController.AddTip)
		orders.PUT("/:id/payment-method", orderController.SetPaymentMethod)
		orders.POST("/:id/adjust", idem, orderController.AdjustPrice)
		orders.POST("/:id/confirm", idem, orderController.Confirm)
		orders.POST("/:id/payment", idem, orderController.ProcessPayment)
		orders.POST("/:id/complete", orderController.Complete)
		orders.POST("/:id/cancel", orderController.Cancel)
		orders.POST("/:id/refund", idem, orderController.Refund)
	}

	offers := router.Group("/offers")
	{
		offers.POST("", offerController.CreateOffer)
		offers.GET("", offerController.ListOffers)
		offers.GET("/:id", offerController.GetOffer)
		offers.DELETE("/:id", offerController.DeactivateOffer)
		offers.POST("/preview", offerController.PreviewOffer)
	}
}
