package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Daninc24/dropshipping-sub001/pkg/ginmiddleware"
)

// API bundles the handlers for route registration.
type API struct {
	Products      *ProductHandler
	Cart          *CartHandler
	Orders        *OrderHandler
	Payments      *PaymentHandler
	Wallet        *WalletHandler
	Delivery      *DeliveryHandler
	Coupons       *CouponHandler
	Notifications *NotificationHandler
	Settings      *SettingsHandler
}

// Register mounts the API under /api. Three tiers: public routes, routes
// behind JWT auth, and admin routes behind the role guard.
func (a *API) Register(r gin.IRouter, jwtSecret []byte) {
	api := r.Group("/api")

	// Public storefront surface. The M-Pesa callback is public too; its
	// trust anchor is the stored checkout request id, not a token.
	api.GET("/products", a.Products.List)
	api.GET("/products/:id", a.Products.Get)
	api.GET("/zones", a.Delivery.ListZones)
	api.GET("/zones/:id/quote", a.Delivery.Quote)
	api.GET("/settings", a.Settings.All)
	api.GET("/settings/:key", a.Settings.Get)
	api.POST("/payments/mpesa/callback", a.Payments.Callback)

	user := api.Group("", ginmiddleware.Auth(jwtSecret))
	{
		user.GET("/cart", a.Cart.Get)
		user.DELETE("/cart", a.Cart.Clear)
		user.POST("/cart/items", a.Cart.AddItem)
		user.PUT("/cart/items/:productId", a.Cart.UpdateItem)
		user.DELETE("/cart/items/:productId", a.Cart.RemoveItem)
		user.POST("/cart/coupon", a.Cart.ApplyCoupon)
		user.DELETE("/cart/coupon", a.Cart.RemoveCoupon)

		user.POST("/orders", a.Orders.Checkout)
		user.GET("/orders", a.Orders.List)
		user.GET("/orders/:id", a.Orders.Get)
		user.POST("/orders/:id/cancel", a.Orders.Cancel)
		user.POST("/orders/:id/pay/mpesa", a.Payments.PayMpesa)
		user.POST("/orders/:id/pay/wallet", a.Payments.PayWallet)

		user.GET("/wallet", a.Wallet.Get)
		user.GET("/wallet/transactions", a.Wallet.Transactions)

		user.GET("/notifications", a.Notifications.List)
		user.PUT("/notifications/:id/read", a.Notifications.MarkRead)
	}

	admin := api.Group("/admin", ginmiddleware.Auth(jwtSecret), ginmiddleware.AdminOnly())
	{
		admin.POST("/products", a.Products.Create)
		admin.PUT("/products/:id", a.Products.Update)
		admin.DELETE("/products/:id", a.Products.Delete)

		admin.GET("/coupons", a.Coupons.List)
		admin.GET("/coupons/:code", a.Coupons.Get)
		admin.POST("/coupons", a.Coupons.Create)
		admin.PUT("/coupons/:code", a.Coupons.Update)
		admin.DELETE("/coupons/:code", a.Coupons.Delete)

		admin.GET("/orders", a.Orders.AdminList)
		admin.GET("/orders/:id", a.Orders.AdminGet)
		admin.PUT("/orders/:id/status", a.Orders.AdminUpdateStatus)
		admin.DELETE("/orders/:id", a.Orders.AdminDelete)
		admin.POST("/orders/:id/assign", a.Delivery.Assign)
		admin.PUT("/orders/:id/delivery", a.Delivery.UpdateStatus)
		admin.POST("/orders/:id/refund", a.Payments.Refund)

		admin.POST("/wallet/credit", a.Wallet.AdminCredit)
		admin.GET("/wallet/:userId", a.Wallet.AdminGet)

		admin.POST("/agents", a.Delivery.RegisterAgent)
		admin.GET("/agents", a.Delivery.ListAgents)
		admin.GET("/agents/:id", a.Delivery.GetAgent)
		admin.PUT("/agents/:id/status", a.Delivery.SetAgentStatus)

		admin.POST("/zones", a.Delivery.CreateZone)
		admin.PUT("/zones/:id", a.Delivery.UpdateZone)

		admin.PUT("/settings/:key", a.Settings.Set)
	}
}
