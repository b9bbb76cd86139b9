// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"petride/internal/http/handlers"
	"petride/internal/http/middleware"
	"petride/internal/logger"
	"petride/internal/modules/order"
	"petride/internal/realtime"
)

// Deps are the services the router mounts. Every field is required except
// MediaDir, which serves locally stored chat uploads under /uploads when set.
type Deps struct {
	Auth      middleware.Authenticator
	Users     handlers.UserService
	Orders    *order.Service
	Jobs      handlers.JobLister
	Drivers   handlers.DriverService
	Locations handlers.LocationService
	Chats     handlers.ChatService
	Wallet    handlers.WalletService
	Pricing   handlers.PricingService
	Settings  handlers.SettingsStore
	Pets      handlers.PetService
	Inbox     handlers.NotificationService
	Realtime  *realtime.Handler
	MediaDir  string
}

func NewRouter(deps Deps, log logger.ILogger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Metrics(), middleware.Logging(log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.MediaDir != "" {
		r.Static("/uploads", deps.MediaDir)
	}

	// Sockets authenticate with ?token= since browsers cannot set headers on upgrade.
	r.GET("/ws/chat/:id", deps.Realtime.ServeChat)
	r.GET("/ws/drivers/:id/location", deps.Realtime.ServeDriverLocation)

	authH := handlers.NewAuthHandler(deps.Users)
	pub := r.Group("/api/auth")
	pub.POST("/register", authH.Register)
	pub.POST("/login", authH.Login)

	pricingH := handlers.NewPricingHandler(deps.Pricing)
	r.GET("/api/pricing/vehicle-types", pricingH.VehicleTypes)
	petH := handlers.NewPetHandler(deps.Pets)
	r.GET("/api/pets/types", petH.Types)

	api := r.Group("/api", middleware.Auth(deps.Auth))
	api.GET("/auth/me", authH.Me)
	api.POST("/pricing/estimate", pricingH.Estimate)

	orderH := handlers.NewOrderHandler(deps.Orders, deps.Jobs)
	walletH := handlers.NewWalletHandler(deps.Wallet, deps.Orders)
	chatH := handlers.NewChatHandler(deps.Chats)
	orders := api.Group("/orders")
	orders.POST("", orderH.Create)
	orders.GET("", orderH.List)
	orders.GET("/:id", orderH.Get)
	orders.PATCH("/:id", orderH.Patch)
	orders.POST("/:id/accept", orderH.Accept())
	orders.POST("/:id/pickup", orderH.Pickup())
	orders.POST("/:id/complete", orderH.Complete())
	orders.POST("/:id/release", orderH.Release())
	orders.POST("/:id/cancel", orderH.Cancel())
	orders.POST("/:id/decline", orderH.Decline)
	orders.POST("/:id/pay/wallet", orderH.PayWallet())
	orders.POST("/:id/pay/cash", orderH.Cash)
	orders.POST("/:id/pay/card", walletH.CardIntent)
	orders.POST("/:id/pay/card/confirm", walletH.CardConfirm)
	orders.GET("/:id/messages", chatH.History)
	orders.POST("/:id/messages/read", chatH.MarkRead)
	orders.POST("/:id/messages/media", chatH.UploadMedia)

	pets := api.Group("/pets")
	pets.POST("", petH.Create)
	pets.GET("", petH.List)
	pets.GET("/:id", petH.Get)

	inboxH := handlers.NewNotificationHandler(deps.Inbox)
	notifications := api.Group("/notifications")
	notifications.GET("", inboxH.List)
	notifications.GET("/:id", inboxH.Get)
	notifications.PUT("/:id/read", inboxH.MarkRead)

	driverH := handlers.NewDriverHandler(deps.Drivers)
	locationH := handlers.NewLocationHandler(deps.Locations, deps.Orders)
	drivers := api.Group("/drivers")
	drivers.POST("", driverH.Register)
	drivers.GET("/me", driverH.Me)
	drivers.PUT("/me/online", driverH.SetOnline)
	drivers.PUT("/me/settings", driverH.UpdateSettings)
	drivers.PUT("/me/device-token", driverH.SetDeviceToken)
	drivers.GET("/me/earnings", driverH.Earnings)
	drivers.GET("/me/stats", driverH.Stats)
	drivers.PUT("/me/location", locationH.Update)
	drivers.GET("/:id/location", locationH.Get)

	wallet := api.Group("/wallet")
	wallet.GET("", walletH.Balance)
	wallet.GET("/transactions", walletH.Transactions)
	wallet.POST("/topup", walletH.TopUp)
	wallet.POST("/topup/:id/verify", walletH.VerifyTopUp)

	settingsH := handlers.NewSettingsHandler(deps.Settings)
	admin := api.Group("/admin/settings", middleware.RequireRole(order.RoleAdmin))
	admin.GET("", settingsH.List)
	admin.GET("/:key", settingsH.Get)
	admin.PUT("/:key", settingsH.Put)

	return r
}
