package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-backend-go/internal/ai"
	"clinic-backend-go/internal/core"
	"clinic-backend-go/internal/middleware"
	"clinic-backend-go/internal/models"
	"clinic-backend-go/internal/watch"
)

// Services bundles what the HTTP layer needs from the rest of the application.
type Services struct {
	Catalog       core.CatalogService
	Admins        core.AdminService
	Booking       core.BookingService
	Subscriptions core.SubscriptionService
	Contact       core.ContactService
	Users         core.UserService
	Flows         *ai.Flows
	// Watch is used by the live endpoints; its Bus also feeds the diagnostics stream.
	Watch watch.Deps
	// Diagnostics is nil when no Redis stream is configured.
	Diagnostics DiagnosticsStore
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (logging, recovery, CORS) is applied by the caller.
//
// Most routes only attach the caller when a token is present; the access
// policy behind the services decides what each caller may do, so a refused
// write is reported as a permission diagnostic rather than rejected here.
func SetupRoutes(router *gin.Engine, logger *zap.Logger, verifier middleware.TokenVerifier, svc Services) {
	authMW := middleware.NewAuthMiddleware(verifier, logger)
	requireAdmin := middleware.RequireAdmin(svc.Admins, logger)

	catalogHandler := NewCatalogHandler(svc.Catalog, logger)
	contactHandler := NewContactHandler(svc.Contact, logger)
	bookingHandler := NewBookingHandler(svc.Booking, logger)
	subscriptionHandler := NewSubscriptionHandler(svc.Subscriptions, logger)
	userHandler := NewUserHandler(svc.Users, logger)
	adminHandler := NewAdminHandler(svc.Admins, svc.Watch.Bus, svc.Diagnostics, logger)
	aiHandler := NewAIHandler(svc.Flows, logger)
	liveHandler := NewLiveHandler(svc.Watch, logger)

	apiV1 := router.Group("/api/v1")
	{
		public := apiV1.Group("", authMW.OptionalToken())
		{
			for _, collection := range models.CatalogCollections() {
				group := public.Group("/" + collection)
				group.GET("", catalogHandler.List(collection))
				group.POST("", catalogHandler.Create(collection))
				group.GET("/:id", catalogHandler.Get(collection))
				group.PUT("/:id", catalogHandler.Replace(collection))
				group.PATCH("/:id", catalogHandler.Patch(collection))
				group.DELETE("/:id", catalogHandler.Delete(collection))
			}

			public.GET("/contact-information", catalogHandler.GetContactInformation)
			public.PUT("/contact-information", catalogHandler.SetContactInformation)

			public.POST("/contact", contactHandler.Submit)
			public.GET("/contact", contactHandler.ListSubmissions)
			public.DELETE("/contact/:id", contactHandler.DeleteSubmission)

			public.POST("/feedback", contactHandler.SubmitFeedback)
			public.GET("/feedback", contactHandler.ListFeedback)
			public.DELETE("/feedback/:id", contactHandler.DeleteFeedback)

			public.POST("/therapists/:id/appointments", bookingHandler.Book)
			public.GET("/therapists/:id/appointments", bookingHandler.ListAppointments)
			public.PATCH("/therapists/:id/appointments/:appointmentId", bookingHandler.SetAppointmentStatus)
			public.GET("/therapists/:id/availability/:date", bookingHandler.GetAvailability)
			public.PUT("/therapists/:id/availability/:date", bookingHandler.SetAvailability)

			public.GET("/live/collections/*path", liveHandler.Collection)
			public.GET("/live/documents/*path", liveHandler.Document)

			public.POST("/ai/summarize-condition", aiHandler.SummarizeCondition)
			public.POST("/ai/suggest-exercise", aiHandler.SuggestExercise)
			public.GET("/auth/errors/*code", DescribeAuthError)
		}

		users := apiV1.Group("/users", authMW.VerifyToken())
		{
			users.POST("/initialize", userHandler.InitializeUserProfile)
			users.GET("/me", userHandler.GetCurrentUserProfile)
		}

		me := apiV1.Group("/me", authMW.VerifyToken())
		{
			me.GET("/subscriptions", subscriptionHandler.ListMine)
			me.POST("/subscriptions", subscriptionHandler.Subscribe)
			me.POST("/subscriptions/:id/cancel", subscriptionHandler.Cancel)
		}

		admin := apiV1.Group("/admin", authMW.VerifyToken())
		{
			admin.GET("/me", adminHandler.Me)

			restricted := admin.Group("", requireAdmin)
			restricted.GET("/subscriptions", subscriptionHandler.ListAll)
			restricted.POST("/users/:uid/subscriptions", subscriptionHandler.Assign)
			restricted.PATCH("/users/:uid/subscriptions/:id", subscriptionHandler.SetStatus)
			restricted.GET("/admins", adminHandler.ListAdmins)
			restricted.POST("/admins", adminHandler.AddAdmin)
			restricted.DELETE("/admins/:uid", adminHandler.RemoveAdmin)
			restricted.GET("/diagnostics", adminHandler.RecentDiagnostics)
			restricted.GET("/diagnostics/stream", adminHandler.StreamDiagnostics)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Clinic backend is healthy."})
	})

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
