package api

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/flexprice/payflow/internal/api/v1"
	"github.com/flexprice/payflow/internal/rest/middleware"
)

type Handlers struct {
	Payment *v1.PaymentHandler
	Health  *v1.HealthHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Health)

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	// Payment routes
	payments := router.Group("/payments")
	{
		payments.POST("", handlers.Payment.CreatePayment)
		payments.GET("/:id", handlers.Payment.GetPayment)
	}
}
