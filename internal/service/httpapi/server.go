// Package httpapi — REST API POS поверх gin: меню, заказы и платёжные интенты.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// OrderStore — операции над заказами, которые вызывает API.
type OrderStore interface {
	PlaceOrder(ctx context.Context, params domain.NewOrderParams) (domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	GetStatus(ctx context.Context, id int64) (domain.OrderStatus, error)
	TransitionStatus(ctx context.Context, id int64, next domain.OrderStatus) (domain.Order, error)
	DeleteOrder(ctx context.Context, id int64) (domain.Order, error)
	Timeline(ctx context.Context, id int64) ([]domain.TimelineEvent, error)
}

// Config — параметры API.
type Config struct {
	// PaymentCurrency — валюта платёжных интентов (ISO 4217, нижний регистр).
	PaymentCurrency string
	// CORSAllowOrigins — разрешённые источники; "*" разрешает все.
	CORSAllowOrigins []string
}

// Dependencies — зависимости API. Metrics и RateLimiter опциональны.
type Dependencies struct {
	Orders      OrderStore
	Menu        domain.MenuRepository
	Payments    domain.PaymentService
	Metrics     *metrics.HTTPMetrics
	RateLimiter *RateLimiter
	Logger      *log.Entry
}

// Server держит gin.Engine с зарегистрированными маршрутами.
type Server struct {
	engine   *gin.Engine
	orders   OrderStore
	menu     domain.MenuRepository
	payments domain.PaymentService
	currency string
	metrics  *metrics.HTTPMetrics
	logger   *log.Entry
}

// NewServer собирает engine: middleware и маршруты.
func NewServer(cfg Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	currency := cfg.PaymentCurrency
	if currency == "" {
		currency = "usd"
	}

	r := gin.New()
	r.Use(
		recovery(logger),
		requestID(),
		accessLog(logger),
		instrument(deps.Metrics),
		corsMiddleware(cfg.CORSAllowOrigins),
		rateLimit(deps.RateLimiter, deps.Metrics),
	)

	s := &Server{
		engine:   r,
		orders:   deps.Orders,
		menu:     deps.Menu,
		payments: deps.Payments,
		currency: currency,
		metrics:  deps.Metrics,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

// Engine возвращает http.Handler для http.Server и тестов.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.root)

	api := s.engine.Group("/api")
	{
		api.GET("/menu", s.listMenu)

		orders := api.Group("/orders")
		orders.GET("", s.listOrders)
		orders.POST("", s.createOrder)
		orders.GET("/pending", s.listPendingOrders)
		orders.GET("/:id/status", s.getOrderStatus)
		orders.PATCH("/:id/status", s.updateOrderStatus)
		orders.GET("/:id/timeline", s.getOrderTimeline)
		orders.DELETE("/:id", s.deleteOrder)

		api.POST("/create-payment-intent", s.createPaymentIntent)
	}
}

func (s *Server) root(c *gin.Context) {
	c.String(http.StatusOK, "POS API is running")
}
