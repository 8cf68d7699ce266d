package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"checkout-service/internal/metrics"
	"checkout-service/internal/order"
)

const maxBodyBytes = 1 << 20

type OrderService interface {
	SubmitOrder(ctx context.Context, in order.SubmitInput) (*order.SubmitResult, error)
	GetOrderStatus(ctx context.Context, orderID string) (*order.StatusResult, error)
}

// CallbackQueue accepts a raw gateway notification for later processing.
type CallbackQueue interface {
	Enqueue(ctx context.Context, contentType string, body []byte) error
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	orders    OrderService
	callbacks CallbackQueue
	db        Pinger
	now       func() time.Time
	logger    *slog.Logger
}

func New(orders OrderService, callbacks CallbackQueue, db Pinger, logger *slog.Logger) *Server {
	return &Server{
		orders:    orders,
		callbacks: callbacks,
		db:        db,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/pix/create", s.createPix)
	mux.HandleFunc("GET /api/pix/status/{orderId}", s.pixStatus)
	mux.HandleFunc("POST /api/webhook/pushinpay", s.gatewayCallback)
	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("GET /liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metrics.Handler())

	return requestID(logRequests(s.logger, mux))
}
