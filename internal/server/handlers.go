package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/order"
)

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type createPixResponse struct {
	OrderID       string     `json:"order_id"`
	QRCode        string     `json:"qr_code"`
	QRCodeBase64  string     `json:"qr_code_base64"`
	CopyPasteCode string     `json:"copy_paste_code"`
	ExpirationAt  *time.Time `json:"expiration_at"`
}

type pixStatusResponse struct {
	OrderID     string     `json:"order_id"`
	Status      string     `json:"status"`
	PaidAt      *time.Time `json:"paid_at"`
	TotalAmount float64    `json:"total_amount"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) createPix(w http.ResponseWriter, r *http.Request) {
	var in order.SubmitInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, response{Error: "invalid request body"})
		return
	}

	res, err := s.orders.SubmitOrder(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, response{Success: true, Data: createPixResponse{
		OrderID:       res.OrderID,
		QRCode:        res.QRCode,
		QRCodeBase64:  res.QRCodeBase64,
		CopyPasteCode: res.CopyPasteCode,
		ExpirationAt:  res.ExpirationAt,
	}})
}

func (s *Server) pixStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.orders.GetOrderStatus(r.Context(), r.PathValue("orderId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, response{Success: true, Data: pixStatusResponse{
		OrderID:     res.OrderID,
		Status:      string(res.Status),
		PaidAt:      res.PaidAt,
		TotalAmount: res.TotalAmount.InexactFloat64(),
	}})
}

// gatewayCallback acknowledges first. Processing happens behind the queue,
// so the gateway never waits on the store or on webhook delivery.
func (s *Server) gatewayCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.logger.WarnContext(r.Context(), "Error reading gateway callback body", "error", err)
	} else if err := s.callbacks.Enqueue(r.Context(), r.Header.Get("Content-Type"), body); err != nil {
		s.logger.ErrorContext(r.Context(), "Error queueing gateway callback", "error", err)
	}

	s.writeJSON(w, r, http.StatusOK, response{Success: true})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "Database ping failed", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, r, code, healthResponse{Status: status, Timestamp: s.now().UTC()})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var gwErr *gateway.Error
	switch {
	case errors.Is(err, order.ErrInvalidInput):
		s.writeJSON(w, r, http.StatusBadRequest, response{Error: err.Error()})
	case errors.Is(err, order.ErrNotFound):
		s.writeJSON(w, r, http.StatusNotFound, response{Error: "order not found"})
	case errors.As(err, &gwErr):
		s.writeJSON(w, r, http.StatusBadGateway, response{Error: "failed to create PIX charge: " + gwErr.Message})
	case errors.Is(err, order.ErrGateway):
		s.writeJSON(w, r, http.StatusBadGateway, response{Error: "failed to create PIX charge"})
	default:
		s.logger.ErrorContext(r.Context(), "Request failed", "error", err)
		s.writeJSON(w, r, http.StatusInternalServerError, response{Error: "internal server error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.ErrorContext(r.Context(), "Error writing response", "error", err)
	}
}
