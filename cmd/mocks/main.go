package main

import (
	"encoding/json"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"time"
)

type CallbackResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	errorRate   = 0.5
	contentType = "application/json"
)

func main() {
	addr := ":8085"
	if v := os.Getenv("MOCKS_ADDR"); v != "" {
		addr = v
	}

	gw := newGateway(os.Getenv("GATEWAY_API_TOKEN"))
	receivers := newReceivers()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pix/cashIn", gw.cashIn)
	mux.HandleFunc("GET /api/transactions/{id}", gw.transaction)
	mux.HandleFunc("POST /admin/pay/{id}", gw.pay)

	mux.Handle("POST /always-success", receivers.track(http.HandlerFunc(alwaysSuccessHandler)))
	mux.Handle("POST /success-delayed", receivers.track(http.HandlerFunc(successDelayedHandler)))
	mux.Handle("POST /always-fail", receivers.track(http.HandlerFunc(alwaysFailHandler)))
	mux.Handle("POST /random-fail", receivers.track(http.HandlerFunc(randomFailHandler)))

	log.Printf("Mocks listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, loggingMiddleware(mux)))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func alwaysSuccessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CallbackResponse{Success: true})
}

func successDelayedHandler(w http.ResponseWriter, _ *http.Request) {
	time.Sleep(time.Duration(3+rand.IntN(6)) * time.Second)
	writeJSON(w, http.StatusOK, CallbackResponse{Success: true})
}

func alwaysFailHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error"})
}

func randomFailHandler(w http.ResponseWriter, _ *http.Request) {
	if rand.Float64() < errorRate {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error"})
		return
	}
	writeJSON(w, http.StatusOK, CallbackResponse{Success: true})
}
