package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (lrw *loggingResponseWriter) WriteHeader(status int) {
	lrw.status = status
	lrw.ResponseWriter.WriteHeader(status)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	lrw.body.Write(b)
	return lrw.ResponseWriter.Write(b)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Printf("Error reading request body: %v", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		log.Printf("%s %s %s", r.Method, r.URL.Path, body)

		lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK, body: &bytes.Buffer{}}
		next.ServeHTTP(lrw, r)

		log.Printf("%s %s -> %d %s", r.Method, r.URL.Path, lrw.status, lrw.body.String())
	})
}

// receivers tracks webhook deliveries per endpoint and reports the same
// event for the same order arriving more than once.
type receivers struct {
	mu     sync.Mutex
	seen   map[string]int
	counts map[string]int
}

func newReceivers() *receivers {
	return &receivers{seen: make(map[string]int), counts: make(map[string]int)}
}

func (rc *receivers) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		var envelope struct {
			Event string `json:"event"`
			Data  struct {
				OrderID string `json:"order_id"`
			} `json:"data"`
		}
		key := ""
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data.OrderID != "" {
			key = r.URL.Path + " " + envelope.Event + " " + envelope.Data.OrderID
		}

		rc.mu.Lock()
		rc.counts[r.URL.Path]++
		count := rc.counts[r.URL.Path]
		var dup int
		if key != "" {
			rc.seen[key]++
			dup = rc.seen[key]
		}
		rc.mu.Unlock()

		log.Printf("Endpoint %s has been called %d times", r.URL.Path, count)
		if dup > 1 {
			log.Printf("Duplicate delivery #%d: %s", dup, key)
		}
		next.ServeHTTP(w, r)
	})
}
