package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	minChargeValue = 50
	chargeTTL      = 30 * time.Minute
)

type charge struct {
	ID           string     `json:"id"`
	Value        int64      `json:"value"`
	Status       string     `json:"status"`
	QRCode       string     `json:"qr_code"`
	QRCodeBase64 string     `json:"qr_code_base64"`
	ExpirationAt time.Time  `json:"expiration_at"`
	PaidAt       *time.Time `json:"paid_at"`
	webhookURL   string
}

// gateway imitates the PIX provider: it issues charges, reports their status
// and, when a charge is paid through /admin/pay, notifies its webhook URL.
type gateway struct {
	token   string
	client  *http.Client
	mu      sync.Mutex
	charges map[string]*charge
}

func newGateway(token string) *gateway {
	return &gateway{
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		charges: make(map[string]*charge),
	}
}

func (g *gateway) authorized(r *http.Request) bool {
	return g.token == "" || r.Header.Get("Authorization") == "Bearer "+g.token
}

func (g *gateway) cashIn(w http.ResponseWriter, r *http.Request) {
	if !g.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}

	var req struct {
		Value      int64    `json:"value"`
		WebhookURL string   `json:"webhook_url"`
		SplitRules []string `json:"split_rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if req.Value < minChargeValue {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"message": fmt.Sprintf("O campo value deve ser no mínimo %d.", minChargeValue),
		})
		return
	}

	id := strings.ToUpper(uuid.New().String())
	c := &charge{
		ID:           id,
		Value:        req.Value,
		Status:       "created",
		QRCode:       "00020101021226770014BR.GOV.BCB.PIX2555mock.pix/" + id + "5204000053039865802BR6304ABCD",
		QRCodeBase64: "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg==",
		ExpirationAt: time.Now().Add(chargeTTL).UTC(),
		webhookURL:   req.WebhookURL,
	}

	g.mu.Lock()
	g.charges[strings.ToLower(id)] = c
	g.mu.Unlock()

	writeJSON(w, http.StatusOK, c)
}

func (g *gateway) transaction(w http.ResponseWriter, r *http.Request) {
	if !g.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}

	g.mu.Lock()
	c, ok := g.charges[strings.ToLower(r.PathValue("id"))]
	var snapshot charge
	if ok {
		snapshot = *c
	}
	g.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Transação não encontrada."})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// pay marks the charge paid and posts the provider callback as a form, the
// way the real provider does.
func (g *gateway) pay(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	c, ok := g.charges[strings.ToLower(r.PathValue("id"))]
	var snapshot charge
	if ok {
		if c.PaidAt == nil {
			now := time.Now().UTC()
			c.PaidAt = &now
		}
		c.Status = "paid"
		snapshot = *c
	}
	g.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Transação não encontrada."})
		return
	}

	if snapshot.webhookURL != "" {
		go g.notify(snapshot, r.URL.Query().Get("format") == "json")
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (g *gateway) notify(c charge, asJSON bool) {
	var (
		body []byte
		ct   string
	)
	if asJSON {
		body, _ = json.Marshal(map[string]any{"id": c.ID, "status": c.Status, "value": c.Value})
		ct = contentType
	} else {
		body = []byte(fmt.Sprintf("id=%s&status=%s&value=%d", c.ID, c.Status, c.Value))
		ct = "application/x-www-form-urlencoded"
	}

	resp, err := g.client.Post(c.webhookURL, ct, bytes.NewReader(body))
	if err != nil {
		log.Printf("Error notifying %s: %v", c.webhookURL, err)
		return
	}
	resp.Body.Close()
	log.Printf("Notified %s about charge %s: %d", c.webhookURL, c.ID, resp.StatusCode)
}
