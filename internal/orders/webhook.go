package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pressloop/drycleanpos/internal/models"
)

// WebhookNotifier posts order-completed notifications to an external
// messaging gateway. The gateway owns the actual SMS/push delivery.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewWebhookNotifier creates a notifier for the given gateway URL.
func NewWebhookNotifier(url string, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With().Str("component", "notify").Logger(),
	}
}

// SendOrderCompleted posts the pickup notification payload. Any non-2xx
// response is a delivery failure and re-arms the gate upstream.
func (n *WebhookNotifier) SendOrderCompleted(ctx context.Context, customer *models.Customer, order *models.Order) error {
	payload := map[string]interface{}{
		"event":        "order_completed",
		"order_number": order.OrderNumber,
		"rack_number":  order.RackNumber,
		"customer": map[string]string{
			"name":  customer.FirstName + " " + customer.LastName,
			"phone": customer.Phone,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify gateway returned %d", resp.StatusCode)
	}
	n.log.Info().Str("order", order.OrderNumber).Msg("completion notification delivered")
	return nil
}
