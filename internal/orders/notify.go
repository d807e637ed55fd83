package orders

import (
	"context"
	gosync "sync"

	"github.com/pressloop/drycleanpos/internal/models"
)

// Notifier delivers the customer-facing "order is ready for pickup"
// message. The transport (SMS, push, email) is an external collaborator.
type Notifier interface {
	SendOrderCompleted(ctx context.Context, customer *models.Customer, order *models.Order) error
}

// NotificationGate deduplicates completion notifications for the process
// lifetime. It is constructed and injected, never a package-level
// singleton, and it is the only mutable state shared between whatever
// observers watch order completion.
type NotificationGate struct {
	mu       gosync.Mutex
	notified map[string]struct{}
}

// NewNotificationGate creates an empty gate.
func NewNotificationGate() *NotificationGate {
	return &NotificationGate{notified: make(map[string]struct{})}
}

// ShouldNotify atomically checks-and-marks an order ID: it returns true and
// records the ID only if it was absent. Two concurrent callers for the same
// order see exactly one true result.
func (g *NotificationGate) ShouldNotify(orderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, seen := g.notified[orderID]; seen {
		return false
	}
	g.notified[orderID] = struct{}{}
	return true
}

// Reset clears an ID after a failed delivery so a later transition or retry
// can attempt again. Delivery is at-least-once per successful send, with at
// most one attempt in flight per failure window.
func (g *NotificationGate) Reset(orderID string) {
	g.mu.Lock()
	delete(g.notified, orderID)
	g.mu.Unlock()
}
