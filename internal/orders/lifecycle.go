// Package orders implements the order lifecycle: the status state machine,
// rack assignment, append-only status history, and the single completion
// event that feeds notification delivery.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pressloop/drycleanpos/internal/models"
	"github.com/pressloop/drycleanpos/internal/store"
)

// ErrInvalidTransition rejects a lifecycle move the state machine does not
// allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrRackFull rejects completion onto a rack without free capacity.
var ErrRackFull = errors.New("rack has no free capacity")

// ErrItemsUnscanned rejects the ready transition while any item unit is
// unscanned.
var ErrItemsUnscanned = errors.New("not all item units are scanned")

// ErrInvalidRefund rejects refunds outside (0, order total].
var ErrInvalidRefund = errors.New("refund amount must be > 0 and <= order total")

// transitions is the adjacency of the lifecycle. cancelled is reachable
// from every non-terminal state and is handled separately.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusInProgress},
	models.OrderStatusInProgress: {models.OrderStatusReady},
	models.OrderStatusReady:      {models.OrderStatusCompleted},
}

// EventSink receives the order-completed event (websocket hub).
type EventSink interface {
	Publish(event string, payload any)
}

// RefundRequest accompanies a cancellation when the order has an external
// payment charge.
type RefundRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

// CreateOrderInput describes a new ticket.
type CreateOrderInput struct {
	CustomerID string             `json:"customer_id"`
	Items      []models.OrderItem `json:"items"`
	ChargeID   string             `json:"charge_id,omitempty"`
	BusinessID string             `json:"business_id,omitempty"`
	CreatedBy  string             `json:"created_by,omitempty"`
}

// Service governs order lifecycle mutations. All status flips go through
// it so history stays append-only, versions bump exactly once per
// transition, and completion fires its notification exactly once.
type Service struct {
	store    *store.Store
	gate     *NotificationGate
	notifier Notifier
	sink     EventSink
	log      zerolog.Logger
}

// NewService creates a Service. notifier and sink may be nil.
func NewService(st *store.Store, gate *NotificationGate, notifier Notifier, sink EventSink, log zerolog.Logger) *Service {
	return &Service{
		store:    st,
		gate:     gate,
		notifier: notifier,
		sink:     sink,
		log:      log.With().Str("component", "orders").Logger(),
	}
}

// CreateOrder validates and stores a new pending order with a
// business-visible number derived from date plus a per-day sequence.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CustomerID == "" {
		return nil, fmt.Errorf("%w: customer id required", store.ErrInvalidRecord)
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", store.ErrInvalidRecord)
	}
	var total float64
	for i, it := range input.Items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %d has non-positive quantity", store.ErrInvalidRecord, i)
		}
		if it.ScannedUnits != 0 {
			return nil, fmt.Errorf("%w: item %d created already scanned", store.ErrInvalidRecord, i)
		}
		total += float64(it.Quantity)*it.Price - it.Discount
	}
	if _, err := s.store.Get(ctx, models.EntityTypeCustomer, input.CustomerID); err != nil {
		return nil, fmt.Errorf("customer %s: %w", input.CustomerID, err)
	}

	number, err := s.nextOrderNumber(ctx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber: number,
		CustomerID:  input.CustomerID,
		Status:      models.OrderStatusPending,
		Total:       total,
		ChargeID:    input.ChargeID,
		BusinessID:  input.BusinessID,
		CreatedBy:   input.CreatedBy,
	}
	if err := order.SetItems(input.Items); err != nil {
		return nil, err
	}
	if err := order.AppendHistory(models.StatusChange{
		From: models.OrderStatusPending,
		To:   models.OrderStatusPending,
		Note: "order created",
		By:   input.CreatedBy,
		At:   time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, order); err != nil {
		return nil, err
	}
	s.log.Info().Str("order", order.OrderNumber).Str("customer", order.CustomerID).Msg("order created")
	return order, nil
}

// nextOrderNumber derives ORD<yyyymmdd>-<seq> from today's count. The
// number is immutable once assigned.
func (s *Service) nextOrderNumber(ctx context.Context) (string, error) {
	day := time.Now().UTC().Format("20060102")
	var n int64
	err := s.store.DB().WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number LIKE ?", "ORD"+day+"-%").
		Count(&n).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD%s-%04d", day, n+1), nil
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, orderID string) (*models.Order, error) {
	rec, err := s.store.Get(ctx, models.EntityTypeOrder, orderID)
	if err != nil {
		return nil, err
	}
	order, ok := rec.(*models.Order)
	if !ok || order.IsDeleted {
		return nil, store.ErrNotFound
	}
	return order, nil
}

// MarkItemScanned records one processed unit for item itemIndex. The first
// scan on a pending order automatically promotes it to in_progress.
func (s *Service) MarkItemScanned(ctx context.Context, orderID string, itemIndex int, actor string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}

	items, err := order.ItemList()
	if err != nil {
		return nil, err
	}
	if itemIndex < 0 || itemIndex >= len(items) {
		return nil, fmt.Errorf("%w: item index %d", store.ErrNotFound, itemIndex)
	}
	if items[itemIndex].ScannedUnits >= items[itemIndex].Quantity {
		return order, nil // already fully scanned, idempotent
	}
	items[itemIndex].ScannedUnits++
	if err := order.SetItems(items); err != nil {
		return nil, err
	}

	if order.Status == models.OrderStatusPending {
		if err := order.AppendHistory(models.StatusChange{
			From: models.OrderStatusPending,
			To:   models.OrderStatusInProgress,
			Note: "first item scanned",
			By:   actor,
			At:   time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		order.Status = models.OrderStatusInProgress
	}

	if err := s.store.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateStatus performs a manual lifecycle transition. Completion requires
// a rack and must go through UpdateRackAndStatus; cancellation goes through
// Cancel.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus, actor string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if status == models.OrderStatusCancelled {
		return s.Cancel(ctx, orderID, nil, actor)
	}
	if err := s.validateTransition(order, status); err != nil {
		return nil, err
	}
	if status == models.OrderStatusCompleted && order.RackNumber == nil {
		return nil, fmt.Errorf("%w: completion requires a rack assignment", ErrInvalidTransition)
	}

	if err := s.applyTransition(ctx, order, status, "", actor); err != nil {
		return nil, err
	}
	if status == models.OrderStatusCompleted {
		s.emitCompleted(ctx, order)
	}
	return order, nil
}

// UpdateRackAndStatus assigns a rack and flips the status in one
// transaction: the rack load and the order row commit together or not at
// all.
func (s *Service) UpdateRackAndStatus(ctx context.Context, orderID string, status models.OrderStatus, rackCode string, actor string) (*models.Order, error) {
	if status != models.OrderStatusCompleted {
		return nil, fmt.Errorf("%w: rack assignment only accompanies completion", ErrInvalidTransition)
	}
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.validateTransition(order, status); err != nil {
		return nil, err
	}

	err = s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rack models.Rack
		if err := tx.Where("code = ? AND is_deleted = ?", rackCode, false).First(&rack).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("rack %q: %w", rackCode, store.ErrNotFound)
			}
			return err
		}
		if !rack.HasCapacity() {
			return fmt.Errorf("rack %q: %w", rackCode, ErrRackFull)
		}
		rack.CurrentLoad++
		rack.Touch()
		if err := tx.Save(&rack).Error; err != nil {
			return err
		}

		order.RackNumber = &rackCode
		if err := order.AppendHistory(models.StatusChange{
			From: order.Status,
			To:   status,
			Note: fmt.Sprintf("completed onto rack %s", rackCode),
			By:   actor,
			At:   time.Now().UTC(),
		}); err != nil {
			return err
		}
		order.Status = status
		order.Touch()
		return tx.Save(order).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("order", order.OrderNumber).Str("rack", rackCode).Msg("order completed")
	s.emitCompleted(ctx, order)
	return order, nil
}

// Cancel moves any non-terminal order to cancelled, optionally recording a
// refund when the order carries an external charge.
func (s *Service) Cancel(ctx context.Context, orderID string, refund *RefundRequest, actor string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, order.Status)
	}
	note := "order cancelled"
	if refund != nil {
		if order.ChargeID == "" {
			return nil, fmt.Errorf("%w: no charge to refund", ErrInvalidRefund)
		}
		if refund.Amount <= 0 || refund.Amount > order.Total {
			return nil, ErrInvalidRefund
		}
		order.RefundAmount = refund.Amount
		order.RefundReason = refund.Reason
		note = fmt.Sprintf("order cancelled, refund %.2f: %s", refund.Amount, refund.Reason)
	}
	if err := s.applyTransition(ctx, order, models.OrderStatusCancelled, note, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) validateTransition(order *models.Order, to models.OrderStatus) error {
	allowed := false
	for _, next := range transitions[order.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, to)
	}
	if to == models.OrderStatusReady {
		done, err := order.AllUnitsScanned()
		if err != nil {
			return err
		}
		if !done {
			return ErrItemsUnscanned
		}
	}
	return nil
}

// applyTransition appends the history entry and persists the flip; the
// store bumps the version exactly once.
func (s *Service) applyTransition(ctx context.Context, order *models.Order, to models.OrderStatus, note, actor string) error {
	if note == "" {
		note = fmt.Sprintf("status changed to %s", to)
	}
	if err := order.AppendHistory(models.StatusChange{
		From: order.Status,
		To:   to,
		Note: note,
		By:   actor,
		At:   time.Now().UTC(),
	}); err != nil {
		return err
	}
	order.Status = to
	return s.store.Update(ctx, order)
}

// emitCompleted is the single completion trigger point. Whatever path
// observed the transition, the gate guarantees at most one delivery
// attempt is in flight and a failed send re-arms the gate.
func (s *Service) emitCompleted(ctx context.Context, order *models.Order) {
	if s.sink != nil {
		s.sink.Publish("order_completed", order)
	}
	if s.notifier == nil || s.gate == nil {
		return
	}
	if !s.gate.ShouldNotify(order.ID) {
		return
	}

	rec, err := s.store.Get(ctx, models.EntityTypeCustomer, order.CustomerID)
	if err != nil {
		s.gate.Reset(order.ID)
		s.log.Error().Err(err).Str("order", order.OrderNumber).Msg("completion notification: customer lookup failed")
		return
	}
	customer := rec.(*models.Customer)

	if err := s.notifier.SendOrderCompleted(ctx, customer, order); err != nil {
		s.gate.Reset(order.ID)
		s.log.Error().Err(err).Str("order", order.OrderNumber).Msg("completion notification failed, will retry on next transition")
		return
	}
	s.log.Info().Str("order", order.OrderNumber).Msg("completion notification sent")
}
