package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// OrderStatus defines the lifecycle states of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsTerminal reports whether no further lifecycle transition is expected.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// OrderItem is one line on the ticket. Items are embedded in the order and
// never synced independently. ScannedUnits counts how many of Quantity have
// been scanned/processed on the floor.
type OrderItem struct {
	ProductID    string   `json:"product_id"`
	Name         string   `json:"name"`
	Quantity     int      `json:"quantity"`
	Price        float64  `json:"price"`
	Discount     float64  `json:"discount"`
	AddOns       []string `json:"add_ons,omitempty"`
	ScannedUnits int      `json:"scanned_units"`
}

// StatusChange is one append-only entry in an order's status history.
type StatusChange struct {
	From OrderStatus `json:"from"`
	To   OrderStatus `json:"to"`
	Note string      `json:"note,omitempty"`
	By   string      `json:"by,omitempty"`
	At   time.Time   `json:"at"`
}

// Order is a customer ticket: a set of garment line items moving through
// the cleaning lifecycle. OrderNumber is business-visible and immutable
// once assigned.
type Order struct {
	SyncRecord

	OrderNumber string         `gorm:"type:varchar(40);uniqueIndex;not null" json:"order_number"`
	CustomerID  string         `gorm:"type:varchar(36);index;not null" json:"customer_id"`
	Items       datatypes.JSON `json:"items"`
	Status      OrderStatus    `gorm:"type:varchar(20);default:pending;index" json:"status"`
	History     datatypes.JSON `gorm:"column:status_history" json:"status_history"`
	RackNumber  *string        `gorm:"type:varchar(40)" json:"rack_number,omitempty"`

	Total        float64 `gorm:"not null;default:0" json:"total"`
	ChargeID     string  `gorm:"type:varchar(64)" json:"charge_id,omitempty"`
	RefundAmount float64 `json:"refund_amount,omitempty"`
	RefundReason string  `gorm:"type:varchar(300)" json:"refund_reason,omitempty"`

	BusinessID string `gorm:"type:varchar(36);index" json:"business_id"`
	CreatedBy  string `gorm:"type:varchar(64)" json:"created_by,omitempty"`
}

func (Order) TableName() string { return "orders" }

func (Order) EntityType() EntityType { return EntityTypeOrder }

// ItemList decodes the embedded line items.
func (o *Order) ItemList() ([]OrderItem, error) {
	if len(o.Items) == 0 {
		return nil, nil
	}
	var items []OrderItem
	if err := json.Unmarshal(o.Items, &items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return items, nil
}

// SetItems encodes and replaces the embedded line items.
func (o *Order) SetItems(items []OrderItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	o.Items = datatypes.JSON(data)
	return nil
}

// AllUnitsScanned reports whether every quantity unit of every line item has
// been scanned. An order with no items is never considered fully scanned.
func (o *Order) AllUnitsScanned() (bool, error) {
	items, err := o.ItemList()
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		return false, nil
	}
	for _, it := range items {
		if it.ScannedUnits < it.Quantity {
			return false, nil
		}
	}
	return true, nil
}

// HistoryList decodes the append-only status history.
func (o *Order) HistoryList() ([]StatusChange, error) {
	if len(o.History) == 0 {
		return nil, nil
	}
	var entries []StatusChange
	if err := json.Unmarshal(o.History, &entries); err != nil {
		return nil, fmt.Errorf("decode status history: %w", err)
	}
	return entries, nil
}

// AppendHistory adds one transition entry. History is append-only; existing
// entries are never rewritten.
func (o *Order) AppendHistory(entry StatusChange) error {
	entries, err := o.HistoryList()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode status history: %w", err)
	}
	o.History = datatypes.JSON(data)
	return nil
}
