package sync

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/pressloop/drycleanpos/internal/models"
	"github.com/pressloop/drycleanpos/internal/remote"
)

// BuildAdapters constructs the adapter registry, keyed by entity type. The
// map carries no ordering; the engine always walks models.SyncOrder.
func BuildAdapters() map[models.EntityType]*Adapter {
	adapters := []*Adapter{
		businessAdapter(),
		employeeAdapter(),
		categoryAdapter(),
		productAdapter(),
		customerAdapter(),
		orderAdapter(),
		rackAdapter(),
	}
	out := make(map[models.EntityType]*Adapter, len(adapters))
	for _, a := range adapters {
		out[a.Entity] = a
	}
	return out
}

func businessAdapter() *Adapter {
	return &Adapter{
		Entity:   models.EntityTypeBusiness,
		Resource: "businesses",
		ToRemote: func(rec models.Syncable) (remote.Record, error) {
			m, ok := rec.(*models.Business)
			if !ok {
				return nil, fmt.Errorf("expected *Business, got %T", rec)
			}
			r := baseToRemote(m.Base())
			r["name"] = m.Name
			r["address"] = m.Address
			r["phone"] = m.Phone
			r["email"] = m.Email
			r["created_by"] = m.CreatedBy
			return r, nil
		},
		ToLocal: func(r remote.Record) (models.Syncable, error) {
			m := &models.Business{
				Name:      r.String("name"),
				Address:   r.String("address"),
				Phone:     r.String("phone"),
				Email:     r.String("email"),
				CreatedBy: r.String("created_by"),
			}
			return m, baseFromRemote(r, m.Base())
		},
	}
}

func employeeAdapter() *Adapter {
	return &Adapter{
		Entity:   models.EntityTypeEmployee,
		Resource: "employees",
		ToRemote: func(rec models.Syncable) (remote.Record, error) {
			m, ok := rec.(*models.Employee)
			if !ok {
				return nil, fmt.Errorf("expected *Employee, got %T", rec)
			}
			r := baseToRemote(m.Base())
			r["first_name"] = m.FirstName
			r["last_name"] = m.LastName
			r["role"] = string(m.Role)
			r["pin_hash"] = m.PINHash
			r["active"] = m.Active
			r["business_id"] = m.BusinessID
			r["created_by"] = m.CreatedBy
			return r, nil
		},
		ToLocal: func(r remote.Record) (models.Syncable, error) {
			m := &models.Employee{
				FirstName:  r.String("first_name"),
				LastName:   r.String("last_name"),
				Role:       models.EmployeeRole(r.String("role")),
				PINHash:    r.String("pin_hash"),
				Active:     r.Bool("active"),
				BusinessID: r.String("business_id"),
				CreatedBy:  r.String("created_by"),
			}
			return m, baseFromRemote(r, m.Base())
		},
	}
}

func categoryAdapter() *Adapter {
	return &Adapter{
		Entity:   models.EntityTypeCategory,
		Resource: "categories",
		ToRemote: func(rec models.Syncable) (remote.Record, error) {
			m, ok := rec.(*models.Category)
			if !ok {
				return nil, fmt.Errorf("expected *Category, got %T", rec)
			}
			r := baseToRemote(m.Base())
			r["name"] = m.Name
			r["sort_order"] = m.SortOrder
			r["active"] = m.Active
			r["business_id"] = m.BusinessID
			r["created_by"] = m.CreatedBy
			return r, nil
		},
		ToLocal: func(r remote.Record) (models.Syncable, error) {
			m := &models.Category{
				Name:       r.String("name"),
				SortOrder:  r.Int("sort_order"),
				Active:     r.Bool("active"),
				BusinessID: r.String("business_id"),
				CreatedBy:  r.String("created_by"),
			}
			return m, baseFromRemote(r, m.Base())
		},
	}
}

func productAdapter() *Adapter {
	return &Adapter{
		Entity:   models.EntityTypeProduct,
		Resource: "products",
		ToRemote: func(rec models.Syncable) (remote.Record, error) {
			m, ok := rec.(*models.Product)
			if !ok {
				return nil, fmt.Errorf("expected *Product, got %T", rec)
			}
			r := baseToRemote(m.Base())
			r["name"] = m.Name
			r["price"] = m.Price
			r["description"] = m.Description
			r["active"] = m.Active
			r["category_id"] = m.CategoryID
			r["business_id"] = m.BusinessID
			r["created_by"] = m.CreatedBy
			return r, nil
		},
		ToLocal: func(r remote.Record) (models.Syncable, error) {
			m := &models.Product{
				Name:        r.String("name"),
				Price:       r.Float("price"),
				Description: r.String("description"),
				Active:      r.Bool("active"),
				CategoryID:  r.String("category_id"),
				BusinessID:  r.String("business_id"),
				CreatedBy:   r.String("created_by"),
			}
			return m, baseFromRemote(r, m.Base())
		},
	}
}

func customerAdapter() *Adapter {
	return &Adapter{
		Entity:   models.EntityTypeCustomer,
		Resource: "customers",
		ToRemote: func(rec models.Syncable) (remote.Record, error) {
			m, ok := rec.(*models.Customer)
			if !ok {
				return nil, fmt.Errorf("expected *Customer, got %T", rec)
			}
			r := baseToRemote(m.Base())
			r["first_name"] = m.FirstName
			r["last_name"] = m.LastName
			r["phone"] = m.Phone
			r["email"] = m.Email
			r["address"] = m.Address
			r["zip"] = m.ZIP
			r["notes"] = m.Notes
			r["business_id"] = m.BusinessID
			r["created_by"] = m.CreatedBy
			return r, nil
		},
		ToLocal: func(r remote.Record) (models.Syncable, error) {
			m := &models.Customer{
				FirstName:  r.String("first_name"),
				LastName:   r.String("last_name"),
				Phone:      r.String("phone"),
				Email:      r.String("email"),
				Address:    r.String("address"),
				ZIP:        r.String("zip"),
				Notes:      r.String("notes"),
				BusinessID: r.String("business_id"),
				CreatedBy:  r.String("created_by"),
			}
			return m, baseFromRemote(r, m.Base())
		},
	}
}

func orderAdapter() *Adapter {
	return &Adapter{
		Entity:   models.EntityTypeOrder,
		Resource: "orders",
		ToRemote: func(rec models.Syncable) (remote.Record, error) {
			m, ok := rec.(*models.Order)
			if !ok {
				return nil, fmt.Errorf("expected *Order, got %T", rec)
			}
			r := baseToRemote(m.Base())
			r["order_number"] = m.OrderNumber
			r["customer_id"] = m.CustomerID
			r["status"] = string(m.Status)
			r["total"] = m.Total
			r["charge_id"] = m.ChargeID
			r["refund_amount"] = m.RefundAmount
			r["refund_reason"] = m.RefundReason
			r["business_id"] = m.BusinessID
			r["created_by"] = m.CreatedBy
			if m.RackNumber != nil {
				r["rack_number"] = *m.RackNumber
			}
			// Items and history travel as opaque embedded values; they are
			// never synced independently of the order.
			if err := putJSON(r, "items", m.Items); err != nil {
				return nil, err
			}
			if err := putJSON(r, "status_history", m.History); err != nil {
				return nil, err
			}
			return r, nil
		},
		ToLocal: func(r remote.Record) (models.Syncable, error) {
			m := &models.Order{
				OrderNumber:  r.String("order_number"),
				CustomerID:   r.String("customer_id"),
				Status:       models.OrderStatus(r.String("status")),
				Total:        r.Float("total"),
				ChargeID:     r.String("charge_id"),
				RefundAmount: r.Float("refund_amount"),
				RefundReason: r.String("refund_reason"),
				BusinessID:   r.String("business_id"),
				CreatedBy:    r.String("created_by"),
			}
			if rack := r.String("rack_number"); rack != "" {
				m.RackNumber = &rack
			}
			var err error
			if m.Items, err = getJSON(r, "items"); err != nil {
				return nil, err
			}
			if m.History, err = getJSON(r, "status_history"); err != nil {
				return nil, err
			}
			return m, baseFromRemote(r, m.Base())
		},
	}
}

func rackAdapter() *Adapter {
	return &Adapter{
		Entity:   models.EntityTypeRack,
		Resource: "racks",
		ToRemote: func(rec models.Syncable) (remote.Record, error) {
			m, ok := rec.(*models.Rack)
			if !ok {
				return nil, fmt.Errorf("expected *Rack, got %T", rec)
			}
			r := baseToRemote(m.Base())
			r["code"] = m.Code
			r["capacity"] = m.Capacity
			r["current_load"] = m.CurrentLoad
			r["business_id"] = m.BusinessID
			r["created_by"] = m.CreatedBy
			return r, nil
		},
		ToLocal: func(r remote.Record) (models.Syncable, error) {
			m := &models.Rack{
				Code:        r.String("code"),
				Capacity:    r.Int("capacity"),
				CurrentLoad: r.Int("current_load"),
				BusinessID:  r.String("business_id"),
				CreatedBy:   r.String("created_by"),
			}
			return m, baseFromRemote(r, m.Base())
		},
	}
}

// putJSON embeds a raw JSON column into the wire record.
func putJSON(r remote.Record, key string, raw datatypes.JSON) error {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	r[key] = v
	return nil
}

// getJSON extracts an embedded value back into a raw JSON column.
func getJSON(r remote.Record, key string) (datatypes.JSON, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return datatypes.JSON(data), nil
}
