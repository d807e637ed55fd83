package models

import "fmt"

// EntityType tags one synchronizable collection.
type EntityType string

const (
	EntityTypeBusiness EntityType = "businesses"
	EntityTypeEmployee EntityType = "employees"
	EntityTypeCategory EntityType = "categories"
	EntityTypeProduct  EntityType = "products"
	EntityTypeCustomer EntityType = "customers"
	EntityTypeOrder    EntityType = "orders"
	EntityTypeRack     EntityType = "racks"
)

// SyncOrder is the fixed dependency order for a sync pass. Orders and
// products reference business/category/customer IDs, so their referents must
// exist remotely before they are pushed. This is a correctness constraint,
// not a tuning knob.
var SyncOrder = []EntityType{
	EntityTypeBusiness,
	EntityTypeEmployee,
	EntityTypeCategory,
	EntityTypeProduct,
	EntityTypeCustomer,
	EntityTypeOrder,
	EntityTypeRack,
}

// Descriptor binds an entity type to its concrete model so stores and sync
// adapters can stay generic over the seven collections.
type Descriptor struct {
	Type EntityType

	// New returns a fresh zero model, NewSlice a pointer to an empty slice
	// of the concrete type for GORM to fill, and Items unwraps that slice.
	New      func() Syncable
	NewSlice func() any
	Items    func(slice any) []Syncable
}

func describe[T any, PT interface {
	*T
	Syncable
}](et EntityType) Descriptor {
	return Descriptor{
		Type:     et,
		New:      func() Syncable { var v T; return PT(&v) },
		NewSlice: func() any { return &[]*T{} },
		Items: func(slice any) []Syncable {
			ptrs := *(slice.(*[]*T))
			out := make([]Syncable, 0, len(ptrs))
			for _, p := range ptrs {
				out = append(out, PT(p))
			}
			return out
		},
	}
}

var registry = map[EntityType]Descriptor{
	EntityTypeBusiness: describe[Business](EntityTypeBusiness),
	EntityTypeEmployee: describe[Employee](EntityTypeEmployee),
	EntityTypeCategory: describe[Category](EntityTypeCategory),
	EntityTypeProduct:  describe[Product](EntityTypeProduct),
	EntityTypeCustomer: describe[Customer](EntityTypeCustomer),
	EntityTypeOrder:    describe[Order](EntityTypeOrder),
	EntityTypeRack:     describe[Rack](EntityTypeRack),
}

// Describe looks up the descriptor for an entity type.
func Describe(et EntityType) (Descriptor, error) {
	d, ok := registry[et]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown entity type %q", et)
	}
	return d, nil
}

// AllModels returns one zero model per table for migration.
func AllModels() []any {
	return []any{
		&Business{}, &Employee{}, &Category{}, &Product{},
		&Customer{}, &Order{}, &Rack{}, &SyncConflict{},
	}
}
