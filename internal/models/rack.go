package models

// Rack is a physical conveyor/storage slot group where finished orders hang
// until pickup. CurrentLoad is incremented when an order is completed onto
// the rack and decremented when it is picked up.
type Rack struct {
	SyncRecord

	Code        string `gorm:"type:varchar(40);not null;index" json:"code"`
	Capacity    int    `gorm:"not null;default:1" json:"capacity"`
	CurrentLoad int    `gorm:"not null;default:0" json:"current_load"`

	BusinessID string `gorm:"type:varchar(36);index" json:"business_id"`
	CreatedBy  string `gorm:"type:varchar(64)" json:"created_by,omitempty"`
}

func (Rack) TableName() string { return "racks" }

func (Rack) EntityType() EntityType { return EntityTypeRack }

// HasCapacity reports whether another order fits on the rack.
func (r *Rack) HasCapacity() bool { return r.CurrentLoad < r.Capacity }
