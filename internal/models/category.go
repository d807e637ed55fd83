package models

// Category groups products on the pricing screen (shirts, suits, bedding).
type Category struct {
	SyncRecord

	Name      string `gorm:"type:varchar(120);not null" json:"name"`
	SortOrder int    `gorm:"default:0" json:"sort_order"`
	Active    bool   `gorm:"default:true" json:"active"`

	BusinessID string `gorm:"type:varchar(36);index" json:"business_id"`
	CreatedBy  string `gorm:"type:varchar(64)" json:"created_by,omitempty"`
}

func (Category) TableName() string { return "categories" }

func (Category) EntityType() EntityType { return EntityTypeCategory }
