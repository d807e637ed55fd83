package models

// Product is a priced service item (e.g. "dress shirt, pressed").
type Product struct {
	SyncRecord

	Name        string  `gorm:"type:varchar(200);not null" json:"name"`
	Price       float64 `gorm:"not null;default:0" json:"price"`
	Description string  `gorm:"type:text" json:"description"`
	Active      bool    `gorm:"default:true" json:"active"`

	CategoryID string `gorm:"type:varchar(36);index" json:"category_id"`
	BusinessID string `gorm:"type:varchar(36);index" json:"business_id"`
	CreatedBy  string `gorm:"type:varchar(64)" json:"created_by,omitempty"`
}

func (Product) TableName() string { return "products" }

func (Product) EntityType() EntityType { return EntityTypeProduct }
