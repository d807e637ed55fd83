package models

// Business holds the store-level profile synced across devices.
type Business struct {
	SyncRecord

	Name    string `gorm:"type:varchar(200);not null" json:"name"`
	Address string `gorm:"type:varchar(300)" json:"address"`
	Phone   string `gorm:"type:varchar(40)" json:"phone"`
	Email   string `gorm:"type:varchar(200)" json:"email"`

	CreatedBy string `gorm:"type:varchar(64)" json:"created_by,omitempty"`
}

func (Business) TableName() string { return "businesses" }

func (Business) EntityType() EntityType { return EntityTypeBusiness }
