package models

// Customer is a walk-in or account customer of the cleaner.
type Customer struct {
	SyncRecord

	FirstName string `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string `gorm:"type:varchar(100)" json:"last_name"`
	Phone     string `gorm:"type:varchar(40);index" json:"phone"`
	Email     string `gorm:"type:varchar(200)" json:"email"`
	Address   string `gorm:"type:varchar(300)" json:"address"`
	ZIP       string `gorm:"type:varchar(16)" json:"zip"`
	Notes     string `gorm:"type:text" json:"notes"`

	BusinessID string `gorm:"type:varchar(36);index" json:"business_id"`
	CreatedBy  string `gorm:"type:varchar(64)" json:"created_by,omitempty"`
}

func (Customer) TableName() string { return "customers" }

func (Customer) EntityType() EntityType { return EntityTypeCustomer }
