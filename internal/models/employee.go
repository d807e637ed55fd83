package models

// EmployeeRole defines what an employee may do on the device.
type EmployeeRole string

const (
	RoleOwner   EmployeeRole = "owner"
	RoleManager EmployeeRole = "manager"
	RoleStaff   EmployeeRole = "staff"
)

// Employee is a staff member who signs into the handheld with a PIN.
// PINHash is a bcrypt hash; the raw PIN is never stored or synced.
type Employee struct {
	SyncRecord

	FirstName string       `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string       `gorm:"type:varchar(100)" json:"last_name"`
	Role      EmployeeRole `gorm:"type:varchar(20);default:staff" json:"role"`
	PINHash   string       `gorm:"column:pin_hash;type:varchar(80)" json:"-"`
	Active    bool         `gorm:"default:true" json:"active"`

	BusinessID string `gorm:"type:varchar(36);index" json:"business_id"`
	CreatedBy  string `gorm:"type:varchar(64)" json:"created_by,omitempty"`
}

func (Employee) TableName() string { return "employees" }

func (Employee) EntityType() EntityType { return EntityTypeEmployee }
