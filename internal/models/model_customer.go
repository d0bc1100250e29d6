package models

import "time"

type Customer struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Email     *string   `gorm:"column:email;type:varchar(255);index" json:"email"`
	Phone     string    `gorm:"column:phone;type:varchar(64);not null;index" json:"phone"`
	Address   *string   `gorm:"column:address;type:text" json:"address"`
	Services  []Service `gorm:"foreignKey:CustomerID" json:"services,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Customer) TableName() string { return "customers" }

// HasEmail reports whether notifications can reach the customer.
func (c *Customer) HasEmail() bool {
	return c != nil && c.Email != nil && *c.Email != ""
}
