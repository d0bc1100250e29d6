package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/repairdesk/pkg/types"
)

type Service struct {
	ID                 string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ServiceNumber      string              `gorm:"column:service_number;type:varchar(64);not null;uniqueIndex" json:"serviceNumber"`
	CustomerID         string              `gorm:"column:customer_id;type:uuid;not null;index" json:"customerId"`
	Customer           *Customer           `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	TechnicianID       *string             `gorm:"column:technician_id;type:uuid;index" json:"technicianId"`
	Technician         *User               `gorm:"foreignKey:TechnicianID" json:"technician,omitempty"`
	DeviceType         types.DeviceType    `gorm:"column:device_type;type:varchar(32);not null" json:"deviceType"`
	Brand              string              `gorm:"column:brand;type:varchar(128);not null" json:"brand"`
	Model              string              `gorm:"column:model;type:varchar(128);not null" json:"model"`
	SerialNumber       *string             `gorm:"column:serial_number;type:varchar(128)" json:"serialNumber"`
	IMEI               *string             `gorm:"column:imei;type:varchar(64)" json:"imei"`
	ProblemDescription string              `gorm:"column:problem_description;type:text;not null" json:"problemDescription"`
	Accessories        *string             `gorm:"column:accessories;type:text" json:"accessories"`
	PhysicalCondition  *string             `gorm:"column:physical_condition;type:text" json:"physicalCondition"`
	EstimatedFee       decimal.NullDecimal `gorm:"column:estimated_fee;type:decimal(12,2)" json:"estimatedFee"`
	ActualFee          decimal.NullDecimal `gorm:"column:actual_fee;type:decimal(12,2)" json:"actualFee"`
	Status             types.ServiceStatus `gorm:"column:status;type:varchar(64);not null;index" json:"status"`
	CompletedAt        *time.Time          `gorm:"column:completed_at" json:"completedAt"`
	DeliveredAt        *time.Time          `gorm:"column:delivered_at" json:"deliveredAt"`
	CreatedAt          time.Time           `gorm:"column:created_at;index" json:"createdAt"`
	UpdatedAt          time.Time           `gorm:"column:updated_at" json:"updatedAt"`

	FinancialRecord *FinancialRecord       `gorm:"foreignKey:ServiceID" json:"financialRecord,omitempty"`
	StatusHistory   []ServiceStatusHistory `gorm:"foreignKey:ServiceID" json:"statusHistory,omitempty"`
}

func (Service) TableName() string { return "services" }

// Fee is the amount owed for the ticket: the actual fee when known, else the
// estimate. The result is zero when neither is set.
func (s *Service) Fee() decimal.Decimal {
	if s.ActualFee.Valid {
		return s.ActualFee.Decimal
	}
	if s.EstimatedFee.Valid {
		return s.EstimatedFee.Decimal
	}
	return decimal.Zero
}
