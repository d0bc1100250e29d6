package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/repairdesk/pkg/types"
)

type FinancialRecord struct {
	ID          string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Amount      decimal.Decimal           `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	Type        types.FinancialRecordType `gorm:"column:type;type:varchar(16);not null;index" json:"type"`
	Description *string                   `gorm:"column:description;type:text" json:"description"`
	// ServiceID is unique so a ticket carries at most one automatic income row.
	ServiceID *string `gorm:"column:service_id;type:uuid;uniqueIndex" json:"serviceId"`
	// The constraint is owned by Service.FinancialRecord.
	Service    *Service  `gorm:"foreignKey:ServiceID;-:migration" json:"service,omitempty"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null;index" json:"recordedAt"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (FinancialRecord) TableName() string { return "financial_records" }
