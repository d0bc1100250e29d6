package models

import (
	"time"

	"github.com/fatflowers/repairdesk/pkg/types"
)

// ServiceStatusHistory is append-only: rows are inserted once per transition
// and never updated.
type ServiceStatusHistory struct {
	ID        string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ServiceID string              `gorm:"column:service_id;type:uuid;not null;index" json:"serviceId"`
	Status    types.ServiceStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	Notes     string              `gorm:"column:notes;type:text" json:"notes"`
	ChangedBy string              `gorm:"column:changed_by;type:varchar(255);not null" json:"changedBy"`
	ChangedAt time.Time           `gorm:"column:changed_at;not null;index" json:"changedAt"`
}

func (ServiceStatusHistory) TableName() string { return "service_status_history" }
