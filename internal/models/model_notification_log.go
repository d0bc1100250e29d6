package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/repairdesk/pkg/types"
)

type NotificationLog struct {
	ID            string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Type          types.NotificationType   `gorm:"column:type;type:varchar(64);not null" json:"type"`
	ServiceID     string                   `gorm:"column:service_id;type:uuid;not null;index" json:"serviceId"`
	Service       *Service                 `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
	CustomerEmail string                   `gorm:"column:customer_email;type:varchar(255);not null" json:"customerEmail"`
	Status        types.NotificationStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Subject       string                   `gorm:"column:subject;type:varchar(255)" json:"subject"`
	Details       datatypes.JSONMap        `gorm:"column:details;type:jsonb" json:"details,omitempty"`
	SentAt        time.Time                `gorm:"column:sent_at;not null;index" json:"sentAt"`
}

func (NotificationLog) TableName() string { return "notification_logs" }
