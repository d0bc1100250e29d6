package types

type NotificationType string

const (
	NotificationTypeServiceReceived         NotificationType = "SERVICE_RECEIVED"
	NotificationTypeCustomerApprovalPending NotificationType = "CUSTOMER_APPROVAL_PENDING"
	NotificationTypeServiceCompleted        NotificationType = "SERVICE_COMPLETED"
	NotificationTypePaymentReminder         NotificationType = "PAYMENT_REMINDER"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeServiceReceived, NotificationTypeCustomerApprovalPending,
		NotificationTypeServiceCompleted, NotificationTypePaymentReminder:
		return true
	}
	return false
}

// NotificationForStatus maps a status entered by a ticket to the customer
// notification it triggers. The second result is false for silent statuses.
func NotificationForStatus(s ServiceStatus) (NotificationType, bool) {
	switch s {
	case ServiceStatusReceived:
		return NotificationTypeServiceReceived, true
	case ServiceStatusCustomerApprovalPending:
		return NotificationTypeCustomerApprovalPending, true
	case ServiceStatusCompletedReadyForDelivery:
		return NotificationTypeServiceCompleted, true
	}
	return "", false
}

type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "SENT"
	NotificationStatusFailed NotificationStatus = "FAILED"
)
