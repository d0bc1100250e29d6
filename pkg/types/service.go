package types

import "slices"

type ServiceStatus string

const (
	ServiceStatusReceived                  ServiceStatus = "RECEIVED"
	ServiceStatusDiagnosisPending          ServiceStatus = "DIAGNOSIS_PENDING"
	ServiceStatusCustomerApprovalPending   ServiceStatus = "CUSTOMER_APPROVAL_PENDING"
	ServiceStatusPartsPending              ServiceStatus = "PARTS_PENDING"
	ServiceStatusRepairing                 ServiceStatus = "REPAIRING"
	ServiceStatusCompletedReadyForDelivery ServiceStatus = "COMPLETED_READY_FOR_DELIVERY"
	ServiceStatusDelivered                 ServiceStatus = "DELIVERED"
	ServiceStatusCancelled                 ServiceStatus = "CANCELLED"
	ServiceStatusReturned                  ServiceStatus = "RETURNED"
)

var AllServiceStatuses = []ServiceStatus{
	ServiceStatusReceived,
	ServiceStatusDiagnosisPending,
	ServiceStatusCustomerApprovalPending,
	ServiceStatusPartsPending,
	ServiceStatusRepairing,
	ServiceStatusCompletedReadyForDelivery,
	ServiceStatusDelivered,
	ServiceStatusCancelled,
	ServiceStatusReturned,
}

func (s ServiceStatus) Valid() bool {
	return slices.Contains(AllServiceStatuses, s)
}

// Terminal reports whether no further transition leaves s.
func (s ServiceStatus) Terminal() bool {
	return s == ServiceStatusDelivered || s == ServiceStatusCancelled || s == ServiceStatusReturned
}

// Finished reports whether the repair work is done, delivered or not.
func (s ServiceStatus) Finished() bool {
	return s == ServiceStatusCompletedReadyForDelivery || s == ServiceStatusDelivered
}

// Active statuses are tickets still in the shop's queue.
func (s ServiceStatus) Active() bool {
	switch s {
	case ServiceStatusReceived, ServiceStatusDiagnosisPending, ServiceStatusCustomerApprovalPending,
		ServiceStatusPartsPending, ServiceStatusRepairing:
		return true
	}
	return false
}

type DeviceType string

const (
	DeviceTypePhone   DeviceType = "PHONE"
	DeviceTypeTablet  DeviceType = "TABLET"
	DeviceTypeLaptop  DeviceType = "LAPTOP"
	DeviceTypeDesktop DeviceType = "DESKTOP"
	DeviceTypeOther   DeviceType = "OTHER"
)

func (d DeviceType) Valid() bool {
	switch d {
	case DeviceTypePhone, DeviceTypeTablet, DeviceTypeLaptop, DeviceTypeDesktop, DeviceTypeOther:
		return true
	}
	return false
}

type UserRole string

const (
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleTechnician UserRole = "TECHNICIAN"
	UserRoleStaff      UserRole = "STAFF"
)

func (r UserRole) Valid() bool {
	return r == UserRoleAdmin || r == UserRoleTechnician || r == UserRoleStaff
}
