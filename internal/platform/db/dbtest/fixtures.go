package dbtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/pkg/tool"
	"github.com/fatflowers/repairdesk/pkg/types"
)

// Customer inserts a customer. An empty email stores NULL.
func Customer(t *testing.T, gdb *gorm.DB, name, email string) *models.Customer {
	t.Helper()
	c := &models.Customer{ID: tool.GenerateUUIDV7(), Name: name, Phone: "555-0100"}
	if email != "" {
		c.Email = &email
	}
	require.NoError(t, gdb.Create(c).Error)
	return c
}

func Technician(t *testing.T, gdb *gorm.DB, name, email string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           tool.GenerateUUIDV7(),
		Email:        email,
		Name:         name,
		Role:         types.UserRoleTechnician,
		PasswordHash: "x",
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// ServiceOpts customizes a seeded ticket. Zero values keep the defaults.
type ServiceOpts struct {
	Status       types.ServiceStatus
	TechnicianID *string
	EstimatedFee string
	ActualFee    string
	CreatedAt    time.Time
	CompletedAt  *time.Time
	DeliveredAt  *time.Time
}

// Service inserts a ticket owned by customerID without going through the
// workflow, so no history row is written.
func Service(t *testing.T, gdb *gorm.DB, customerID string, opts ServiceOpts) *models.Service {
	t.Helper()
	s := &models.Service{
		ID:                 tool.GenerateUUIDV7(),
		ServiceNumber:      tool.GenerateServiceNumber("TST", time.Now()),
		CustomerID:         customerID,
		TechnicianID:       opts.TechnicianID,
		DeviceType:         types.DeviceTypePhone,
		Brand:              "Acme",
		Model:              "One",
		ProblemDescription: "does not boot",
		Status:             opts.Status,
		CompletedAt:        opts.CompletedAt,
		DeliveredAt:        opts.DeliveredAt,
		CreatedAt:          opts.CreatedAt,
	}
	if s.Status == "" {
		s.Status = types.ServiceStatusReceived
	}
	if opts.EstimatedFee != "" {
		s.EstimatedFee = decimal.NewNullDecimal(decimal.RequireFromString(opts.EstimatedFee))
	}
	if opts.ActualFee != "" {
		s.ActualFee = decimal.NewNullDecimal(decimal.RequireFromString(opts.ActualFee))
	}
	require.NoError(t, gdb.Create(s).Error)
	return s
}

// Record inserts a ledger row.
func Record(t *testing.T, gdb *gorm.DB, typ types.FinancialRecordType, amount string, recordedAt time.Time, serviceID *string) *models.FinancialRecord {
	t.Helper()
	r := &models.FinancialRecord{
		ID:         tool.GenerateUUIDV7(),
		Amount:     decimal.RequireFromString(amount),
		Type:       typ,
		ServiceID:  serviceID,
		RecordedAt: recordedAt,
	}
	require.NoError(t, gdb.Create(r).Error)
	return r
}
