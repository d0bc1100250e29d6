package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/app/service/finance"
	"github.com/fatflowers/repairdesk/internal/app/service/notifier"
	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/internal/platform/broker"
	"github.com/fatflowers/repairdesk/internal/platform/db/dbtest"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/config"
	"github.com/fatflowers/repairdesk/pkg/types"
)

type fakeNotifier struct {
	mu   sync.Mutex
	reqs []notifier.Request
}

func (f *fakeNotifier) Dispatch(_ context.Context, req notifier.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []broker.StatusChanged
}

func (f *fakePublisher) PublishStatusChanged(_ context.Context, evt broker.StatusChanged) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}

type fixture struct {
	s   *Service
	db  *gorm.DB
	n   *fakeNotifier
	pub *fakePublisher
}

func newFixture(t *testing.T, enforce bool) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	log := zap.NewNop().Sugar()
	f := &fixture{db: gdb, n: &fakeNotifier{}, pub: &fakePublisher{}}
	f.s = New(gdb, log, config.WorkflowConfig{EnforceTransitions: enforce}, finance.New(gdb, log), f.n, f.pub)

	// Each call advances one second so history order is deterministic.
	clock := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return f
}

func strPtr(s string) *string { return &s }

func fee(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func (f *fixture) create(t *testing.T, customerID string, estimated decimal.NullDecimal) *models.Service {
	t.Helper()
	svc, err := f.s.CreateService(context.Background(), "front-desk", CreateRequest{
		CustomerID:         customerID,
		DeviceType:         types.DeviceTypePhone,
		Brand:              "Acme",
		Model:              "X1",
		ProblemDescription: "cracked screen",
		EstimatedFee:       estimated,
	})
	require.NoError(t, err)
	return svc
}

func (f *fixture) move(t *testing.T, id string, to types.ServiceStatus) *models.Service {
	t.Helper()
	svc, err := f.s.UpdateStatus(context.Background(), "tech", id, StatusUpdate{Status: to})
	require.NoError(t, err)
	return svc
}

func (f *fixture) incomeRecords(t *testing.T, serviceID string) []models.FinancialRecord {
	t.Helper()
	var recs []models.FinancialRecord
	require.NoError(t, f.db.Where("service_id = ?", serviceID).Find(&recs).Error)
	return recs
}

func TestCreateService(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "ada@example.test")

	svc := f.create(t, c.ID, fee("1200"))
	require.Equal(t, types.ServiceStatusReceived, svc.Status)
	require.Regexp(t, `^SRV-\d{6}-[A-Z0-9]{5}$`, svc.ServiceNumber)
	require.Equal(t, "Ada", svc.Customer.Name)
	require.Len(t, svc.StatusHistory, 1)
	require.Equal(t, "front-desk", svc.StatusHistory[0].ChangedBy)
	require.Equal(t, types.ServiceStatusReceived, svc.StatusHistory[0].Status)

	require.Empty(t, f.n.reqs)
	require.Len(t, f.pub.events, 1)
	require.Equal(t, types.ServiceStatus(""), f.pub.events[0].From)
}

func TestCreateService_DefaultsActorToSystem(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")

	svc, err := f.s.CreateService(context.Background(), "", CreateRequest{
		CustomerID: c.ID, DeviceType: types.DeviceTypeLaptop, Brand: "B", Model: "M", ProblemDescription: "fan",
	})
	require.NoError(t, err)
	require.Equal(t, SystemActor, svc.StatusHistory[0].ChangedBy)
}

func TestCreateService_ValidationWritesNothing(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	ctx := context.Background()

	_, err := f.s.CreateService(ctx, "u", CreateRequest{CustomerID: c.ID, DeviceType: types.DeviceTypePhone})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	require.Contains(t, err.Error(), "brand")
	require.Contains(t, err.Error(), "problemDescription")

	_, err = f.s.CreateService(ctx, "u", CreateRequest{
		CustomerID: c.ID, DeviceType: "WATCH", Brand: "B", Model: "M", ProblemDescription: "p",
	})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.s.CreateService(ctx, "u", CreateRequest{
		CustomerID: "missing", DeviceType: types.DeviceTypePhone, Brand: "B", Model: "M", ProblemDescription: "p",
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.s.CreateService(ctx, "u", CreateRequest{
		CustomerID: c.ID, DeviceType: types.DeviceTypePhone, Brand: "B", Model: "M", ProblemDescription: "p",
		TechnicianID: strPtr("nobody"),
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	var services, history int64
	require.NoError(t, f.db.Model(&models.Service{}).Count(&services).Error)
	require.NoError(t, f.db.Model(&models.ServiceStatusHistory{}).Count(&history).Error)
	require.Zero(t, services)
	require.Zero(t, history)
}

func TestLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "ada@example.test")
	svc := f.create(t, c.ID, fee("1200"))

	f.move(t, svc.ID, types.ServiceStatusDiagnosisPending)
	f.move(t, svc.ID, types.ServiceStatusCustomerApprovalPending)
	f.move(t, svc.ID, types.ServiceStatusRepairing)
	done := f.move(t, svc.ID, types.ServiceStatusCompletedReadyForDelivery)
	require.NotNil(t, done.CompletedAt)

	delivered, err := f.s.UpdateStatus(context.Background(), "counter", svc.ID, StatusUpdate{
		Status:    types.ServiceStatusDelivered,
		Notes:     strPtr("paid cash"),
		ActualFee: fee("1500"),
	})
	require.NoError(t, err)
	require.Equal(t, types.ServiceStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
	require.NotNil(t, delivered.CompletedAt)
	require.Equal(t, "1500", delivered.ActualFee.Decimal.String())

	require.Len(t, delivered.StatusHistory, 6)
	latest := delivered.StatusHistory[0]
	require.Equal(t, types.ServiceStatusDelivered, latest.Status)
	require.Equal(t, "paid cash", latest.Notes)
	require.Equal(t, "counter", latest.ChangedBy)
	require.Equal(t, types.ServiceStatusReceived, delivered.StatusHistory[5].Status)

	recs := f.incomeRecords(t, svc.ID)
	require.Len(t, recs, 1)
	require.Equal(t, "1500", recs[0].Amount.String())
	require.Equal(t, types.FinancialRecordTypeIncome, recs[0].Type)
	require.NotNil(t, delivered.FinancialRecord)

	require.Len(t, f.n.reqs, 2)
	require.Equal(t, types.NotificationTypeCustomerApprovalPending, f.n.reqs[0].Type)
	require.Equal(t, "1200", f.n.reqs[0].EstimatedFee.Decimal.String())
	require.Equal(t, "ada@example.test", f.n.reqs[0].CustomerEmail)
	require.Equal(t, types.NotificationTypeServiceCompleted, f.n.reqs[1].Type)

	require.Len(t, f.pub.events, 6)
	last := f.pub.events[5]
	require.Equal(t, types.ServiceStatusCompletedReadyForDelivery, last.From)
	require.Equal(t, types.ServiceStatusDelivered, last.To)
}

func TestDelivery_FallsBackToEstimatedFee(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := dbtest.Service(t, f.db, c.ID, dbtest.ServiceOpts{
		Status: types.ServiceStatusCompletedReadyForDelivery, EstimatedFee: "80",
	})

	f.move(t, svc.ID, types.ServiceStatusDelivered)

	recs := f.incomeRecords(t, svc.ID)
	require.Len(t, recs, 1)
	require.Equal(t, "80", recs[0].Amount.String())
}

func TestDelivery_ZeroActualFeeFallsBackToEstimate(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := dbtest.Service(t, f.db, c.ID, dbtest.ServiceOpts{
		Status: types.ServiceStatusCompletedReadyForDelivery, EstimatedFee: "80",
	})

	got, err := f.s.UpdateStatus(context.Background(), "u", svc.ID, StatusUpdate{
		Status: types.ServiceStatusDelivered, ActualFee: decimal.NewNullDecimal(decimal.Zero),
	})
	require.NoError(t, err)
	require.False(t, got.ActualFee.Valid)

	recs := f.incomeRecords(t, svc.ID)
	require.Len(t, recs, 1)
	require.Equal(t, "80", recs[0].Amount.String())
}

func TestUpdateService_ZeroActualFeeClearsIt(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := dbtest.Service(t, f.db, c.ID, dbtest.ServiceOpts{
		Status: types.ServiceStatusCompletedReadyForDelivery, EstimatedFee: "80", ActualFee: "95",
	})
	zero := decimal.Zero
	delivered := types.ServiceStatusDelivered

	got, err := f.s.UpdateService(context.Background(), "u", svc.ID, ServiceUpdate{ActualFee: &zero, Status: &delivered})
	require.NoError(t, err)
	require.False(t, got.ActualFee.Valid)

	recs := f.incomeRecords(t, svc.ID)
	require.Len(t, recs, 1)
	require.Equal(t, "80", recs[0].Amount.String())
}

func TestDelivery_WithoutFeeWritesNoRecord(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := dbtest.Service(t, f.db, c.ID, dbtest.ServiceOpts{Status: types.ServiceStatusCompletedReadyForDelivery})

	f.move(t, svc.ID, types.ServiceStatusDelivered)
	require.Empty(t, f.incomeRecords(t, svc.ID))
}

func TestDelivery_TwiceKeepsSingleRecord(t *testing.T) {
	f := newFixture(t, false)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := dbtest.Service(t, f.db, c.ID, dbtest.ServiceOpts{Status: types.ServiceStatusCompletedReadyForDelivery})
	ctx := context.Background()

	first, err := f.s.UpdateStatus(ctx, "u", svc.ID, StatusUpdate{Status: types.ServiceStatusDelivered, ActualFee: fee("100")})
	require.NoError(t, err)
	second, err := f.s.UpdateStatus(ctx, "u", svc.ID, StatusUpdate{Status: types.ServiceStatusDelivered, ActualFee: fee("120")})
	require.NoError(t, err)

	recs := f.incomeRecords(t, svc.ID)
	require.Len(t, recs, 1)
	require.Equal(t, "120", recs[0].Amount.String())
	require.True(t, first.DeliveredAt.Equal(*second.DeliveredAt))
	require.Len(t, second.StatusHistory, 2)
}

func TestDelivery_TwiceRejectedWhenEnforced(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := dbtest.Service(t, f.db, c.ID, dbtest.ServiceOpts{Status: types.ServiceStatusCompletedReadyForDelivery})
	ctx := context.Background()

	_, err := f.s.UpdateStatus(ctx, "u", svc.ID, StatusUpdate{Status: types.ServiceStatusDelivered, ActualFee: fee("100")})
	require.NoError(t, err)
	_, err = f.s.UpdateStatus(ctx, "u", svc.ID, StatusUpdate{Status: types.ServiceStatusDelivered, ActualFee: fee("120")})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	recs := f.incomeRecords(t, svc.ID)
	require.Len(t, recs, 1)
	require.Equal(t, "100", recs[0].Amount.String())
}

func TestCancellation(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "ada@example.test")
	svc := f.create(t, c.ID, fee("50"))

	cancelled, err := f.s.UpdateStatus(context.Background(), "u", svc.ID, StatusUpdate{
		Status: types.ServiceStatusCancelled, Notes: strPtr("customer changed mind"),
	})
	require.NoError(t, err)
	require.Equal(t, types.ServiceStatusCancelled, cancelled.Status)
	require.Len(t, cancelled.StatusHistory, 2)
	require.Nil(t, cancelled.CompletedAt)
	require.Nil(t, cancelled.DeliveredAt)
	require.Empty(t, f.incomeRecords(t, svc.ID))
	require.Empty(t, f.n.reqs)
}

func TestIllegalTransitionLeavesTicketUntouched(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := f.create(t, c.ID, decimal.NullDecimal{})

	_, err := f.s.UpdateStatus(context.Background(), "u", svc.ID, StatusUpdate{Status: types.ServiceStatusDelivered})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	require.Contains(t, err.Error(), "RECEIVED -> DELIVERED")

	got, err := f.s.Get(context.Background(), svc.ID)
	require.NoError(t, err)
	require.Equal(t, types.ServiceStatusReceived, got.Status)
	require.Len(t, got.StatusHistory, 1)
}

func TestPermissiveModeAllowsAnyJump(t *testing.T) {
	f := newFixture(t, false)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := f.create(t, c.ID, fee("30"))

	got := f.move(t, svc.ID, types.ServiceStatusDelivered)
	require.Equal(t, types.ServiceStatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)
	require.Nil(t, got.CompletedAt)
	require.Len(t, f.incomeRecords(t, svc.ID), 1)
}

func TestUpdateStatus_Validation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.s.UpdateStatus(ctx, "u", "x", StatusUpdate{})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.s.UpdateStatus(ctx, "u", "x", StatusUpdate{Status: "BROKEN"})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.s.UpdateStatus(ctx, "u", "missing", StatusUpdate{Status: types.ServiceStatusCancelled})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateStatus_AssignsTechnician(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	tech := dbtest.Technician(t, f.db, "Linus", "linus@example.test")
	svc := f.create(t, c.ID, decimal.NullDecimal{})

	got, err := f.s.UpdateStatus(context.Background(), "u", svc.ID, StatusUpdate{
		Status: types.ServiceStatusDiagnosisPending, TechnicianID: &tech.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, got.Technician)
	require.Equal(t, "Linus", got.Technician.Name)

	_, err = f.s.UpdateStatus(context.Background(), "u", svc.ID, StatusUpdate{
		Status: types.ServiceStatusRepairing, TechnicianID: strPtr("nobody"),
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTimestampsAreSetOnce(t *testing.T) {
	f := newFixture(t, false)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := dbtest.Service(t, f.db, c.ID, dbtest.ServiceOpts{Status: types.ServiceStatusRepairing})

	first := f.move(t, svc.ID, types.ServiceStatusCompletedReadyForDelivery)
	f.move(t, svc.ID, types.ServiceStatusRepairing)
	second := f.move(t, svc.ID, types.ServiceStatusCompletedReadyForDelivery)
	require.True(t, first.CompletedAt.Equal(*second.CompletedAt))
}

func TestUpdateService_FieldsOnly(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := f.create(t, c.ID, decimal.NullDecimal{})
	est := decimal.NewFromInt(75)

	got, err := f.s.UpdateService(context.Background(), "u", svc.ID, ServiceUpdate{
		Brand:        strPtr("Globex"),
		EstimatedFee: &est,
		Status:       &svc.Status,
	})
	require.NoError(t, err)
	require.Equal(t, "Globex", got.Brand)
	require.Equal(t, "75", got.EstimatedFee.Decimal.String())
	require.Equal(t, "X1", got.Model)
	require.Len(t, got.StatusHistory, 1)
	require.Len(t, f.pub.events, 1)
}

func TestUpdateService_StatusChangeRunsBookkeeping(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "ada@example.test")
	svc := dbtest.Service(t, f.db, c.ID, dbtest.ServiceOpts{Status: types.ServiceStatusRepairing, EstimatedFee: "90"})
	status := types.ServiceStatusCompletedReadyForDelivery

	got, err := f.s.UpdateService(context.Background(), "u", svc.ID, ServiceUpdate{Status: &status, Notes: strPtr("done")})
	require.NoError(t, err)
	require.Equal(t, status, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.StatusHistory, 1)
	require.Equal(t, "done", got.StatusHistory[0].Notes)
	require.Len(t, f.n.reqs, 1)
	require.Equal(t, types.NotificationTypeServiceCompleted, f.n.reqs[0].Type)
}

func TestUpdateService_Errors(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := f.create(t, c.ID, decimal.NullDecimal{})
	ctx := context.Background()
	neg := decimal.NewFromInt(-1)
	delivered := types.ServiceStatusDelivered

	_, err := f.s.UpdateService(ctx, "u", svc.ID, ServiceUpdate{Brand: strPtr(" ")})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.s.UpdateService(ctx, "u", svc.ID, ServiceUpdate{ActualFee: &neg})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.s.UpdateService(ctx, "u", svc.ID, ServiceUpdate{Status: &delivered})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.s.UpdateService(ctx, "u", svc.ID, ServiceUpdate{CustomerID: strPtr("ghost")})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.s.UpdateService(ctx, "u", "missing", ServiceUpdate{Brand: strPtr("B")})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApply_ConcurrentStatusChangeConflicts(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "")
	svc := f.create(t, c.ID, decimal.NullDecimal{})

	_, err := f.s.apply(context.Background(), "u", svc.ID, func(tx *gorm.DB, cur *models.Service) (*change, error) {
		// Another writer moves the ticket after it was read.
		require.NoError(t, tx.Model(&models.Service{}).Where("id = ?", cur.ID).
			Update("status", types.ServiceStatusDiagnosisPending).Error)
		return &change{fields: map[string]any{}, to: types.ServiceStatusCancelled}, nil
	})
	require.ErrorIs(t, err, apperr.ErrConflict)

	got, err := f.s.Get(context.Background(), svc.ID)
	require.NoError(t, err)
	require.Equal(t, types.ServiceStatusReceived, got.Status)
	require.Len(t, got.StatusHistory, 1)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApply_ReloadFailureStillNotifies(t *testing.T) {
	f := newFixture(t, true)
	c := dbtest.Customer(t, f.db, "Ada", "ada@example.test")
	svc := dbtest.Service(t, f.db, c.ID, dbtest.ServiceOpts{Status: types.ServiceStatusRepairing, EstimatedFee: "90"})

	// Only the post-commit read touches the history table.
	require.NoError(t, f.db.Callback().Query().Before("gorm:query").Register("fail_history_reads", func(db *gorm.DB) {
		if db.Statement.Table == (models.ServiceStatusHistory{}).TableName() {
			_ = db.AddError(errors.New("replica unavailable"))
		}
	}))

	got, err := f.s.UpdateStatus(context.Background(), "u", svc.ID, StatusUpdate{Status: types.ServiceStatusCompletedReadyForDelivery})
	require.NoError(t, err)
	require.Equal(t, svc.ID, got.ID)
	require.Equal(t, types.ServiceStatusCompletedReadyForDelivery, got.Status)
	require.NotNil(t, got.CompletedAt)

	require.Len(t, f.n.reqs, 1)
	require.Equal(t, types.NotificationTypeServiceCompleted, f.n.reqs[0].Type)
	require.Equal(t, "ada@example.test", f.n.reqs[0].CustomerEmail)
	require.Len(t, f.pub.events, 1)
	require.Equal(t, types.ServiceStatusRepairing, f.pub.events[0].From)

	require.NoError(t, f.db.Callback().Query().Remove("fail_history_reads"))
	var history int64
	require.NoError(t, f.db.Model(&models.ServiceStatusHistory{}).Where("service_id = ?", svc.ID).Count(&history).Error)
	require.EqualValues(t, 1, history)
}
