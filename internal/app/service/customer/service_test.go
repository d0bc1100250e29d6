package customer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/platform/db/dbtest"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb := dbtest.Open(t)
	return New(gdb, zap.NewNop().Sugar()), gdb
}

func ptr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	c, err := s.Create(ctx, Input{Name: " Ada ", Phone: "555", Email: ptr(""), Address: ptr("  ")})
	require.NoError(t, err)
	require.Equal(t, "Ada", c.Name)
	require.Nil(t, c.Email)
	require.Nil(t, c.Address)

	_, err = s.Create(ctx, Input{Name: "Ada"})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	require.Contains(t, err.Error(), "phone")

	_, err = s.Create(ctx, Input{Name: "Ada", Phone: "1", Email: ptr("nope")})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestListSearch(t *testing.T) {
	s, gdb := newTestService(t)
	ctx := context.Background()
	ada := dbtest.Customer(t, gdb, "Ada Lovelace", "ada@example.test")
	dbtest.Customer(t, gdb, "Grace Hopper", "")
	dbtest.Service(t, gdb, ada.ID, dbtest.ServiceOpts{})

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	found, err := s.List(ctx, "LOVELACE")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, ada.ID, found[0].ID)
	require.Len(t, found[0].Services, 1)

	found, err = s.List(ctx, "example.test")
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestGetIncludesServicesNewestFirst(t *testing.T) {
	s, gdb := newTestService(t)
	c := dbtest.Customer(t, gdb, "Ada", "")
	tech := dbtest.Technician(t, gdb, "Linus", "linus@example.test")
	old := dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{CreatedAt: time.Now().Add(-48 * time.Hour)})
	recent := dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{TechnicianID: &tech.ID, Status: types.ServiceStatusRepairing})

	got, err := s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, got.Services, 2)
	require.Equal(t, recent.ID, got.Services[0].ID)
	require.Equal(t, old.ID, got.Services[1].ID)
	require.NotNil(t, got.Services[0].Technician)
	require.Equal(t, "Linus", got.Services[0].Technician.Name)

	_, err = s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	s, gdb := newTestService(t)
	c := dbtest.Customer(t, gdb, "Ada", "ada@example.test")

	got, err := s.Update(context.Background(), c.ID, Input{Name: "Ada L.", Phone: "999"})
	require.NoError(t, err)
	require.Equal(t, "Ada L.", got.Name)
	require.Equal(t, "999", got.Phone)
	require.Nil(t, got.Email)

	_, err = s.Update(context.Background(), "missing", Input{Name: "x", Phone: "1"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDelete(t *testing.T) {
	s, gdb := newTestService(t)
	ctx := context.Background()
	busy := dbtest.Customer(t, gdb, "Busy", "")
	dbtest.Service(t, gdb, busy.ID, dbtest.ServiceOpts{})
	idle := dbtest.Customer(t, gdb, "Idle", "")

	require.ErrorIs(t, s.Delete(ctx, busy.ID), apperr.ErrConflict)
	require.NoError(t, s.Delete(ctx, idle.ID))
	require.ErrorIs(t, s.Delete(ctx, idle.ID), apperr.ErrNotFound)
}
