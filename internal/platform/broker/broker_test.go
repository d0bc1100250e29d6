package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/repairdesk/pkg/types"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) Drain() error { return nil }

func TestNatsPublisher_PublishStatusChanged(t *testing.T) {
	fc := &fakeConn{}
	p := &NatsPublisher{nc: fc, prefix: "repairdesk", log: zap.NewNop().Sugar()}

	evt := StatusChanged{
		ServiceID:     "svc-1",
		ServiceNumber: "SRV-260101-ABCDE",
		From:          types.ServiceStatusRepairing,
		To:            types.ServiceStatusCompletedReadyForDelivery,
		Actor:         "tech@shop.test",
		ChangedAt:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishStatusChanged(context.Background(), evt))

	require.Equal(t, []string{"repairdesk.service.status_changed"}, fc.subjects)
	var got StatusChanged
	require.NoError(t, json.Unmarshal(fc.payloads[0], &got))
	require.Equal(t, evt, got)
}

func TestNatsPublisher_WrapsError(t *testing.T) {
	boom := errors.New("nats: connection closed")
	p := &NatsPublisher{nc: &fakeConn{err: boom}, log: zap.NewNop().Sugar()}

	err := p.PublishStatusChanged(context.Background(), StatusChanged{ServiceID: "x"})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "publish service.status_changed")
}

func TestLogPublisher_LogsUnderItsOwnEventName(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := &LogPublisher{log: zap.New(core).Sugar()}

	require.NoError(t, p.PublishStatusChanged(context.Background(), StatusChanged{
		ServiceID: "svc-1", From: types.ServiceStatusReceived, To: types.ServiceStatusCancelled,
	}))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "event_logged", entry.Message)
	require.Equal(t, SubjectStatusChanged, entry.ContextMap()["subject"])
	require.Zero(t, logs.FilterMessage("service_status_changed").Len())
}
