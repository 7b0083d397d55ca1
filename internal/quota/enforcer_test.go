// AngelaMos | 2026
// enforcer_test.go

package quota

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlements/internal/core"
	"github.com/carterperez-dev/entitlements/internal/entitlement"
	"github.com/carterperez-dev/entitlements/internal/ledger"
)

type mockAccess struct {
	mock.Mock
}

func (m *mockAccess) CheckAttachment(
	ctx context.Context,
	userID, attachmentID string,
) (entitlement.Decision, error) {
	args := m.Called(ctx, userID, attachmentID)
	return args.Get(0).(entitlement.Decision), args.Error(1)
}

type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) Subject(ctx context.Context, userID string) (*entitlement.Subject, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Subject), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) MonthlyDownloadCount(
	ctx context.Context,
	userID string,
	ym ledger.YearMonth,
) (int, error) {
	args := m.Called(ctx, userID, ym)
	return args.Int(0), args.Error(1)
}

func (m *mockLedger) RecordDownloadWithinLimit(
	ctx context.Context,
	userID, attachmentID string,
	at time.Time,
	limit *int,
) (bool, int, error) {
	args := m.Called(ctx, userID, attachmentID, at, limit)
	return args.Bool(0), args.Int(1), args.Error(2)
}

var fixedNow = time.Date(2026, time.March, 31, 23, 30, 0, 0, time.UTC)

type fixture struct {
	access   *mockAccess
	identity *mockIdentity
	ledger   *mockLedger
	enforcer *Enforcer
}

func newFixture() *fixture {
	f := &fixture{
		access:   new(mockAccess),
		identity: new(mockIdentity),
		ledger:   new(mockLedger),
	}
	f.enforcer = NewEnforcer(f.access, f.identity, f.ledger, nil).
		WithClock(func() time.Time { return fixedNow })
	return f
}

func (f *fixture) subject(userID string, limit *int) {
	f.identity.On("Subject", mock.Anything, userID).
		Return(&entitlement.Subject{UserID: userID, PermissionLevel: 1, DownloadLimit: limit}, nil)
}

func (f *fixture) granted(userID, attachmentID string) {
	f.access.On("CheckAttachment", mock.Anything, userID, attachmentID).
		Return(entitlement.Decision{Allowed: true, Grant: entitlement.GrantTier}, nil)
}

func intPtr(n int) *int { return &n }

func TestCanDownload_Unauthenticated(t *testing.T) {
	f := newFixture()

	res, err := f.enforcer.CanDownload(context.Background(), "", "file")

	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonUnauthenticated, res.Reason)
	assert.Equal(t, "not authenticated", res.Message)
	f.access.AssertNotCalled(t, "CheckAttachment", mock.Anything, mock.Anything, mock.Anything)
}

func TestCanDownload_UnknownUser(t *testing.T) {
	f := newFixture()
	f.identity.On("Subject", mock.Anything, "ghost").
		Return(nil, fmt.Errorf("get principal: %w", core.ErrNotFound))

	res, err := f.enforcer.CanDownload(context.Background(), "ghost", "file")

	require.NoError(t, err)
	assert.Equal(t, ReasonUnauthenticated, res.Reason)
}

func TestCanDownload_NoAccess(t *testing.T) {
	f := newFixture()
	f.subject("u", intPtr(5))
	f.access.On("CheckAttachment", mock.Anything, "u", "file").
		Return(entitlement.Decision{Reason: entitlement.ReasonShopOnly}, nil)

	res, err := f.enforcer.CanDownload(context.Background(), "u", "file")

	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonNoAccess, res.Reason)
	assert.Equal(t, "no access", res.Message)
	f.ledger.AssertNotCalled(t, "MonthlyDownloadCount", mock.Anything, mock.Anything, mock.Anything)
}

func TestCanDownload_Unlimited(t *testing.T) {
	f := newFixture()
	f.subject("u", nil)
	f.granted("u", "file")

	res, err := f.enforcer.CanDownload(context.Background(), "u", "file")

	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Nil(t, res.Limit)
	f.ledger.AssertNotCalled(t, "MonthlyDownloadCount", mock.Anything, mock.Anything, mock.Anything)
}

func TestCanDownload_Boundary(t *testing.T) {
	tests := []struct {
		name    string
		used    int
		allowed bool
	}{
		{"none used", 0, true},
		{"one below limit", 4, true},
		{"at limit", 5, false},
		{"over limit", 7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.subject("u", intPtr(5))
			f.granted("u", "file")
			f.ledger.On("MonthlyDownloadCount", mock.Anything, "u",
				ledger.YearMonth{Year: 2026, Month: time.March}).
				Return(tt.used, nil)

			res, err := f.enforcer.CanDownload(context.Background(), "u", "file")

			require.NoError(t, err)
			assert.Equal(t, tt.allowed, res.Allowed)
			assert.Equal(t, tt.used, res.Used)
			require.NotNil(t, res.Limit)
			assert.Equal(t, 5, *res.Limit)
			if !tt.allowed {
				assert.Equal(t, ReasonQuotaExceeded, res.Reason)
				assert.Contains(t, res.Message, "5")
			}
		})
	}
}

func TestCanDownload_LedgerFailure(t *testing.T) {
	f := newFixture()
	f.subject("u", intPtr(5))
	f.granted("u", "file")
	f.ledger.On("MonthlyDownloadCount", mock.Anything, "u", mock.Anything).
		Return(0, errors.New("connection reset"))

	_, err := f.enforcer.CanDownload(context.Background(), "u", "file")

	require.Error(t, err)
}

func TestCanDownload_AccessFailure(t *testing.T) {
	f := newFixture()
	f.subject("u", intPtr(5))
	f.access.On("CheckAttachment", mock.Anything, "u", "file").
		Return(entitlement.Decision{}, errors.New("timeout"))

	_, err := f.enforcer.CanDownload(context.Background(), "u", "file")

	require.Error(t, err)
}

func TestRecordDownload(t *testing.T) {
	t.Run("records within limit", func(t *testing.T) {
		f := newFixture()
		limit := intPtr(5)
		f.subject("u", limit)
		f.granted("u", "file")
		f.ledger.On("RecordDownloadWithinLimit", mock.Anything, "u", "file", fixedNow, limit).
			Return(true, 3, nil)

		res, err := f.enforcer.RecordDownload(context.Background(), "u", "file")

		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3, res.Used)
		f.ledger.AssertExpectations(t)
	})

	t.Run("ledger refuses at the cap", func(t *testing.T) {
		f := newFixture()
		limit := intPtr(5)
		f.subject("u", limit)
		f.granted("u", "file")
		f.ledger.On("RecordDownloadWithinLimit", mock.Anything, "u", "file", fixedNow, limit).
			Return(false, 5, nil)

		res, err := f.enforcer.RecordDownload(context.Background(), "u", "file")

		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, ReasonQuotaExceeded, res.Reason)
		assert.Equal(t, "monthly download limit of 5 reached", res.Message)
	})

	t.Run("unlimited tier passes nil limit", func(t *testing.T) {
		f := newFixture()
		f.subject("u", nil)
		f.granted("u", "file")
		f.ledger.On("RecordDownloadWithinLimit", mock.Anything, "u", "file", fixedNow, (*int)(nil)).
			Return(true, 40, nil)

		res, err := f.enforcer.RecordDownload(context.Background(), "u", "file")

		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Nil(t, res.Limit)
	})

	t.Run("no access records nothing", func(t *testing.T) {
		f := newFixture()
		f.subject("u", intPtr(5))
		f.access.On("CheckAttachment", mock.Anything, "u", "file").
			Return(entitlement.Decision{Reason: entitlement.ReasonAttachmentTier}, nil)

		res, err := f.enforcer.RecordDownload(context.Background(), "u", "file")

		require.NoError(t, err)
		assert.Equal(t, ReasonNoAccess, res.Reason)
		f.ledger.AssertNotCalled(t, "RecordDownloadWithinLimit",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ledger error", func(t *testing.T) {
		f := newFixture()
		f.subject("u", intPtr(5))
		f.granted("u", "file")
		f.ledger.On("RecordDownloadWithinLimit",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(false, 0, errors.New("serialization failure"))

		_, err := f.enforcer.RecordDownload(context.Background(), "u", "file")

		require.Error(t, err)
	})
	t.Run("admin on a missing attachment surfaces not found", func(t *testing.T) {
		f := newFixture()
		f.subject("admin", intPtr(5))
		f.access.On("CheckAttachment", mock.Anything, "admin", "gone").
			Return(entitlement.Decision{Allowed: true, Grant: entitlement.GrantAdmin}, nil)
		f.ledger.On("RecordDownloadWithinLimit",
			mock.Anything, "admin", "gone", fixedNow, mock.Anything).
			Return(false, 0, fmt.Errorf("insert download: attachment gone: %w", core.ErrNotFound))

		_, err := f.enforcer.RecordDownload(context.Background(), "admin", "gone")

		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}
