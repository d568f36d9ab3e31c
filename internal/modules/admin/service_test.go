package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"slothold/internal/domain"
)

type MockReservationAdmin struct {
	mock.Mock
}

func (m *MockReservationAdmin) ForceConfirm(ctx context.Context, id int64, actor string) (*domain.Reservation, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationAdmin) ForceExpire(ctx context.Context, id int64, actor string) (*domain.Reservation, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationAdmin) RetrySync(ctx context.Context, id int64, actor string) (*domain.Reservation, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

type MockAuditReader struct {
	mock.Mock
}

func (m *MockAuditReader) List(ctx context.Context, limit, offset int) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.AuditLogEntry), args.Error(1)
}

func (m *MockAuditReader) ListByReservation(ctx context.Context, reservationID string, limit int) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, reservationID, limit)
	return args.Get(0).([]domain.AuditLogEntry), args.Error(1)
}

func TestForceConfirm_TagsOperatorActor(t *testing.T) {
	mockRes := new(MockReservationAdmin)
	mockRes.On("ForceConfirm", mock.Anything, int64(12), "admin:3").
		Return(&domain.Reservation{ID: 12, Status: domain.ReservationConfirmed}, nil)

	service := NewService(mockRes, new(MockAuditReader))
	res, err := service.ForceConfirm(context.Background(), 12, 3)

	assert.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, res.Status)
	mockRes.AssertExpectations(t)
}

func TestForceExpire_TagsOperatorActor(t *testing.T) {
	mockRes := new(MockReservationAdmin)
	mockRes.On("ForceExpire", mock.Anything, int64(12), "admin:3").
		Return(&domain.Reservation{ID: 12, Status: domain.ReservationExpired}, nil)

	service := NewService(mockRes, new(MockAuditReader))
	res, err := service.ForceExpire(context.Background(), 12, 3)

	assert.NoError(t, err)
	assert.Equal(t, domain.ReservationExpired, res.Status)
	mockRes.AssertExpectations(t)
}

func TestListAuditLog_FiltersByReservation(t *testing.T) {
	mockAudit := new(MockAuditReader)
	mockAudit.On("ListByReservation", mock.Anything, "12", 50).
		Return([]domain.AuditLogEntry{{ReservationID: "12", Action: domain.ActionConfirmed}}, nil)

	service := NewService(new(MockReservationAdmin), mockAudit)
	entries, err := service.ListAuditLog(context.Background(), "12", 50, 0)

	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	mockAudit.AssertExpectations(t)
}

func TestListAuditLog_UnfilteredUsesPagination(t *testing.T) {
	mockAudit := new(MockAuditReader)
	mockAudit.On("List", mock.Anything, 20, 40).
		Return([]domain.AuditLogEntry{}, nil)

	service := NewService(new(MockReservationAdmin), mockAudit)
	entries, err := service.ListAuditLog(context.Background(), "", 20, 40)

	assert.NoError(t, err)
	assert.Empty(t, entries)
	mockAudit.AssertExpectations(t)
}
