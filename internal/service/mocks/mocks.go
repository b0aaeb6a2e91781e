package mocks

import (
	"context"

	"github.com/bio065/biobot/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *model.User) (*model.RegistrationResult, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RegistrationResult), args.Error(1)
}

func (m *MockUserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateUserProfile(ctx context.Context, telegramID int64, username, handle string) error {
	args := m.Called(ctx, telegramID, username, handle)
	return args.Error(0)
}

func (m *MockUserRepository) CountUsers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

func (m *MockUserRepository) GetUserReferrals(ctx context.Context, telegramID int64) ([]*model.UserReferral, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UserReferral), args.Error(1)
}

func (m *MockUserRepository) GetReferralReport(ctx context.Context) ([]*model.ReportRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ReportRow), args.Error(1)
}

type MockMembershipChecker struct {
	mock.Mock
}

func (m *MockMembershipChecker) CheckMembership(ctx context.Context, telegramID int64) model.Membership {
	args := m.Called(ctx, telegramID)
	return args.Get(0).(model.Membership)
}

type MockReferralNotifier struct {
	mock.Mock
}

func (m *MockReferralNotifier) NotifyReferrer(referrerID int64, referredName string) {
	m.Called(referrerID, referredName)
}
