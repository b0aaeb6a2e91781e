package service

import (
	"context"
	"errors"

	"github.com/bio065/biobot/internal/model"
)

var (
	ErrUserNotFound = errors.New("user not found")

	// ErrRegistryUnavailable marks a registration attempt whose atomic
	// unit could not complete. Nothing was committed; the attempt may
	// be retried with the original arguments.
	ErrRegistryUnavailable = errors.New("registry unavailable")
)

type Service struct {
	*UserService
	*GateService
}

func NewService(userService *UserService, gateService *GateService) *Service {
	return &Service{
		UserService: userService,
		GateService: gateService,
	}
}

type UserServiceI interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	GetUserReferrals(ctx context.Context, telegramID int64) ([]*model.UserReferral, error)
	GetLeaderboard(ctx context.Context) ([]*model.User, error)
	CountUsers(ctx context.Context) (int, error)
	GetReferralReport(ctx context.Context) ([]*model.ReportRow, error)
}

type GateServiceI interface {
	Pass(ctx context.Context, req GateRequest) (*GateResult, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (*model.RegistrationResult, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	UpdateUserProfile(ctx context.Context, telegramID int64, username, handle string) error
	CountUsers(ctx context.Context) (int, error)
	GetTopUsers(ctx context.Context, limit int) ([]*model.User, error)
	GetUserReferrals(ctx context.Context, telegramID int64) ([]*model.UserReferral, error)
	GetReferralReport(ctx context.Context) ([]*model.ReportRow, error)
}

// MembershipChecker asks the external authority whether an identity
// currently belongs to the required channel. Read-only; one query per
// gate attempt.
type MembershipChecker interface {
	CheckMembership(ctx context.Context, telegramID int64) model.Membership
}

// ReferralNotifier informs a referrer their credit increased. Delivery
// is best effort; implementations must never return the failure to the
// registration path.
type ReferralNotifier interface {
	NotifyReferrer(referrerID int64, referredName string)
}
