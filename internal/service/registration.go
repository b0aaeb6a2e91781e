package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bio065/biobot/internal/model"
)

// RegistrationOutcome is the single outcome of one registration
// attempt. Exactly one of the three fires per attempt.
type RegistrationOutcome int

const (
	OutcomeAlreadyRegistered RegistrationOutcome = iota
	OutcomeRegistered
	OutcomeRegisteredWithReferral
)

func (o RegistrationOutcome) String() string {
	switch o {
	case OutcomeRegistered:
		return "registered"
	case OutcomeRegisteredWithReferral:
		return "registered_with_referral"
	default:
		return "already_registered"
	}
}

type RegistrationService struct {
	repo UserRepository
}

func NewRegistrationService(repo UserRepository) *RegistrationService {
	return &RegistrationService{
		repo: repo,
	}
}

// RegisterUser admits the user into the registry. Idempotent: a second
// call for the same identity reports OutcomeAlreadyRegistered and
// changes no counters. The referrer argument must already be sanitized
// (see ParseReferralArgument); a stored-but-missing referrer is kept
// as data without a credit, so the outcome stays OutcomeRegistered.
func (s *RegistrationService) RegisterUser(ctx context.Context, user *model.User) (RegistrationOutcome, error) {
	if user.RegistrationDate.IsZero() {
		user.RegistrationDate = time.Now().UTC()
	}

	res, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return OutcomeAlreadyRegistered, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	switch {
	case !res.Inserted:
		return OutcomeAlreadyRegistered, nil
	case res.ReferrerCredited:
		return OutcomeRegisteredWithReferral, nil
	default:
		return OutcomeRegistered, nil
	}
}

// RefreshProfile updates display metadata for an already registered
// user. Best effort and non-authoritative; it never races with the
// referral credit because it touches neither referrer_id nor referrals.
func (s *RegistrationService) RefreshProfile(ctx context.Context, telegramID int64, username, handle string) error {
	err := s.repo.UpdateUserProfile(ctx, telegramID, username, handle)
	if err != nil {
		return fmt.Errorf("failed to refresh profile: %w", err)
	}
	return nil
}

// ParseReferralArgument turns the raw start payload into a referrer ID.
// Malformed, non-positive and self-referential arguments are discarded,
// never surfaced as failures.
func ParseReferralArgument(raw string, selfID int64) *int64 {
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 || id == selfID {
		return nil
	}
	return &id
}
