package service

import (
	"context"
	"time"

	"github.com/bio065/biobot/internal/model"
	"github.com/bio065/biobot/pkg/logger"
	"go.uber.org/zap"
)

// GateState is the terminal state of one gate attempt.
type GateState int

const (
	StateAdmitted GateState = iota
	StateBlocked
	StateMisconfigured
)

func (s GateState) String() string {
	switch s {
	case StateBlocked:
		return "blocked"
	case StateMisconfigured:
		return "misconfigured"
	default:
		return "admitted"
	}
}

// GateRequest is one inbound start event.
type GateRequest struct {
	TelegramID       int64
	Username         string
	Handle           string
	ReferralArgument string
}

type GateResult struct {
	State   GateState
	Outcome RegistrationOutcome
	// ReferrerID is set when the attempt credited a referrer.
	ReferrerID *int64
	// Reason explains a misconfigured outcome to the operator audience.
	Reason string
}

// GateService runs the membership-check-then-register flow. It owns no
// mutable state; the registry serializes conflicting writes itself.
type GateService struct {
	checker  MembershipChecker
	reg      *RegistrationService
	notifier ReferralNotifier
	hub      *Hub
}

func NewGateService(checker MembershipChecker, reg *RegistrationService, notifier ReferralNotifier, hub *Hub) *GateService {
	return &GateService{
		checker:  checker,
		reg:      reg,
		notifier: notifier,
		hub:      hub,
	}
}

// Pass drives one gate attempt to exactly one terminal state. The
// registry is touched only on the admitted path. An error return means
// the registration was not confirmed and may be retried with the same
// referral argument.
func (g *GateService) Pass(ctx context.Context, req GateRequest) (*GateResult, error) {
	log := logger.Logger()

	membership := g.checker.CheckMembership(ctx, req.TelegramID)
	switch membership.Status {
	case model.MembershipNotMember:
		return &GateResult{State: StateBlocked}, nil

	case model.MembershipIndeterminate:
		// Not a denial: surfacing it as "please join" would loop the
		// user on a misconfigured channel.
		log.Warn("membership check indeterminate",
			zap.Int64("telegram_id", req.TelegramID),
			zap.String("reason", membership.Reason))
		return &GateResult{State: StateMisconfigured, Reason: membership.Reason}, nil
	}

	referrerID := ParseReferralArgument(req.ReferralArgument, req.TelegramID)

	user := &model.User{
		TelegramID:       req.TelegramID,
		Username:         req.Username,
		Handle:           req.Handle,
		ReferrerID:       referrerID,
		RegistrationDate: time.Now().UTC(),
	}

	outcome, err := g.reg.RegisterUser(ctx, user)
	if err != nil {
		return nil, err
	}

	result := &GateResult{State: StateAdmitted, Outcome: outcome}

	switch outcome {
	case OutcomeAlreadyRegistered:
		// Metadata refresh is idempotent and non-authoritative; a
		// failure here does not fail the gate pass.
		if err := g.reg.RefreshProfile(ctx, req.TelegramID, req.Username, req.Handle); err != nil {
			log.Warn("profile refresh failed",
				zap.Int64("telegram_id", req.TelegramID), zap.Error(err))
		}

	case OutcomeRegisteredWithReferral:
		result.ReferrerID = referrerID
		g.notifier.NotifyReferrer(*referrerID, req.Username)
		g.publish(Event{
			Type:       EventReferralCredited,
			TelegramID: req.TelegramID,
			Username:   req.Username,
			ReferrerID: referrerID,
			At:         time.Now().UTC(),
		})
		g.publishRegistered(req)

	case OutcomeRegistered:
		g.publishRegistered(req)
	}

	return result, nil
}

func (g *GateService) publishRegistered(req GateRequest) {
	g.publish(Event{
		Type:       EventRegistered,
		TelegramID: req.TelegramID,
		Username:   req.Username,
		At:         time.Now().UTC(),
	})
}

func (g *GateService) publish(event Event) {
	if g.hub != nil {
		g.hub.Publish(event)
	}
}
