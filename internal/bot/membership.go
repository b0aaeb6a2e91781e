package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bio065/biobot/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Channel identifies the required channel either by @username or by
// numeric chat ID.
type Channel struct {
	Username string
	ChatID   int64
}

// ParseChannel accepts "@name" or a numeric chat ID.
func ParseChannel(raw string) (Channel, error) {
	if strings.HasPrefix(raw, "@") {
		return Channel{Username: raw}, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Channel{}, fmt.Errorf("invalid channel reference %q: %w", raw, err)
	}
	return Channel{ChatID: id}, nil
}

// MembershipChecker resolves channel membership through the Telegram
// Bot API. The query is read-only and issued once per gate attempt.
type MembershipChecker struct {
	api     *tgbotapi.BotAPI
	channel Channel
}

func NewMembershipChecker(api *tgbotapi.BotAPI, channel Channel) *MembershipChecker {
	return &MembershipChecker{
		api:     api,
		channel: channel,
	}
}

// CheckMembership maps the chat member status onto the closed
// tri-state. Transport failures, a missing channel and insufficient
// bot rights all surface as indeterminate, never as a denial.
func (c *MembershipChecker) CheckMembership(_ context.Context, telegramID int64) model.Membership {
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID:             c.channel.ChatID,
			SuperGroupUsername: c.channel.Username,
			UserID:             telegramID,
		},
	})
	if err != nil {
		return model.Membership{
			Status: model.MembershipIndeterminate,
			Reason: err.Error(),
		}
	}

	switch member.Status {
	case "creator", "administrator", "member":
		return model.Membership{Status: model.MembershipMember}
	case "restricted":
		if member.IsMember {
			return model.Membership{Status: model.MembershipMember}
		}
		return model.Membership{Status: model.MembershipNotMember}
	case "left", "kicked":
		return model.Membership{Status: model.MembershipNotMember}
	default:
		return model.Membership{
			Status: model.MembershipIndeterminate,
			Reason: fmt.Sprintf("unexpected chat member status %q", member.Status),
		}
	}
}
