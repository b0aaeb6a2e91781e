package bot

import (
	"fmt"

	"github.com/bio065/biobot/pkg/logger"
	"go.uber.org/zap"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier tells a referrer their credit increased. Dispatch is
// asynchronous and best effort: the registration is already committed,
// so a blocked or unreachable recipient only shows up in the logs.
type Notifier struct {
	api *tgbotapi.BotAPI
}

func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return &Notifier{api: api}
}

func (n *Notifier) NotifyReferrer(referrerID int64, referredName string) {
	go func() {
		text := fmt.Sprintf("%s joined using your invite link. Your referral count went up!", referredName)
		msg := tgbotapi.NewMessage(referrerID, text)
		if _, err := n.api.Send(msg); err != nil {
			logger.Logger().Warn("referral notification failed",
				zap.Int64("referrer_id", referrerID),
				zap.Error(err))
		}
	}()
}
