package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	userrepo "github.com/stevegwapss/lendworks/repository/user"
)

var kindMessages = map[string]string{
	KindReturnInitiated:         "The renter has started the return process for rental #%d.",
	KindReturnScheduleSelected:  "A return slot was proposed for rental #%d.",
	KindReturnScheduleConfirmed: "Your return slot for rental #%d was confirmed.",
	KindReturnSubmitted:         "Return proof was submitted for rental #%d.",
	KindReturnConfirmed:         "Rental #%d is complete. The return was confirmed.",
	KindPickupSubmitted:         "Handover proof was submitted for rental #%d.",
	KindHandoverConfirmed:       "Handover for rental #%d was confirmed by the renter.",
	KindRentalOverdue:           "Rental #%d is past its end date.",
}

type telegramNotifier struct {
	bot *tgbotapi.BotAPI
	dir userrepo.Directory
	log *slog.Logger
}

// NewTelegram delivers notifications as Telegram messages, resolving
// recipients to chat IDs through the user directory. Users without a
// linked chat are skipped silently.
func NewTelegram(bot *tgbotapi.BotAPI, dir userrepo.Directory, log *slog.Logger) Notifier {
	return &telegramNotifier{bot: bot, dir: dir, log: log}
}

func (n *telegramNotifier) Notify(ctx context.Context, recipientID int64, eventKind string, rentalID int64) {
	chatID, err := n.dir.TelegramChatID(ctx, recipientID)
	if err != nil {
		if err != userrepo.ErrNoChatID {
			n.log.Warn("notify: resolve chat id", "recipient_id", recipientID, "err", err)
		}
		return
	}

	text, ok := kindMessages[eventKind]
	if !ok {
		text = "Update on rental #%d."
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(text, rentalID))
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn("notify: telegram send", "recipient_id", recipientID, "event_kind", eventKind, "err", err)
	}
}
