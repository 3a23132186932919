package services

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"github.com/example/coursepay/internal/models"
)

// TelegramNotifier posts completed payments to the admin chat.
type TelegramNotifier struct {
	bot    *telego.Bot
	chatID telego.ChatID
	log    *zap.SugaredLogger
}

// NewTelegramNotifier returns nil when the bot token or admin chat is missing,
// which leaves notifications disabled.
func NewTelegramNotifier(botToken, adminChatID string, log *zap.SugaredLogger) (*TelegramNotifier, error) {
	if botToken == "" || adminChatID == "" {
		log.Infow("telegram notifications disabled")
		return nil, nil
	}

	bot, err := telego.NewBot(botToken)
	if err != nil {
		return nil, fmt.Errorf("telego.NewBot: %w", err)
	}

	return &TelegramNotifier{bot: bot, chatID: parseChatID(adminChatID), log: log}, nil
}

func parseChatID(v string) telego.ChatID {
	if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
		return telego.ChatID{ID: id}
	}
	return telego.ChatID{Username: v}
}

func (n *TelegramNotifier) NotifyPaymentCompleted(ctx context.Context, p PaymentNotification) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	_, err := n.bot.SendMessage(&telego.SendMessageParams{
		ChatID:    n.chatID,
		Text:      FormatPaymentMessage(p),
		ParseMode: telego.ModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	n.log.Debugw("telegram notification sent", "payment_id", p.PaymentID.String())
	return nil
}

// FormatPaymentMessage renders the admin notification for a completed payment.
func FormatPaymentMessage(p PaymentNotification) string {
	title := p.CourseTitle
	if title == "" {
		title = p.CourseID.String()
	}

	method := "Card"
	if p.Method == models.PaymentMethodVoucher {
		method = "Fawry voucher"
	}

	return strings.TrimSpace(fmt.Sprintf(`<b>✅ Payment received</b>
<b>Course:</b> %s
<b>Amount:</b> %s
<b>Method:</b> %s
<b>Order:</b> %s
<b>Payment:</b> <code>%s</code>
<b>Student:</b> <code>%s</code>
<i>via %s</i>`,
		html.EscapeString(title),
		FormatPrice(p.Amount, p.Currency),
		method,
		html.EscapeString(p.OrderID),
		p.PaymentID,
		p.UserID,
		p.Source,
	))
}

// FormatPrice formats an amount with two decimals, thousand separators and currency.
func FormatPrice(amount float64, currency string) string {
	if currency == "" {
		currency = "EGP"
	}

	str := strconv.FormatFloat(amount, 'f', 2, 64)
	whole, frac, _ := strings.Cut(str, ".")
	negative := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")

	var result strings.Builder
	if negative {
		result.WriteByte('-')
	}
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(digit)
	}

	return result.String() + "." + frac + " " + currency
}
