package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/logger"
)

// Notifier pushes trade and alert messages to a Telegram chat. When disabled
// every call is a no-op, so callers never need to check.
type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	logger  *logger.Logger
}

func NewNotifier(cfg *config.Config, log *logger.Logger) *Notifier {
	if !cfg.Telegram.Enabled {
		return &Notifier{enabled: false, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Notifier{
		bot:     bot,
		chatID:  cfg.Telegram.ChatID,
		enabled: true,
		logger:  log,
	}
}

func (n *Notifier) NotifyBuy(productID string, price, quantity, confidence float64) {
	msg := fmt.Sprintf("🟢 *BUY* %s\nPrice: $%.2f\nQuantity: %.6f\nConfidence: %.2f",
		productID, price, quantity, confidence)
	n.send(msg)
}

func (n *Notifier) NotifySell(productID string, price, quantity, pnl float64) {
	emoji := "🔴"
	if pnl > 0 {
		emoji = "💰"
	}
	msg := fmt.Sprintf("%s *SELL* %s\nPrice: $%.2f\nQuantity: %.6f\nP&L: $%.2f",
		emoji, productID, price, quantity, pnl)
	n.send(msg)
}

func (n *Notifier) NotifyHypeBlock(productID, reasoning string) {
	msg := fmt.Sprintf("🚨 *HYPE ALERT* %s\n%s", productID, reasoning)
	n.send(msg)
}

func (n *Notifier) NotifyError(context string, err error) {
	msg := fmt.Sprintf("⚠️ *Error* [%s]\n%v", context, err)
	n.send(msg)
}

func (n *Notifier) NotifyStatus(message string) {
	n.send(message)
}

func (n *Notifier) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "error", err)
	}
}
