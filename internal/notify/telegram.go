// Package notify delivers run summaries to Telegram. Delivery is best
// effort: the audit record is the durable account of a run, so a failed
// notification is logged and swallowed rather than propagated into the
// payout flow.
package notify

import (
	"fmt"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	logging "payout-engine/internal/infra/log"
	"payout-engine/internal/payout"
)

// Telegram sends run summaries to a single chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram builds a notifier for the given bot token and chat. The
// chat id is the numeric form, including the leading minus for groups
// (for example -1003190218710).
func NewTelegram(token, chatID string) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	id, err := parseChatID(chatID)
	if err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: id}, nil
}

func parseChatID(chatIDStr string) (int64, error) {
	var chatID int64
	if _, err := fmt.Sscanf(chatIDStr, "%d", &chatID); err != nil || chatID == 0 {
		return 0, fmt.Errorf("%q is not a telegram chat id", chatIDStr)
	}
	return chatID, nil
}

// SendRunSummary posts the run summary, attaching the payout chart when
// chartPath names an existing file. A missing chart or a failed photo
// upload degrades to a plain text message.
func (t *Telegram) SendRunSummary(report *payout.Report, chartPath string) error {
	message := FormatRunMessage(report)

	if chartPath == "" {
		return t.sendText(message)
	}
	if _, err := os.Stat(chartPath); os.IsNotExist(err) {
		logging.LogWarn("Chart file does not exist, sending text summary",
			zap.String("chartPath", chartPath))
		return t.sendText(message)
	}

	photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FilePath(chartPath))
	photo.Caption = message
	photo.ParseMode = tgbotapi.ModeHTML

	if _, err := t.bot.Send(photo); err != nil {
		logging.LogError("Failed to send payout chart, falling back to text", zap.Error(err))
		return t.sendText(message)
	}

	logging.LogSuccess("Run summary sent to Telegram",
		zap.Int64("chatID", t.chatID),
		zap.String("chartPath", chartPath))
	return nil
}

func (t *Telegram) sendText(message string) error {
	msg := tgbotapi.NewMessage(t.chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	logging.LogSuccess("Run summary sent to Telegram", zap.Int64("chatID", t.chatID))
	return nil
}

// FormatRunMessage renders the run summary as Telegram HTML.
func FormatRunMessage(report *payout.Report) string {
	summary := report.Summary()
	dateStr := summary.StartedAt.Format("02 Jan 2006")

	var header string
	if report.DryRun {
		header = fmt.Sprintf("🧪 <b>%s payout dry run</b> on %s\n\n", report.TokenSymbol, dateStr)
	} else {
		header = fmt.Sprintf("💸 <b>%s payout</b> on %s\n\n", report.TokenSymbol, dateStr)
	}

	message := header
	message += fmt.Sprintf("Rate: <code>%s %s</code> per share\n", report.Rate.String(), report.TokenSymbol)
	message += fmt.Sprintf("Holders in plan: <code>%d</code>\n", summary.Attempted)

	if report.DryRun {
		message += fmt.Sprintf("Planned amount: <code>%s %s</code>\n", totalPlanned(report).String(), report.TokenSymbol)
	} else {
		message += fmt.Sprintf("✅ Sent: <code>%d</code>\n", summary.Sent)
		if summary.Failed > 0 {
			message += fmt.Sprintf("❌ Failed: <code>%d</code>\n", summary.Failed)
		}
		message += fmt.Sprintf("💰 Paid out: <code>%s %s</code>\n", summary.TotalAmountSent.String(), report.TokenSymbol)
	}

	if summary.Aborted {
		message += fmt.Sprintf("\n⚠️ Run aborted: %s\n", escapeHTML(summary.AbortReason))
	}

	if duration := summary.FinishedAt.Sub(summary.StartedAt); duration > 0 {
		message += fmt.Sprintf("\nTook %s", duration.Round(time.Second).String())
	}
	return message
}

func totalPlanned(report *payout.Report) decimal.Decimal {
	total := decimal.Zero
	for _, o := range report.Outcomes {
		total = total.Add(o.Amount)
	}
	return total
}

// escapeHTML keeps operator-supplied error text from breaking Telegram
// HTML parse mode.
func escapeHTML(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
