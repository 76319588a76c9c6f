// Package dispatch routes incoming Telegram messages to the career-support
// menu flow and records every interaction before replying.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"career_support_bot/internal/domain"
	"career_support_bot/internal/logging"
	"career_support_bot/internal/store"
)

// Menu button labels shown on the persistent reply keyboard.
const (
	ButtonConsultation = "Consultation & personalized help"
	ButtonJobs         = "Job openings/referrals"
	ButtonFreePDF      = "Get free PDF"
	ButtonEndChat      = "End chat"
	ButtonContactUs    = "Contact Us"
)

// Challenge options offered after the consultation button.
var challengeOptions = []string{
	"🔹 Not getting interviews",
	"🔹 Not getting shortlisted",
	"🔹 Low salary / stuck role",
	"🔹 Confused about upskilling",
	"🔹 Other",
}

const (
	welcomeText = "Hey user, Gerry's Bot this side 👋\n\nWelcome to our Data Career Support bot.\n\nPlease choose one of the following:"

	challengePromptText = "Before we begin, could you share your biggest challenge right now?\n(Select one)"

	consultPitchText = "Thanks for sharing! 🙌\n\n" +
		"Here’s how we can support you 🚀\n\n" +
		"Gerryson Mehta has 7+ years of experience in data analytics across companies like Coinbase, Mobikwik, and Tech Mahindra.\n" +
		"He specializes in SQL, Tableau, Power BI, and Snowflake—helping professionals transition into higher-paying analytics roles and secure global opportunities.\n\n" +
		"✨ Use code FIRST1000 to get 90% off your first call! ✨"

	followupText = "Do you have any other queries you'd like help with?\nFeel free to explore more or end the chat below 👇"

	exploreMoreText = "Thanks for connecting! 🙏\nYou can explore more resources at:\n🌐 www.gerrysonmehta.com"

	jobsText = "Great! 🎯 Tap below to join our WhatsApp community for curated job openings and referrals."

	pdfText = "Here’s your free resource to help you level up in data analytics! 🚀\nTap below to download:"

	endChatText = "Chat ended ✅\nFeel free to restart anytime by typing /start.\nWishing you success ahead! 🚀"

	contactText = "Tap below to reach out to us:"
)

const (
	topmateURL  = "https://topmate.io/gerryson/870539"
	whatsappURL = "https://whatsapp.com/channel/0029VamouNm5Ejy6enHyEd29"
	pdfURL      = "https://docs.google.com/document/d/e/2PACX-1vTOhSl0g3Q1K_44w5OJFlyBDkOEraufV3sxtojvuQZeIE7S_ptwk0FGjfMi2mohSJ5qgt3-Tw3KbH48/pub"
	contactURL  = "https://forms.gle/E3hs5TrJuT7zVGMZ6"
)

// Sender sends messages on behalf of the bot. *bot.Bot satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Dispatcher routes message text to the matching menu handler. Recording
// failures never block the reply: the user hears back even when the store is
// down.
type Dispatcher struct {
	store   store.Interactions
	stats   store.StatsReader
	ownerID int64
	logger  *logrus.Entry
}

// New constructs a Dispatcher. stats may be nil when the active backend does
// not support aggregate queries; /stats then reports that.
func New(interactions store.Interactions, stats store.StatsReader, ownerID int64, logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Dispatcher{
		store:   interactions,
		stats:   stats,
		ownerID: ownerID,
		logger:  logger,
	}
}

// Handle processes one update. Non-message updates and unmatched text are
// logged and dropped.
func (d *Dispatcher) Handle(ctx context.Context, sender Sender, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}

	msg := update.Message
	text := strings.TrimSpace(msg.Text)

	switch {
	case text == "/start" || strings.HasPrefix(text, "/start "):
		d.handleStart(ctx, sender, msg)
	case text == "/stats":
		d.handleStats(ctx, sender, msg)
	case text == ButtonConsultation:
		d.handleConsultation(ctx, sender, msg)
	case isChallengeOption(text):
		d.handleChallengeResponse(ctx, sender, msg, text)
	case text == ButtonJobs:
		d.handleJobs(ctx, sender, msg)
	case text == ButtonFreePDF:
		d.handleFreePDF(ctx, sender, msg)
	case text == ButtonEndChat:
		d.handleEndChat(ctx, sender, msg)
	case text == ButtonContactUs:
		d.handleContactUs(ctx, sender, msg)
	default:
		d.logger.WithFields(logging.Fields{
			"event":   "update_unrouted",
			"chat_id": msg.Chat.ID,
			"text":    text,
		}).Debug("no handler matched the message text")
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, sender Sender, msg *models.Message) {
	d.record(ctx, msg, domain.InteractionCommand, "/start", welcomeText)
	d.send(ctx, sender, &bot.SendMessageParams{
		ChatID:      msg.Chat.ID,
		Text:        welcomeText,
		ReplyMarkup: menuKeyboard(),
	})
}

func (d *Dispatcher) handleConsultation(ctx context.Context, sender Sender, msg *models.Message) {
	d.record(ctx, msg, domain.InteractionClickedButton, msg.Text, challengePromptText)

	rows := make([][]models.KeyboardButton, 0, len(challengeOptions))
	for _, option := range challengeOptions {
		rows = append(rows, []models.KeyboardButton{{Text: option}})
	}

	d.send(ctx, sender, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   challengePromptText,
		ReplyMarkup: &models.ReplyKeyboardMarkup{
			Keyboard:       rows,
			ResizeKeyboard: true,
		},
	})
}

func (d *Dispatcher) handleChallengeResponse(ctx context.Context, sender Sender, msg *models.Message, response string) {
	d.record(ctx, msg, domain.InteractionChallengeResponse, response, consultPitchText)

	d.send(ctx, sender, &bot.SendMessageParams{
		ChatID:      msg.Chat.ID,
		Text:        consultPitchText,
		ReplyMarkup: inlineLink("Book Your 1:1 Consult Call", topmateURL),
	})
	d.send(ctx, sender, &bot.SendMessageParams{
		ChatID:      msg.Chat.ID,
		Text:        followupText,
		ReplyMarkup: menuKeyboard(),
	})
	d.send(ctx, sender, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   exploreMoreText,
	})
}

func (d *Dispatcher) handleJobs(ctx context.Context, sender Sender, msg *models.Message) {
	d.record(ctx, msg, domain.InteractionClickedButton, msg.Text, jobsText)
	d.send(ctx, sender, &bot.SendMessageParams{
		ChatID:      msg.Chat.ID,
		Text:        jobsText,
		ReplyMarkup: inlineLink("Join WhatsApp Group", whatsappURL),
	})
}

func (d *Dispatcher) handleFreePDF(ctx context.Context, sender Sender, msg *models.Message) {
	d.record(ctx, msg, domain.InteractionClickedButton, msg.Text, pdfText)
	d.send(ctx, sender, &bot.SendMessageParams{
		ChatID:      msg.Chat.ID,
		Text:        pdfText,
		ReplyMarkup: inlineLink("📘 Download Free PDF", pdfURL),
	})
}

func (d *Dispatcher) handleEndChat(ctx context.Context, sender Sender, msg *models.Message) {
	d.record(ctx, msg, domain.InteractionClickedButton, msg.Text, endChatText)
	d.send(ctx, sender, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   endChatText,
	})
}

func (d *Dispatcher) handleContactUs(ctx context.Context, sender Sender, msg *models.Message) {
	d.record(ctx, msg, domain.InteractionClickedButton, msg.Text, contactText)
	d.send(ctx, sender, &bot.SendMessageParams{
		ChatID:      msg.Chat.ID,
		Text:        contactText,
		ReplyMarkup: inlineLink("📬 Contact Us Form", contactURL),
	})
}

func (d *Dispatcher) handleStats(ctx context.Context, sender Sender, msg *models.Message) {
	from := int64(0)
	if msg.From != nil {
		from = msg.From.ID
	}
	if d.ownerID == 0 || from != d.ownerID {
		d.logger.WithFields(logging.Fields{
			"event":   "stats_denied",
			"user_id": from,
		}).Debug("stats requested by non-owner")
		return
	}

	text := "Stats are not available on the active storage backend."
	if d.stats != nil {
		users, usersErr := d.stats.TotalUsers(ctx)
		interactions, interactionsErr := d.stats.TotalInteractions(ctx)
		if usersErr != nil || interactionsErr != nil {
			d.logger.WithFields(logging.Fields{
				"event": "stats_failed",
			}).WithError(firstError(usersErr, interactionsErr)).Error("failed to read aggregate stats")
			text = "Could not read stats right now, try again later."
		} else {
			text = fmt.Sprintf("📊 Bot stats\n\nUsers: %d\nInteractions: %d", users, interactions)
			if record, err := d.stats.UserSummary(ctx, d.ownerID); err == nil {
				text += fmt.Sprintf("\n\nYour record: %d interactions since %s",
					record.InteractionCount, domain.FormatTimestamp(record.FirstInteraction))
			}
		}
	}

	d.send(ctx, sender, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   text,
	})
}

// record persists the interaction best-effort: failures are logged, never
// surfaced to the user.
func (d *Dispatcher) record(ctx context.Context, msg *models.Message, interactionType, data, botResponse string) {
	if d.store == nil {
		return
	}

	userID := msg.Chat.ID
	snap := snapshot(msg)

	var update *domain.FieldUpdate
	if field, ok := domain.ParseField(interactionType); ok {
		update = &domain.FieldUpdate{Field: field, Value: data}
	}

	if err := d.store.Record(ctx, userID, snap, update); err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "interaction_record_failed",
			"user_id": userID,
		}).WithError(err).Error("failed to record interaction")
	}

	ev := domain.Event{
		UserID:      userID,
		Name:        snap.Name,
		Username:    snap.Username,
		Type:        interactionType,
		Data:        data,
		MessageText: msg.Text,
		BotResponse: botResponse,
		At:          domain.RecordTime(time.Now()),
	}
	if err := d.store.LogEvent(ctx, ev); err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "interaction_log_failed",
			"user_id": userID,
		}).WithError(err).Error("failed to log interaction event")
	}
}

func (d *Dispatcher) send(ctx context.Context, sender Sender, params *bot.SendMessageParams) {
	if _, err := sender.SendMessage(ctx, params); err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "send_failed",
			"chat_id": params.ChatID,
		}).WithError(err).Error("failed to send telegram message")
	}
}

func snapshot(msg *models.Message) domain.Snapshot {
	if msg.From == nil {
		return domain.Snapshot{Name: domain.ValueUnknown, Username: domain.ValueUnknown}
	}

	return domain.Snapshot{
		Name:     domain.NormalizedName(msg.From.FirstName, msg.From.LastName),
		Username: domain.NormalizedUsername(msg.From.Username),
	}
}

func isChallengeOption(text string) bool {
	for _, option := range challengeOptions {
		if text == option {
			return true
		}
	}
	return false
}

func menuKeyboard() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: ButtonConsultation}},
			{{Text: ButtonJobs}},
			{{Text: ButtonFreePDF}},
			{{Text: ButtonEndChat}},
			{{Text: ButtonContactUs}},
		},
		ResizeKeyboard: true,
	}
}

func inlineLink(label, url string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: label, URL: url}},
		},
	}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
