// ==============================================
// File: internal/bot/messenger.go
// ==============================================
// Package bot hosts the Telegram surface: page rendering, callback and
// input handling, and the deposit-gated deployment flow.
package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Button is one inline keyboard button: a label and the callback payload it
// sends back.
type Button struct {
	Label string
	Data  string
}

// Messenger is the outbound Telegram surface the handlers use. Keeping it
// narrow makes every handler testable against a fake.
type Messenger interface {
	SendPage(ctx context.Context, chatID int64, text string, keyboard [][]Button) (int, error)
	EditPage(ctx context.Context, chatID int64, messageID int, text string, keyboard [][]Button) error
	SendNotice(ctx context.Context, chatID int64, text string) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int)
	AnswerCallback(ctx context.Context, callbackID string)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// TelegramMessenger implements Messenger over go-telegram/bot.
type TelegramMessenger struct {
	api    *tgbot.Bot
	files  *http.Client
	logger *zap.Logger
}

func NewTelegramMessenger(api *tgbot.Bot, logger *zap.Logger) *TelegramMessenger {
	return &TelegramMessenger{
		api:    api,
		files:  &http.Client{Timeout: 30 * time.Second},
		logger: logger.Named("telegram"),
	}
}

func keyboardMarkup(keyboard [][]Button) *models.InlineKeyboardMarkup {
	if len(keyboard) == 0 {
		return nil
	}
	rows := make([][]models.InlineKeyboardButton, len(keyboard))
	for i, row := range keyboard {
		buttons := make([]models.InlineKeyboardButton, len(row))
		for j, b := range row {
			buttons[j] = models.InlineKeyboardButton{Text: b.Label, CallbackData: b.Data}
		}
		rows[i] = buttons
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (m *TelegramMessenger) SendPage(ctx context.Context, chatID int64, text string, keyboard [][]Button) (int, error) {
	params := &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup := keyboardMarkup(keyboard); markup != nil {
		params.ReplyMarkup = markup
	}
	msg, err := m.api.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

func (m *TelegramMessenger) EditPage(ctx context.Context, chatID int64, messageID int, text string, keyboard [][]Button) error {
	params := &tgbot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup := keyboardMarkup(keyboard); markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := m.api.EditMessageText(ctx, params); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (m *TelegramMessenger) SendNotice(ctx context.Context, chatID int64, text string) (int, error) {
	msg, err := m.api.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send notice: %w", err)
	}
	return msg.ID, nil
}

// DeleteMessage is best effort; a message already gone is not worth
// surfacing to the user.
func (m *TelegramMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) {
	_, err := m.api.DeleteMessage(ctx, &tgbot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	})
	if err != nil {
		m.logger.Debug("failed to delete message",
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID),
			zap.Error(err))
	}
}

func (m *TelegramMessenger) AnswerCallback(ctx context.Context, callbackID string) {
	_, err := m.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	})
	if err != nil {
		m.logger.Debug("failed to answer callback", zap.Error(err))
	}
}

// DownloadFile fetches an uploaded file's bytes through the bot file API.
func (m *TelegramMessenger) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := m.api.GetFile(ctx, &tgbot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.api.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := m.files.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}
	return data, nil
}

// Dispatch routes raw Telegram updates into the service. Registered as the
// default handler so every update funnels through one place.
func Dispatch(service *Service) tgbot.HandlerFunc {
	return func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
		switch {
		case update.CallbackQuery != nil:
			cq := update.CallbackQuery
			if cq.Message.Message == nil {
				return
			}
			service.HandleCallback(ctx, cq.Message.Message.Chat.ID, cq.Message.Message.ID, cq.ID, cq.Data)
		case update.Message != nil && len(update.Message.Photo) > 0:
			msg := update.Message
			// Telegram orders photo sizes ascending; take the largest.
			service.HandlePhoto(ctx, msg.Chat.ID, msg.ID, msg.Photo[len(msg.Photo)-1].FileID)
		case update.Message != nil:
			service.HandleText(ctx, update.Message.Chat.ID, update.Message.ID, update.Message.Text)
		}
	}
}
