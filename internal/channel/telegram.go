package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"agriassist/internal/assistant"
	"agriassist/internal/httpx"
)

const (
	telegramMaxMsgLen   = 4000
	telegramMaxPhotoLen = 10 << 20
)

// Telegram implements domain.Channel for Telegram. Plant photos arrive as
// photo messages whose caption carries the question; plain text messages
// take the text-only path.
type Telegram struct {
	token     string
	allowFrom []int64 // allowed user IDs (empty = allow all)
	parseMode string

	assistant       *assistant.Assistant
	sessions        *assistant.Sessions
	classifierReady bool

	bot    *tgbotapi.BotAPI
	client *http.Client
	logger *slog.Logger
}

type TelegramConfig struct {
	Token           string
	AllowFrom       []string // user IDs as strings
	ParseMode       string
	Assistant       *assistant.Assistant
	Sessions        *assistant.Sessions
	ClassifierReady bool
	Logger          *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:           cfg.Token,
		allowFrom:       allowed,
		parseMode:       cfg.ParseMode,
		assistant:       cfg.Assistant,
		sessions:        cfg.Sessions,
		classifierReady: cfg.ClassifierReady,
		client:          httpx.NewClient(httpx.DefaultTimeout),
		logger:          cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

// Stop is a no-op: the bot stops when Start's context is cancelled.
func (t *Telegram) Stop() error { return nil }

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user", "user_id", userID, "username", update.Message.From.UserName)
		t.sendMessage(chatID, "Unauthorized. Your user ID is not in the allow list.")
		return
	}

	if update.Message.IsCommand() {
		t.handleCommand(chatID, update.Message)
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		text = strings.TrimSpace(update.Message.Caption)
	}

	var imageBytes []byte
	var imageName string
	if len(update.Message.Photo) > 0 {
		if !t.classifierReady {
			t.sendMessage(chatID, "Image analysis is not configured on this bot. Please ask a text question instead.")
			return
		}
		// Telegram sends several sizes; take the largest.
		photo := update.Message.Photo[len(update.Message.Photo)-1]
		data, err := t.downloadPhoto(ctx, photo.FileID)
		if err != nil {
			t.logger.Error("photo download failed", "chat_id", chatID, "err", err)
			t.sendMessage(chatID, "Sorry, I could not download that photo. Please try again.")
			return
		}
		imageBytes = data
		imageName = photo.FileID + ".jpg"
	}

	if text == "" && len(imageBytes) == 0 {
		return
	}

	t.logger.Info("telegram submission received",
		"chat_id", chatID,
		"has_image", len(imageBytes) > 0,
		"text_len", len(text),
	)

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, _ = t.bot.Send(typing)

	conv := t.sessions.GetOrCreate("tg:" + strconv.FormatInt(chatID, 10))
	res, err := t.assistant.Respond(ctx, conv, assistant.TurnInput{
		Text:      text,
		Image:     imageBytes,
		ImageName: imageName,
	})
	if err != nil {
		if errors.Is(err, assistant.ErrEmptySubmission) {
			t.sendMessage(chatID, "Send a question about your crops, or a plant photo with an optional caption.")
			return
		}
		t.sendMessage(chatID, "Sorry, something went wrong handling that message.")
		return
	}

	t.sendMessage(chatID, res.Answer)
}

func (t *Telegram) handleCommand(chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		t.sendMessage(chatID, "👋 Hello! I'm Agri-Assistant.\n\nAsk me anything about your crops, or send a photo of a plant leaf to check for diseases.\n\nCommands:\n/reset — Start the conversation over\n/help — Show this message")
	case "help":
		t.sendMessage(chatID, "Send a text question for farming advice, or a plant photo (with an optional caption asking your question) for a health check-up.\n\nCommands:\n/reset — Start the conversation over")
	case "reset":
		t.sessions.Reset("tg:" + strconv.FormatInt(chatID, 10))
		t.sendMessage(chatID, "Conversation cleared. How can I help you with your crops?")
	default:
		t.sendMessage(chatID, "Unknown command. Try /help.")
	}
}

// downloadPhoto fetches the raw bytes of a Telegram file by ID.
func (t *Telegram) downloadPhoto(ctx context.Context, fileID string) ([]byte, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, telegramMaxPhotoLen))
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *Telegram) sendMessage(chatID int64, content string) {
	for _, chunk := range splitMessage(content, telegramMaxMsgLen) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = t.parseMode
		if _, err := t.bot.Send(msg); err != nil {
			// Markdown parse errors are common with model output; retry plain.
			msg.ParseMode = ""
			if _, err := t.bot.Send(msg); err != nil {
				t.logger.Error("telegram send failed", "chat_id", chatID, "err", err)
				return
			}
		}
	}
}

// splitMessage chunks content at newline boundaries where possible so each
// piece fits Telegram's message length limit.
func splitMessage(content string, limit int) []string {
	if len(content) <= limit {
		return []string{content}
	}
	var chunks []string
	for len(content) > limit {
		cut := strings.LastIndex(content[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, content[:cut])
		content = strings.TrimLeft(content[cut:], "\n")
	}
	if content != "" {
		chunks = append(chunks, content)
	}
	return chunks
}
