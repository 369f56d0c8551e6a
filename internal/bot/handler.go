package bot

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mode-relay-bot/internal/mode"
	"github.com/mode-relay-bot/internal/models"
)

const unknownCommandMessage = "Unknown command. Use /help to see what I can do."

// fileRef is an attachment before its download URL is resolved
type fileRef struct {
	fileID      string
	contentType string
	filename    string
}

// handleUpdate processes incoming update
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// Wrap in recover middleware
	b.recoverMiddleware(func() {
		if update.Message != nil {
			b.handleMessage(ctx, update.Message)
		}
	})
}

// handleMessage processes incoming message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.From.IsBot {
		return
	}

	if !b.config.IsAllowedChat(message.Chat.ID) {
		b.logger.Debug().
			Int64("chat_id", message.Chat.ID).
			Msg("Ignoring message from chat outside the allow-list")
		return
	}

	if message.IsCommand() {
		if !b.commandForMe(message) {
			return
		}
		b.handleCommand(ctx, message)
		return
	}

	if !message.Chat.IsPrivate() && !b.isAddressed(message) {
		return
	}

	b.handleConversation(ctx, message)
}

// handleCommand processes mode commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	selected, ok := mode.Parse(message.Command())
	if !ok {
		b.sendMessage(message.Chat.ID, unknownCommandMessage)
		return
	}

	if strings.TrimSpace(message.CommandArguments()) != "" {
		b.sendTypingAction(message.Chat.ID)
	}

	result := b.handler.HandleCommand(ctx, conversation(message), selected, message.CommandArguments())
	b.sendMessage(message.Chat.ID, result.Ack)
	for _, reply := range result.Replies {
		b.sendMessage(message.Chat.ID, reply)
	}
}

// handleConversation relays a plain message, photo or document
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	incoming := b.incomingMessage(message)

	for _, ref := range fileRefs(message) {
		url, err := b.api.GetFileDirectURL(ref.fileID)
		if err != nil {
			b.logger.Warn().
				Err(err).
				Str("file_id", ref.fileID).
				Msg("Failed to resolve file URL")
			continue
		}
		incoming.Attachments = append(incoming.Attachments, models.Attachment{
			URL:         url,
			ContentType: ref.contentType,
			Filename:    ref.filename,
		})
	}

	b.logger.Info().
		Int64("chat_id", chatID).
		Int64("user_id", message.From.ID).
		Str("username", message.From.UserName).
		Int("attachments", len(incoming.Attachments)).
		Msg("Processing message")

	b.sendTypingAction(chatID)

	for _, reply := range b.handler.HandleMessage(ctx, conversation(message), incoming) {
		b.sendMessage(chatID, reply)
	}
}

func conversation(message *tgbotapi.Message) models.Conversation {
	conv := models.Conversation{
		Platform: Platform,
		ChatID:   strconv.FormatInt(message.Chat.ID, 10),
	}
	if message.From != nil {
		conv.UserID = strconv.FormatInt(message.From.ID, 10)
		conv.Username = message.From.UserName
	}
	return conv
}

// fileRefs lists the photo (largest size) and document of a message
func fileRefs(message *tgbotapi.Message) []fileRef {
	var refs []fileRef
	if n := len(message.Photo); n > 0 {
		largest := message.Photo[n-1]
		refs = append(refs, fileRef{
			fileID:      largest.FileID,
			contentType: "image/jpeg",
			filename:    largest.FileUniqueID + ".jpg",
		})
	}
	if doc := message.Document; doc != nil {
		contentType := doc.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		refs = append(refs, fileRef{
			fileID:      doc.FileID,
			contentType: contentType,
			filename:    doc.FileName,
		})
	}
	return refs
}

// commandForMe reports whether a command is unaddressed or addressed to this bot
func (b *Bot) commandForMe(message *tgbotapi.Message) bool {
	withAt := message.CommandWithAt()
	i := strings.IndexByte(withAt, '@')
	if i < 0 {
		return true
	}
	return strings.EqualFold(withAt[i+1:], b.config.TelegramUsername)
}

// isAddressed checks if the bot is mentioned in the message or the message replies to the bot
func (b *Bot) isAddressed(message *tgbotapi.Message) bool {
	if reply := message.ReplyToMessage; reply != nil && reply.From != nil &&
		strings.EqualFold(reply.From.UserName, b.config.TelegramUsername) {
		return true
	}

	text, entities := messageText(message)
	for _, entity := range entities {
		if entity.Type == "mention" && strings.EqualFold(entityText(text, entity), "@"+b.config.TelegramUsername) {
			return true
		}
	}

	// Also check if message text contains bot username
	return b.config.TelegramUsername != "" &&
		strings.Contains(strings.ToLower(text), strings.ToLower("@"+b.config.TelegramUsername))
}

// incomingMessage carries the question text; attachments are added by the caller
func (b *Bot) incomingMessage(message *tgbotapi.Message) *models.IncomingMessage {
	return &models.IncomingMessage{
		ID:              strconv.Itoa(message.MessageID),
		Text:            b.extractQuestion(message),
		MentionStripped: true,
	}
}

// extractQuestion returns the text or caption with the bot mention removed
func (b *Bot) extractQuestion(message *tgbotapi.Message) string {
	text, _ := messageText(message)
	if b.config.TelegramUsername == "" {
		return strings.TrimSpace(text)
	}

	// Remove bot mention, any letter case
	botMention := "@" + b.config.TelegramUsername
	for i := 0; i+len(botMention) <= len(text); {
		if strings.EqualFold(text[i:i+len(botMention)], botMention) {
			text = text[:i] + text[i+len(botMention):]
			continue
		}
		i++
	}

	return strings.TrimSpace(text)
}

func messageText(message *tgbotapi.Message) (string, []tgbotapi.MessageEntity) {
	if message.Text != "" {
		return message.Text, message.Entities
	}
	return message.Caption, message.CaptionEntities
}

// entityText slices an entity out of text; offsets count UTF-16 code units
func entityText(text string, entity tgbotapi.MessageEntity) string {
	units := utf16.Encode([]rune(text))
	end := entity.Offset + entity.Length
	if entity.Offset < 0 || end > len(units) || entity.Offset > end {
		return ""
	}
	return string(utf16.Decode(units[entity.Offset:end]))
}
