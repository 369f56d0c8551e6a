package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/mode-relay-bot/internal/mode"
	"github.com/mode-relay-bot/internal/models"
)

const unknownCommandMessage = "Unknown command. Use /help to see what I can do."

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		b.logger.Debug().Msg("Ignored bot message")
		return
	}

	botID := ""
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}
	if m.Author.ID == botID {
		return
	}

	// Guild messages need a mention; direct messages are always answered
	if m.GuildID != "" && !mentions(m.Message, botID) {
		b.logger.Debug().Str("guild_id", m.GuildID).Msg("Ignored guild message")
		return
	}

	b.track(func() {
		incoming := incomingMessage(m.Message)

		b.logger.Info().
			Str("channel_id", m.ChannelID).
			Str("user_id", m.Author.ID).
			Int("attachments", len(incoming.Attachments)).
			Msg("Processing message")

		if err := s.ChannelTyping(m.ChannelID); err != nil {
			b.logger.Debug().Err(err).Msg("Failed to send typing indicator")
		}

		for _, reply := range b.handler.HandleMessage(b.ctx, messageConversation(m.Message), incoming) {
			if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
				b.logger.Error().
					Err(err).
					Str("channel_id", m.ChannelID).
					Msg("Failed to send message")
			}
		}
	})
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	b.track(func() {
		// Acknowledge immediately to satisfy Discord's 3s limit
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		}); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to defer interaction")
			return
		}

		data := i.ApplicationCommandData()
		selected, ok := mode.Parse(data.Name)
		if !ok {
			b.editResponse(s, i, unknownCommandMessage)
			return
		}

		result := b.handler.HandleCommand(b.ctx, interactionConversation(i.Interaction), selected, commandArgument(data))
		b.editResponse(s, i, result.Ack)

		for _, reply := range result.Replies {
			if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: reply}); err != nil {
				b.logger.Error().Err(err).Str("command", data.Name).Msg("Failed to send follow-up")
			}
		}
	})
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		b.logger.Error().Err(err).Msg("Failed to edit interaction response")
	}
}

// mentions reports whether the message mentions the user with the given id
func mentions(m *discordgo.Message, userID string) bool {
	if userID == "" {
		return false
	}
	for _, u := range m.Mentions {
		if u != nil && u.ID == userID {
			return true
		}
	}
	return false
}

func incomingMessage(m *discordgo.Message) *models.IncomingMessage {
	incoming := &models.IncomingMessage{
		ID:   m.ID,
		Text: strings.TrimSpace(m.Content),
	}
	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		incoming.Attachments = append(incoming.Attachments, models.Attachment{
			URL:         att.URL,
			ContentType: att.ContentType,
			Filename:    att.Filename,
		})
	}
	return incoming
}

func messageConversation(m *discordgo.Message) models.Conversation {
	conv := models.Conversation{Platform: Platform, ChatID: m.ChannelID}
	if m.Author != nil {
		conv.UserID = m.Author.ID
		conv.Username = m.Author.Username
	}
	return conv
}

func interactionConversation(i *discordgo.Interaction) models.Conversation {
	conv := models.Conversation{Platform: Platform, ChatID: i.ChannelID}
	switch {
	case i.Member != nil && i.Member.User != nil:
		conv.UserID = i.Member.User.ID
		conv.Username = i.Member.User.Username
	case i.User != nil:
		conv.UserID = i.User.ID
		conv.Username = i.User.Username
	}
	return conv
}

func commandArgument(data discordgo.ApplicationCommandInteractionData) string {
	for _, opt := range data.Options {
		if opt != nil && opt.Name == textOption && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}
