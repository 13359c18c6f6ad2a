package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/quantbench/newswatch/internal/commodity"
	"github.com/quantbench/newswatch/internal/config"
	"github.com/quantbench/newswatch/internal/types"
)

// bucketColors picks the embed accent per commodity.
var bucketColors = map[string]int{
	commodity.Gold:       0xFFD700,
	commodity.Silver:     0xC0C0C0,
	commodity.Copper:     0xB87333,
	commodity.Platinum:   0xE5E4E2,
	commodity.Wti:        0x2F4F4F,
	commodity.Brent:      0x36454F,
	commodity.NaturalGas: 0x4682B4,
	commodity.Bitcoin:    0xF7931A,
	commodity.Ethereum:   0x627EEA,
	commodity.Corn:       0xFBEC5D,
	commodity.Wheat:      0xF5DEB3,
	commodity.Soybean:    0x9ACD32,
	commodity.Coffee:     0x6F4E37,
	commodity.Sugar:      0xFFF5EE,
	commodity.Cocoa:      0x7B3F00,
}

const defaultEmbedColor = 0x708090

// DiscordSink posts rich embeds. The target channel is resolved per
// guild by name and cached for the session lifetime.
type DiscordSink struct {
	session     *discordgo.Session
	channelName string
	logger      *slog.Logger

	mu       sync.Mutex
	channels map[string]string // guild ID -> resolved channel ID
}

// NewDiscordSink opens the gateway session so guild state is available
// for channel resolution.
func NewDiscordSink(cfg config.DiscordConfig, logger *slog.Logger) (*DiscordSink, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord open: %w", err)
	}

	return &DiscordSink{
		session:     session,
		channelName: cfg.Channel,
		logger:      logger.With("component", "discord_sink"),
		channels:    make(map[string]string),
	}, nil
}

func (s *DiscordSink) Name() string { return "discord" }

// Send posts the embed to the resolved channel of every guild the bot
// is in. Per-guild failures are collected, not short-circuited.
func (s *DiscordSink) Send(ctx context.Context, msg Message) error {
	embed := s.buildEmbed(msg)

	var errs []error
	for _, guild := range s.session.State.Guilds {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		channelID, err := s.resolveChannel(guild.ID)
		if err != nil {
			s.logger.Warn("discord channel resolution failed", "guild", guild.ID, "error", err)
			errs = append(errs, fmt.Errorf("guild %s: %w", guild.ID, err))
			continue
		}
		if _, err := s.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
			s.logger.Warn("discord send failed", "guild", guild.ID, "channel", channelID, "error", err)
			errs = append(errs, fmt.Errorf("guild %s: %w", guild.ID, err))
		}
	}
	if len(errs) > 0 {
		return &types.NotifyError{Sink: s.Name(), Err: errors.Join(errs...)}
	}
	return nil
}

// Close shuts down the gateway session.
func (s *DiscordSink) Close() error {
	return s.session.Close()
}

func (s *DiscordSink) buildEmbed(msg Message) *discordgo.MessageEmbed {
	color, ok := bucketColors[msg.Bucket]
	if !ok {
		color = defaultEmbedColor
	}
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Content,
		Color:       color,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%s #%d", msg.Bucket, msg.ID),
		},
	}
	if msg.Time != "" {
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Published", Value: msg.Time, Inline: true},
		}
	}
	return embed
}

// resolveChannel finds the configured channel name inside a guild.
func (s *DiscordSink) resolveChannel(guildID string) (string, error) {
	s.mu.Lock()
	if id, ok := s.channels[guildID]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	channels, err := s.session.GuildChannels(guildID)
	if err != nil {
		return "", fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && ch.Name == s.channelName {
			s.mu.Lock()
			s.channels[guildID] = ch.ID
			s.mu.Unlock()
			return ch.ID, nil
		}
	}
	return "", fmt.Errorf("no text channel named %q", s.channelName)
}
