package discord

import (
	"context"

	"sirius/pkg/common"
	apperrors "sirius/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// TextChannel is a guild text channel
type TextChannel struct {
	ID   string
	Name string

	api    API
	logger *zap.Logger
}

// GetTextChannel returns the text channel called name, creating it when the server has none.
// New channels are private to the server owner unless isPublic is set.
func (s *Server) GetTextChannel(ctx context.Context, name string, isPublic bool) (*TextChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.textChannels == nil {
		channels, err := s.api.GuildChannels(s.ID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrapError(err, "list server channels")
		}
		s.textChannels = make([]*TextChannel, 0, len(channels))
		for _, c := range channels {
			if c.Type == discordgo.ChannelTypeGuildText {
				s.textChannels = append(s.textChannels, s.textChannel(c))
			}
		}
	}

	var matches []*TextChannel
	for _, c := range s.textChannels {
		if c.Name == name {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		s.logger.Warn("Channel not found; creating channel",
			zap.String("server", s.Name),
			zap.String("channel", name),
		)
		created, err := s.createTextChannel(ctx, name, isPublic)
		if err != nil {
			return nil, err
		}
		s.textChannels = append(s.textChannels, created)
		return created, nil
	default:
		return nil, apperrors.NewDuplicateFound("channel", name, len(matches))
	}
}

func (s *Server) createTextChannel(ctx context.Context, name string, isPublic bool) (*TextChannel, error) {
	data := discordgo.GuildChannelCreateData{Name: name, Type: discordgo.ChannelTypeGuildText}

	if !isPublic {
		owner, err := s.getServerOwner(ctx)
		if err != nil {
			return nil, err
		}
		everyone, err := s.getRole(ctx, RoleTypeEveryone)
		if err != nil {
			return nil, err
		}
		data.PermissionOverwrites = []*discordgo.PermissionOverwrite{
			{ID: owner.ID, Type: discordgo.PermissionOverwriteTypeMember, Allow: discordgo.PermissionViewChannel},
			{ID: everyone.ID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		}
	}

	c, err := s.api.GuildChannelCreateComplex(s.ID, data, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapError(err, "create channel")
	}
	return s.textChannel(c), nil
}

func (s *Server) textChannel(c *discordgo.Channel) *TextChannel {
	return &TextChannel{ID: c.ID, Name: c.Name, api: s.api, logger: s.logger}
}

// SendMessage posts message to the channel. Nothing is sent inside the CI/CD pipeline.
func (c *TextChannel) SendMessage(ctx context.Context, message string) error {
	if common.IsCICDPipelineEnvironment() {
		c.logger.Debug("Skipping Discord message in CI/CD pipeline", zap.String("channel", c.Name))
		return nil
	}

	if _, err := c.api.ChannelMessageSend(c.ID, message, discordgo.WithContext(ctx)); err != nil {
		return wrapError(err, "send message")
	}
	return nil
}

// GetTextChannelFromDefaultBotAndServer resolves name on the default server of the default bot
func GetTextChannelFromDefaultBotAndServer(ctx context.Context, name string) (*TextChannel, error) {
	bot, err := GetBot(ctx)
	if err != nil {
		return nil, err
	}
	server, err := bot.GetServer(ctx, "")
	if err != nil {
		return nil, err
	}
	return server.GetTextChannel(ctx, name, false)
}
