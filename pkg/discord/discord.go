package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sirius/pkg/common"
	"sirius/pkg/config"
	apperrors "sirius/pkg/errors"
	"sirius/pkg/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// API is the subset of the discordgo REST client used here. *discordgo.Session satisfies it.
type API interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	UserGuilds(limit int, beforeID, afterID string, withCounts bool, options ...discordgo.RequestOption) ([]*discordgo.UserGuild, error)
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// RoleType classifies guild roles by name
type RoleType string

const (
	RoleTypeEveryone RoleType = "@everyone"
	RoleTypeBot      RoleType = "Bot"
	RoleTypeOther    RoleType = ""
)

const (
	serverOwnerVariable = "DISCORD_SERVER_OWNER_USERNAME"
	memberPageSize      = 1000
	guildPageSize       = 200
)

var (
	defaultAPI     API
	defaultAPIErr  error
	defaultAPIOnce sync.Once
)

// DefaultAPI builds a REST session from DISCORD_BOT_TOKEN on first use
func DefaultAPI() (API, error) {
	defaultAPIOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			defaultAPIErr = err
			return
		}
		token, err := config.Require("DISCORD_BOT_TOKEN", cfg.DiscordBotToken)
		if err != nil {
			defaultAPIErr = err
			return
		}
		session, err := discordgo.New("Bot " + token)
		if err != nil {
			defaultAPIErr = apperrors.NewSDKClientError("failed to create Discord session", err)
			return
		}
		defaultAPI = session
	})
	return defaultAPI, defaultAPIErr
}

// Bot is the authenticated bot user
type Bot struct {
	ID       string
	Username string

	api    API
	logger *zap.Logger

	mu      sync.Mutex
	servers []*Server
}

// GetBot loads the bot behind DISCORD_BOT_TOKEN
func GetBot(ctx context.Context) (*Bot, error) {
	api, err := DefaultAPI()
	if err != nil {
		return nil, err
	}
	return NewBot(ctx, api)
}

// NewBot loads the bot user through api
func NewBot(ctx context.Context, api API) (*Bot, error) {
	u, err := api.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapError(err, "get bot user")
	}
	return &Bot{ID: u.ID, Username: u.Username, api: api, logger: logger.Named("discord")}, nil
}

// DefaultServerName is the application name, suffixed with " [Dev]" outside production
func DefaultServerName() (string, error) {
	name, err := common.GetApplicationName()
	if err != nil {
		return "", err
	}
	if common.IsProductionEnvironment() {
		return name, nil
	}
	return name + " [Dev]", nil
}

// GetServer returns the guild called name, or the default server when name is empty.
// The bot's guild list is fetched once.
func (b *Bot) GetServer(ctx context.Context, name string) (*Server, error) {
	if name == "" {
		var err error
		if name, err = DefaultServerName(); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.servers == nil {
		servers, err := b.loadServers(ctx)
		if err != nil {
			return nil, err
		}
		b.servers = servers
	}

	var matches []*Server
	for _, s := range b.servers {
		if s.Name == name {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, apperrors.NewNotFound("server", name)
	default:
		return nil, apperrors.NewDuplicateFound("server", name, len(matches))
	}
}

func (b *Bot) loadServers(ctx context.Context) ([]*Server, error) {
	servers := make([]*Server, 0)
	after := ""
	for {
		page, err := b.api.UserGuilds(guildPageSize, "", after, false, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrapError(err, "list servers")
		}
		for _, g := range page {
			servers = append(servers, &Server{ID: g.ID, Name: g.Name, api: b.api, logger: b.logger})
		}
		if len(page) < guildPageSize {
			return servers, nil
		}
		after = page[len(page)-1].ID
	}
}

// Server is a guild the bot belongs to. Channels, users and roles are cached after the first lookup.
type Server struct {
	ID   string
	Name string

	api    API
	logger *zap.Logger

	mu           sync.Mutex
	textChannels []*TextChannel
	users        []*User
	roles        []*Role
}

// User is a guild member
type User struct {
	ID       string
	Username string
	Name     string
	IsBot    bool
}

// Role is a guild role
type Role struct {
	ID          string
	Type        RoleType
	Permissions int64
}

func roleTypeOf(name string) RoleType {
	switch RoleType(name) {
	case RoleTypeEveryone, RoleTypeBot:
		return RoleType(name)
	default:
		return RoleTypeOther
	}
}

// GetUser returns the member with the given username
func (s *Server) GetUser(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getUser(ctx, username)
}

func (s *Server) getUser(ctx context.Context, username string) (*User, error) {
	if s.users == nil {
		users, err := s.loadUsers(ctx)
		if err != nil {
			return nil, err
		}
		s.users = users
	}

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperrors.NewNotFound("user", username)
}

func (s *Server) loadUsers(ctx context.Context) ([]*User, error) {
	users := make([]*User, 0)
	after := ""
	for {
		page, err := s.api.GuildMembers(s.ID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrapError(err, "list server members")
		}
		for _, m := range page {
			if m.User == nil {
				continue
			}
			users = append(users, &User{
				ID:       m.User.ID,
				Username: m.User.Username,
				Name:     m.User.GlobalName,
				IsBot:    m.User.Bot,
			})
		}
		if len(page) < memberPageSize || page[len(page)-1].User == nil {
			return users, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// GetServerOwner returns the member named by DISCORD_SERVER_OWNER_USERNAME
func (s *Server) GetServerOwner(ctx context.Context) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getServerOwner(ctx)
}

func (s *Server) getServerOwner(ctx context.Context) (*User, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	username, err := config.Require(serverOwnerVariable, cfg.DiscordServerOwnerUsername)
	if err != nil {
		return nil, err
	}
	return s.getUser(ctx, username)
}

// GetRole returns the first role of roleType. RoleTypeOther is ambiguous and refused.
func (s *Server) GetRole(ctx context.Context, roleType RoleType) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getRole(ctx, roleType)
}

func (s *Server) getRole(ctx context.Context, roleType RoleType) (*Role, error) {
	if roleType == RoleTypeOther {
		return nil, apperrors.NewOperationNotSupported("get role", "OTHER Role Type searches are not allowed")
	}

	if s.roles == nil {
		roles, err := s.api.GuildRoles(s.ID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrapError(err, "list server roles")
		}
		s.roles = make([]*Role, 0, len(roles))
		for _, r := range roles {
			s.roles = append(s.roles, &Role{ID: r.ID, Type: roleTypeOf(r.Name), Permissions: r.Permissions})
		}
	}

	for _, r := range s.roles {
		if r.Type == roleType {
			return r, nil
		}
	}
	return nil, apperrors.NewNotFound("role", string(roleType))
}

// TimestampString renders t as a Discord long-time timestamp
func TimestampString(t time.Time) string {
	return fmt.Sprintf("<t:%d:T>", t.Unix())
}

func wrapError(err error, action string) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Request != nil && restErr.Response != nil {
		err = apperrors.NewHTTPError(restErr.Request.Method, restErr.Request.URL.String(),
			restErr.Response.StatusCode, restErr.Response.Header, string(restErr.ResponseBody))
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
