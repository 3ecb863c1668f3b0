package messaging

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"sirius/internal/httpclient"
	"sirius/pkg/config"
	"sirius/pkg/logger"

	"go.uber.org/zap"
)

const (
	// BaseURL is the Twilio REST API root
	BaseURL = "https://api.twilio.com"

	endpointMessages = "/2010-04-01/Accounts/%s/Messages.json"
	whatsAppPrefix   = "whatsapp:"
)

// Message is a created Twilio message resource
type Message struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
	Body   string `json:"body"`
}

// Client sends SMS and WhatsApp messages through one Twilio account
type Client struct {
	session    *httpclient.Session
	accountSID string
	logger     *zap.Logger
}

// NewClient creates a client for accountSID against baseURL
func NewClient(baseURL, accountSID, authToken string) *Client {
	return &Client{
		session:    httpclient.NewSession(baseURL, nil, httpclient.WithBasicAuth(accountSID, authToken)),
		accountSID: accountSID,
		logger:     logger.Named("twilio"),
	}
}

var (
	defaultClient     *Client
	defaultClientErr  error
	defaultClientOnce sync.Once
)

// DefaultClient is built on first use from TWILLO_ACCOUNT_SID and TWILLO_AUTH_TOKEN
func DefaultClient() (*Client, error) {
	defaultClientOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			defaultClientErr = err
			return
		}
		sid, err := config.Require("TWILLO_ACCOUNT_SID", cfg.TwilioAccountSID)
		if err != nil {
			defaultClientErr = err
			return
		}
		token, err := config.Require("TWILLO_AUTH_TOKEN", cfg.TwilioAuthToken)
		if err != nil {
			defaultClientErr = err
			return
		}
		defaultClient = NewClient(BaseURL, sid, token)
	})
	return defaultClient, defaultClientErr
}

// Send creates a message from one number to another. Both numbers are passed through unchanged.
func (c *Client) Send(ctx context.Context, from, to, body string) (*Message, error) {
	form := url.Values{
		"From": {from},
		"To":   {to},
		"Body": {body},
	}

	resp, err := c.session.PostForm(ctx, fmt.Sprintf(endpointMessages, url.PathEscape(c.accountSID)), form)
	if err != nil {
		return nil, fmt.Errorf("failed to send message to %s: %w", to, err)
	}

	var msg Message
	if err := resp.Decode(&msg); err != nil {
		return nil, err
	}

	c.logger.Info("Message sent",
		zap.String("sid", msg.SID),
		zap.String("status", msg.Status),
		zap.String("to", msg.To),
	)
	return &msg, nil
}

// SendWhatsApp sends body to phone from the account's WhatsApp sender
func (c *Client) SendWhatsApp(ctx context.Context, from, phone, body string) (*Message, error) {
	return c.Send(ctx, whatsAppPrefix+from, whatsAppPrefix+phone, body)
}

// SendWhatsAppMessage sends body to phone from TWILLO_WHATSAPP_NUMBER with the default client
func SendWhatsAppMessage(ctx context.Context, phone, body string) (*Message, error) {
	client, err := DefaultClient()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	from, err := config.Require("TWILLO_WHATSAPP_NUMBER", cfg.TwilioWhatsAppNumber)
	if err != nil {
		return nil, err
	}
	return client.SendWhatsApp(ctx, from, phone, body)
}

// SendSMS sends body to phone from TWILLO_SMS_NUMBER with the default client
func SendSMS(ctx context.Context, phone, body string) (*Message, error) {
	client, err := DefaultClient()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	from, err := config.Require("TWILLO_SMS_NUMBER", cfg.TwilioSMSNumber)
	if err != nil {
		return nil, err
	}
	return client.Send(ctx, from, phone, body)
}
