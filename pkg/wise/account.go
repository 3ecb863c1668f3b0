package wise

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"sirius/internal/httpclient"
	"sirius/pkg/common"
	"sirius/pkg/config"
	apperrors "sirius/pkg/errors"
	"sirius/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountType selects which Wise login the API key belongs to
type AccountType int

const (
	Primary AccountType = iota + 1
	Secondary
)

func (t AccountType) String() string {
	switch t {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Account is one Wise login with its personal and business profiles
type Account struct {
	PersonalProfile *Profile
	BusinessProfile *Profile
}

// Profile is a personal or business profile with its balances and recipients
type Profile struct {
	ID              int64
	Type            string
	CashAccounts    []*CashAccount
	ReserveAccounts []*ReserveAccount
	Recipients      []*Recipient
}

// CashAccount is a STANDARD balance
type CashAccount struct {
	ID        int64
	Name      string
	Currency  Currency
	Balance   decimal.Decimal
	ProfileID int64

	client *client
}

// ReserveAccount is a SAVINGS balance (a "jar")
type ReserveAccount struct {
	ID        int64
	Name      string
	Currency  Currency
	Balance   decimal.Decimal
	ProfileID int64

	client *client
}

// Recipient is a saved payee with a bank account number
type Recipient struct {
	ID                int64
	AccountHolderName string
	Currency          Currency
	IsSelfOwned       bool
	AccountNumber     string
}

type client struct {
	session *httpclient.Session
	logger  *zap.Logger
}

// apiKeyVariable picks the key for the environment; everything but production uses the sandbox
func apiKeyVariable(accountType AccountType) (baseURL, variable string) {
	if !common.IsProductionEnvironment() {
		return SandboxURL, "WISE_SANDBOX_ACCOUNT_API_KEY"
	}
	if accountType == Secondary {
		return ProductionURL, "WISE_SECONDARY_ACCOUNT_API_KEY"
	}
	return ProductionURL, "WISE_PRIMARY_ACCOUNT_API_KEY"
}

// Get loads the account for accountType with every profile, balance and recipient
func Get(ctx context.Context, accountType AccountType) (*Account, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	baseURL, variable := apiKeyVariable(accountType)
	apiKey, err := config.Require(variable, map[string]string{
		"WISE_PRIMARY_ACCOUNT_API_KEY":   cfg.WisePrimaryAccountAPIKey,
		"WISE_SECONDARY_ACCOUNT_API_KEY": cfg.WiseSecondaryAccountAPIKey,
		"WISE_SANDBOX_ACCOUNT_API_KEY":   cfg.WiseSandboxAccountAPIKey,
	}[variable])
	if err != nil {
		return nil, err
	}

	session := httpclient.NewSession(baseURL, map[string]string{"Authorization": "Bearer " + apiKey})
	return Load(ctx, session)
}

// Load reads the account through an already authenticated session
func Load(ctx context.Context, session *httpclient.Session) (*Account, error) {
	c := &client{session: session, logger: logger.Named("wise")}

	profiles, err := c.getProfiles(ctx)
	if err != nil {
		return nil, err
	}

	account := &Account{}
	for _, p := range profiles {
		switch strings.ToLower(p.Type) {
		case profileTypePersonal:
			account.PersonalProfile = p
		case profileTypeBusiness:
			account.BusinessProfile = p
		}
	}
	if account.PersonalProfile == nil {
		return nil, apperrors.NewNotFound("profile", profileTypePersonal)
	}
	if account.BusinessProfile == nil {
		return nil, apperrors.NewNotFound("profile", profileTypeBusiness)
	}
	return account, nil
}

type profileResponse struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type amountResponse struct {
	Value    decimal.Decimal `json:"value"`
	Currency Currency        `json:"currency"`
}

type balanceResponse struct {
	ID         int64          `json:"id"`
	Name       *string        `json:"name"`
	Currency   Currency       `json:"currency"`
	CashAmount amountResponse `json:"cashAmount"`
}

type recipientResponse struct {
	ID                int64    `json:"id"`
	AccountHolderName string   `json:"accountHolderName"`
	Currency          Currency `json:"currency"`
	OwnedByCustomer   bool     `json:"ownedByCustomer"`
	Details           struct {
		AccountNumber *string `json:"accountNumber"`
	} `json:"details"`
}

func (c *client) getProfiles(ctx context.Context) ([]*Profile, error) {
	raw, err := httpclient.GetMultiple[profileResponse](ctx, c.session, endpointProfiles, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	// Profiles are independent, so their balances and recipients load concurrently
	return common.ParallelMap(ctx, raw, len(raw), func(ctx context.Context, p profileResponse) (*Profile, error) {
		return c.loadProfile(ctx, p)
	})
}

func (c *client) loadProfile(ctx context.Context, p profileResponse) (*Profile, error) {
	profile := &Profile{ID: p.ID, Type: p.Type}

	cash, err := c.getBalances(ctx, p.ID, balanceTypeStandard)
	if err != nil {
		return nil, err
	}
	for _, b := range cash {
		profile.CashAccounts = append(profile.CashAccounts, &CashAccount{
			ID:        b.ID,
			Name:      stringValue(b.Name),
			Currency:  b.CashAmount.Currency,
			Balance:   b.CashAmount.Value,
			ProfileID: p.ID,
			client:    c,
		})
	}

	savings, err := c.getBalances(ctx, p.ID, balanceTypeSavings)
	if err != nil {
		return nil, err
	}
	for _, b := range savings {
		profile.ReserveAccounts = append(profile.ReserveAccounts, &ReserveAccount{
			ID:        b.ID,
			Name:      stringValue(b.Name),
			Currency:  b.CashAmount.Currency,
			Balance:   b.CashAmount.Value,
			ProfileID: p.ID,
			client:    c,
		})
	}

	recipients, err := httpclient.GetMultiple[recipientResponse](ctx, c.session, endpointRecipients,
		url.Values{"profile": {strconv.FormatInt(p.ID, 10)}})
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients for profile %d: %w", p.ID, err)
	}
	for _, r := range recipients {
		if r.Details.AccountNumber == nil {
			continue
		}
		profile.Recipients = append(profile.Recipients, &Recipient{
			ID:                r.ID,
			AccountHolderName: r.AccountHolderName,
			Currency:          r.Currency,
			IsSelfOwned:       r.OwnedByCustomer,
			AccountNumber:     *r.Details.AccountNumber,
		})
	}

	c.logger.Debug("Profile loaded",
		zap.Int64("profile_id", p.ID),
		zap.String("type", p.Type),
		zap.Int("cash_accounts", len(profile.CashAccounts)),
		zap.Int("reserve_accounts", len(profile.ReserveAccounts)),
		zap.Int("recipients", len(profile.Recipients)),
	)
	return profile, nil
}

func (c *client) getBalances(ctx context.Context, profileID int64, balanceType string) ([]balanceResponse, error) {
	balances, err := httpclient.GetMultiple[balanceResponse](ctx, c.session, fmt.Sprintf(endpointBalances, profileID),
		url.Values{"types": {balanceType}})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s balances for profile %d: %w", balanceType, profileID, err)
	}
	return balances, nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetCashAccount returns the cash balance held in currency
func (p *Profile) GetCashAccount(currency Currency) (*CashAccount, error) {
	for _, a := range p.CashAccounts {
		if a.Currency == currency {
			return a, nil
		}
	}
	return nil, apperrors.NewNotFound("currency", string(currency))
}

// GetReserveAccount returns the reserve account with the given name
func (p *Profile) GetReserveAccount(name string) (*ReserveAccount, error) {
	for _, a := range p.ReserveAccounts {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, apperrors.NewNotFound("reserve account", name)
}

// GetRecipient returns the recipient with the given account number
func (p *Profile) GetRecipient(accountNumber string) (*Recipient, error) {
	for _, r := range p.Recipients {
		if r.AccountNumber == accountNumber {
			return r, nil
		}
	}
	return nil, apperrors.NewNotFound("recipient", accountNumber)
}
