package wise

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"sirius/internal/httpclient"
	apperrors "sirius/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWise serves two profiles: personal (1) with EUR/USD cash, an EUR jar and one recipient,
// and business (2) with a GBP balance
type fakeWise struct {
	t        *testing.T
	mu       sync.Mutex
	requests map[string][]map[string]any
	headers  map[string]http.Header
}

func newFakeWise(t *testing.T) (*fakeWise, *httptest.Server) {
	f := &fakeWise{t: t, requests: map[string][]map[string]any{}, headers: map[string]http.Header{}}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v2/profiles", func(w http.ResponseWriter, r *http.Request) {
		f.write(w, `[{"id":1,"type":"PERSONAL"},{"id":2,"type":"BUSINESS"}]`)
	})
	mux.HandleFunc("GET /v4/profiles/{id}/balances", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") + ":" + r.URL.Query().Get("types") {
		case "1:STANDARD":
			f.write(w, `[
				{"id":11,"name":null,"cashAmount":{"value":1500.25,"currency":"EUR"}},
				{"id":12,"name":null,"cashAmount":{"value":20,"currency":"USD"}}
			]`)
		case "1:SAVINGS":
			f.write(w, `[{"id":13,"name":"Holiday","cashAmount":{"value":300,"currency":"EUR"}}]`)
		case "2:STANDARD":
			f.write(w, `[{"id":21,"name":null,"cashAmount":{"value":5,"currency":"GBP"}}]`)
		default:
			f.write(w, `[]`)
		}
	})
	mux.HandleFunc("GET /v1/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("profile") != "1" {
			f.write(w, `[]`)
			return
		}
		f.write(w, `[
			{"id":31,"accountHolderName":"Jane Doe","currency":"EUR","ownedByCustomer":false,"details":{"accountNumber":"DE001"}},
			{"id":32,"accountHolderName":"Email Only","currency":"EUR","ownedByCustomer":false,"details":{"accountNumber":null}}
		]`)
	})
	mux.HandleFunc("POST /v3/profiles/1/quotes", func(w http.ResponseWriter, r *http.Request) {
		f.record("quote", r)
		f.write(w, `{"id":"quote-1","rate":0.92,"paymentOptions":[
			{"payIn":"BANK_TRANSFER","sourceCurrency":"USD","targetCurrency":"EUR","sourceAmount":11,"targetAmount":10},
			{"payIn":"BALANCE","sourceCurrency":"USD","targetCurrency":"EUR","sourceAmount":10.87,"targetAmount":10}
		]}`)
	})
	mux.HandleFunc("POST /v2/profiles/1/balance-movements", func(w http.ResponseWriter, r *http.Request) {
		f.record("movement", r)
		f.write(w, `{"id":41,"sourceAmount":{"value":10.87,"currency":"USD"},"targetAmount":{"value":10,"currency":"EUR"}}`)
	})
	mux.HandleFunc("POST /v1/transfers", func(w http.ResponseWriter, r *http.Request) {
		f.record("transfer", r)
		f.write(w, `{"id":51,"sourceValue":10.87,"targetValue":10}`)
	})
	mux.HandleFunc("POST /v3/profiles/1/transfers/51/payments", func(w http.ResponseWriter, r *http.Request) {
		f.record("payment", r)
		f.write(w, `{"type":"BALANCE","status":"COMPLETED"}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeWise) write(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (f *fakeWise) record(name string, r *http.Request) {
	var body map[string]any
	assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[name] = append(f.requests[name], body)
	f.headers[name] = r.Header.Clone()
}

func (f *fakeWise) last(name string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	bodies := f.requests[name]
	require.NotEmpty(f.t, bodies, "no %s request", name)
	return bodies[len(bodies)-1]
}

func loadAccount(t *testing.T) (*fakeWise, *Account) {
	f, server := newFakeWise(t)
	account, err := Load(context.Background(), httpclient.NewSession(server.URL, map[string]string{"Authorization": "Bearer test"}))
	require.NoError(t, err)
	return f, account
}

func TestLoad_Profiles(t *testing.T) {
	_, account := loadAccount(t)

	personal := account.PersonalProfile
	assert.Equal(t, int64(1), personal.ID)
	require.Len(t, personal.CashAccounts, 2)
	require.Len(t, personal.ReserveAccounts, 1)
	require.Len(t, personal.Recipients, 1, "recipients without an account number are dropped")

	eur, err := personal.GetCashAccount(EUR)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1500.25").Equal(eur.Balance))
	assert.Equal(t, int64(1), eur.ProfileID)

	jar, err := personal.GetReserveAccount("Holiday")
	require.NoError(t, err)
	assert.Equal(t, EUR, jar.Currency)

	recipient, err := personal.GetRecipient("DE001")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", recipient.AccountHolderName)

	assert.Len(t, account.BusinessProfile.CashAccounts, 1)
}

func TestProfile_LookupsNotFound(t *testing.T) {
	_, account := loadAccount(t)
	p := account.PersonalProfile

	_, err := p.GetCashAccount(JPY)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = p.GetReserveAccount("Rainy Day")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = p.GetRecipient("000")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCashAccount_IntraCashTransfer(t *testing.T) {
	f, account := loadAccount(t)
	usd, _ := account.PersonalProfile.GetCashAccount(USD)
	eur, _ := account.PersonalProfile.GetCashAccount(EUR)

	transfer, err := usd.Transfer(context.Background(), eur, decimal.NewFromInt(10), "")
	require.NoError(t, err)

	assert.Equal(t, IntraCash, transfer.Type)
	assert.Equal(t, int64(41), transfer.ID)
	assert.True(t, decimal.RequireFromString("10.87").Equal(transfer.FromAmount))

	quote := f.last("quote")
	assert.Equal(t, "USD", quote["sourceCurrency"])
	assert.Equal(t, "EUR", quote["targetCurrency"])
	assert.Equal(t, float64(10), quote["targetAmount"])
	assert.Equal(t, "BALANCE", quote["payOut"])

	assert.Equal(t, "quote-1", f.last("movement")["quoteId"])
	assert.NotEmpty(t, f.headers["movement"].Get("X-idempotence-uuid"))
}

func TestCashAccount_CashToSavingsTransfer(t *testing.T) {
	f, account := loadAccount(t)
	eur, _ := account.PersonalProfile.GetCashAccount(EUR)
	jar, _ := account.PersonalProfile.GetReserveAccount("Holiday")

	transfer, err := eur.Transfer(context.Background(), jar, decimal.RequireFromString("12.5"), "")
	require.NoError(t, err)
	assert.Equal(t, CashToSavings, transfer.Type)

	movement := f.last("movement")
	assert.Equal(t, float64(11), movement["sourceBalanceId"])
	assert.Equal(t, float64(13), movement["targetBalanceId"])
	assert.Equal(t, map[string]any{"value": 12.5, "currency": "EUR"}, movement["amount"])
	assert.NotContains(t, movement, "quoteId")
}

func TestCashAccount_CashToSavingsCurrencyMismatch(t *testing.T) {
	f, account := loadAccount(t)
	usd, _ := account.PersonalProfile.GetCashAccount(USD)
	jar, _ := account.PersonalProfile.GetReserveAccount("Holiday")

	_, err := usd.Transfer(context.Background(), jar, decimal.NewFromInt(1), "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotSupported))
	assert.Empty(t, f.requests["movement"])
}

func TestCashAccount_ThirdPartyTransfer(t *testing.T) {
	f, account := loadAccount(t)
	usd, _ := account.PersonalProfile.GetCashAccount(USD)
	recipient, _ := account.PersonalProfile.GetRecipient("DE001")

	transfer, err := usd.Transfer(context.Background(), recipient, decimal.NewFromInt(10), "Rent")
	require.NoError(t, err)
	assert.Equal(t, CashToThirdParty, transfer.Type)
	assert.Equal(t, "Rent", transfer.Reference)
	assert.Equal(t, int64(51), transfer.ID)

	created := f.last("transfer")
	assert.Equal(t, float64(31), created["targetAccount"])
	assert.Equal(t, "quote-1", created["quoteUuid"])
	assert.NotEmpty(t, created["customerTransactionId"])
	assert.Equal(t, map[string]any{"reference": "Rent"}, created["details"])

	assert.Equal(t, "BALANCE", f.last("payment")["type"])
}

func TestReserveAccount_Transfer(t *testing.T) {
	f, account := loadAccount(t)
	jar, _ := account.PersonalProfile.GetReserveAccount("Holiday")
	eur, _ := account.PersonalProfile.GetCashAccount(EUR)
	usd, _ := account.PersonalProfile.GetCashAccount(USD)
	recipient, _ := account.PersonalProfile.GetRecipient("DE001")

	transfer, err := jar.Transfer(context.Background(), eur, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, SavingsToCash, transfer.Type)
	movement := f.last("movement")
	assert.Equal(t, float64(13), movement["sourceBalanceId"])
	assert.Equal(t, float64(11), movement["targetBalanceId"])

	tests := []struct {
		name string
		to   Destination
	}{
		{name: "currency mismatch", to: usd},
		{name: "recipient", to: recipient},
		{name: "reserve account", to: jar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jar.Transfer(context.Background(), tt.to, decimal.NewFromInt(1))
			assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotSupported))
		})
	}
}

func TestGet_MissingAPIKey(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Development")
	t.Setenv("WISE_SANDBOX_ACCOUNT_API_KEY", "")

	_, err := Get(context.Background(), Primary)
	var missing *apperrors.ErrConfigMissingRequired
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "WISE_SANDBOX_ACCOUNT_API_KEY", missing.Field)
}

func TestAPIKeyVariable(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	url, variable := apiKeyVariable(Secondary)
	assert.Equal(t, ProductionURL, url)
	assert.Equal(t, "WISE_SECONDARY_ACCOUNT_API_KEY", variable)

	t.Setenv("ENVIRONMENT", "Test")
	url, variable = apiKeyVariable(Primary)
	assert.Equal(t, SandboxURL, url)
	assert.Equal(t, "WISE_SANDBOX_ACCOUNT_API_KEY", variable)
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency("nzd")
	require.NoError(t, err)
	assert.Equal(t, NZD, c)
	assert.True(t, c.IsValid())

	_, err = ParseCurrency("XXX")
	assert.True(t, apperrors.IsNotFound(err))
}
