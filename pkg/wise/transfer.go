package wise

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "sirius/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferType describes the kind of balances a transfer moves between
type TransferType string

const (
	CashToSavings       TransferType = "CASH_TO_SAVINGS"
	SavingsToCash       TransferType = "SAVINGS_TO_CASH"
	CashToThirdParty    TransferType = "CASH_TO_THIRD_PARTY"
	SavingsToThirdParty TransferType = "SAVINGS_TO_THIRD_PARTY"
	IntraCash           TransferType = "INTRA_CASH"
	IntraSavings        TransferType = "INTRA_SAVINGS"
)

// Source is a balance money can leave from
type Source interface {
	sourceCurrency() Currency
}

// Destination is anything money can be sent to
type Destination interface {
	destinationCurrency() Currency
}

func (a *CashAccount) sourceCurrency() Currency { return a.Currency }
func (a *CashAccount) destinationCurrency() Currency { return a.Currency }
func (a *ReserveAccount) sourceCurrency() Currency { return a.Currency }
func (a *ReserveAccount) destinationCurrency() Currency { return a.Currency }
func (r *Recipient) destinationCurrency() Currency { return r.Currency }

// Transfer is the outcome of a completed money movement
type Transfer struct {
	ID         int64
	From       Source
	To         Destination
	FromAmount decimal.Decimal
	ToAmount   decimal.Decimal
	Reference  string
	Type       TransferType
}

// Quote is a BALANCE pay-in quote
type Quote struct {
	ID           string
	FromCurrency Currency
	ToCurrency   Currency
	FromAmount   decimal.Decimal
	ToAmount     decimal.Decimal
	ExchangeRate decimal.Decimal
}

type quoteRequest struct {
	SourceCurrency Currency    `json:"sourceCurrency"`
	TargetCurrency Currency    `json:"targetCurrency"`
	TargetAmount   json.Number `json:"targetAmount"`
	PayOut         string      `json:"payOut"`
}

type quoteResponse struct {
	ID             string          `json:"id"`
	Rate           decimal.Decimal `json:"rate"`
	PaymentOptions []struct {
		PayIn          string          `json:"payIn"`
		SourceCurrency Currency        `json:"sourceCurrency"`
		TargetCurrency Currency        `json:"targetCurrency"`
		SourceAmount   decimal.Decimal `json:"sourceAmount"`
		TargetAmount   decimal.Decimal `json:"targetAmount"`
	} `json:"paymentOptions"`
}

type moneyAmount struct {
	Value    json.Number `json:"value"`
	Currency Currency    `json:"currency"`
}

type balanceMovementRequest struct {
	QuoteID         string       `json:"quoteId,omitempty"`
	SourceBalanceID int64        `json:"sourceBalanceId,omitempty"`
	TargetBalanceID int64        `json:"targetBalanceId,omitempty"`
	Amount          *moneyAmount `json:"amount,omitempty"`
}

type balanceMovementResponse struct {
	ID           int64          `json:"id"`
	SourceAmount amountResponse `json:"sourceAmount"`
	TargetAmount amountResponse `json:"targetAmount"`
}

type transferRequest struct {
	TargetAccount         int64  `json:"targetAccount"`
	QuoteUUID             string `json:"quoteUuid"`
	CustomerTransactionID string `json:"customerTransactionId"`
	Details               struct {
		Reference string `json:"reference"`
	} `json:"details"`
}

type transferResponse struct {
	ID          int64           `json:"id"`
	SourceValue decimal.Decimal `json:"sourceValue"`
	TargetValue decimal.Decimal `json:"targetValue"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func (c *client) getQuote(ctx context.Context, profileID int64, from Currency, to Currency, amount decimal.Decimal) (*Quote, error) {
	resp, err := c.session.Post(ctx, fmt.Sprintf(endpointQuotes, profileID), quoteRequest{
		SourceCurrency: from,
		TargetCurrency: to,
		TargetAmount:   number(amount),
		PayOut:         payOutBalance,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}

	var q quoteResponse
	if err := resp.Decode(&q); err != nil {
		return nil, err
	}

	for _, option := range q.PaymentOptions {
		if option.PayIn != payInBalance {
			continue
		}
		return &Quote{
			ID:           q.ID,
			FromCurrency: option.SourceCurrency,
			ToCurrency:   option.TargetCurrency,
			FromAmount:   option.SourceAmount,
			ToAmount:     option.TargetAmount,
			ExchangeRate: q.Rate,
		}, nil
	}
	return nil, apperrors.NewNotFound("quote payment option", payInBalance)
}

func (c *client) moveBetweenBalances(ctx context.Context, profileID int64, req balanceMovementRequest) (*balanceMovementResponse, error) {
	resp, err := c.session.Post(ctx, fmt.Sprintf(endpointBalanceMovements, profileID), req,
		map[string]string{idempotenceHeader: uuid.NewString()})
	if err != nil {
		return nil, fmt.Errorf("failed to move money between balances: %w", err)
	}

	var out balanceMovementResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transfer sends amount to another cash account, a same-currency reserve account or a recipient.
// Cash and recipient destinations are converted at the quoted rate.
func (a *CashAccount) Transfer(ctx context.Context, to Destination, amount decimal.Decimal, reference string) (*Transfer, error) {
	switch dest := to.(type) {
	case *CashAccount:
		return a.intraCashTransfer(ctx, dest, amount)
	case *ReserveAccount:
		if a.Currency != dest.Currency {
			return nil, apperrors.NewOperationNotSupported("transfer",
				"Direct inter-currency transfers from a cash account to a reserve account is not supported")
		}
		return a.cashToSavingsTransfer(ctx, dest, amount)
	case *Recipient:
		return a.thirdPartyTransfer(ctx, dest, amount, reference)
	default:
		return nil, apperrors.NewOperationNotSupported("transfer", fmt.Sprintf("unsupported destination %T", to))
	}
}

func (a *CashAccount) intraCashTransfer(ctx context.Context, to *CashAccount, amount decimal.Decimal) (*Transfer, error) {
	quote, err := a.client.getQuote(ctx, a.ProfileID, a.Currency, to.Currency, amount)
	if err != nil {
		return nil, err
	}

	moved, err := a.client.moveBetweenBalances(ctx, a.ProfileID, balanceMovementRequest{QuoteID: quote.ID})
	if err != nil {
		return nil, err
	}

	return a.client.logged(&Transfer{
		ID:         moved.ID,
		From:       a,
		To:         to,
		FromAmount: moved.SourceAmount.Value,
		ToAmount:   moved.TargetAmount.Value,
		Type:       IntraCash,
	}), nil
}

func (a *CashAccount) cashToSavingsTransfer(ctx context.Context, to *ReserveAccount, amount decimal.Decimal) (*Transfer, error) {
	moved, err := a.client.moveBetweenBalances(ctx, a.ProfileID, balanceMovementRequest{
		SourceBalanceID: a.ID,
		TargetBalanceID: to.ID,
		Amount:          &moneyAmount{Value: number(amount), Currency: to.Currency},
	})
	if err != nil {
		return nil, err
	}

	return a.client.logged(&Transfer{
		ID:         moved.ID,
		From:       a,
		To:         to,
		FromAmount: moved.SourceAmount.Value,
		ToAmount:   moved.TargetAmount.Value,
		Type:       CashToSavings,
	}), nil
}

func (a *CashAccount) thirdPartyTransfer(ctx context.Context, to *Recipient, amount decimal.Decimal, reference string) (*Transfer, error) {
	quote, err := a.client.getQuote(ctx, a.ProfileID, a.Currency, to.Currency, amount)
	if err != nil {
		return nil, err
	}

	req := transferRequest{
		TargetAccount:         to.ID,
		QuoteUUID:             quote.ID,
		CustomerTransactionID: uuid.NewString(),
	}
	req.Details.Reference = reference

	resp, err := a.client.session.Post(ctx, endpointTransfers, req, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}
	var created transferResponse
	if err := resp.Decode(&created); err != nil {
		return nil, err
	}

	if _, err := a.client.session.Post(ctx, fmt.Sprintf(endpointTransferPayments, a.ProfileID, created.ID),
		map[string]string{"type": payInBalance}, nil); err != nil {
		return nil, fmt.Errorf("failed to fund transfer %d: %w", created.ID, err)
	}

	return a.client.logged(&Transfer{
		ID:         created.ID,
		From:       a,
		To:         to,
		FromAmount: created.SourceValue,
		ToAmount:   created.TargetValue,
		Reference:  reference,
		Type:       CashToThirdParty,
	}), nil
}

// Transfer moves amount from the reserve account back to a cash account of the same currency.
// No other destination is supported.
func (a *ReserveAccount) Transfer(ctx context.Context, to Destination, amount decimal.Decimal) (*Transfer, error) {
	if a.Currency != to.destinationCurrency() {
		return nil, apperrors.NewOperationNotSupported("transfer",
			"Direct inter-currency transfers from a reserve account is not supported")
	}

	cash, ok := to.(*CashAccount)
	if !ok {
		return nil, apperrors.NewOperationNotSupported("transfer",
			fmt.Sprintf("transfers from a reserve account to %T are not supported", to))
	}

	moved, err := a.client.moveBetweenBalances(ctx, a.ProfileID, balanceMovementRequest{
		SourceBalanceID: a.ID,
		TargetBalanceID: cash.ID,
		Amount:          &moneyAmount{Value: number(amount), Currency: a.Currency},
	})
	if err != nil {
		return nil, err
	}

	return a.client.logged(&Transfer{
		ID:         moved.ID,
		From:       a,
		To:         cash,
		FromAmount: moved.SourceAmount.Value,
		ToAmount:   moved.TargetAmount.Value,
		Type:       SavingsToCash,
	}), nil
}

func (c *client) logged(t *Transfer) *Transfer {
	c.logger.Info("Transfer completed",
		zap.Int64("transfer_id", t.ID),
		zap.String("type", string(t.Type)),
		zap.String("from_amount", t.FromAmount.String()),
		zap.String("to_amount", t.ToAmount.String()),
	)
	return t
}
