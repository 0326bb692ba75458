package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is one currency wallet on the exchange.
type Account struct {
	ID             string          `json:"id"`
	Currency       string          `json:"currency"`
	Balance        decimal.Decimal `json:"balance"`
	Available      decimal.Decimal `json:"available"`
	Hold           decimal.Decimal `json:"hold"`
	ProfileID      string          `json:"profile_id,omitempty"`
	TradingEnabled bool            `json:"trading_enabled,omitempty"`
}

// FindAccount returns the first account for currency, or nil.
func FindAccount(accounts []Account, currency string) *Account {
	for i := range accounts {
		if accounts[i].Currency == currency {
			return &accounts[i]
		}
	}
	return nil
}

// PaymentMethod is a linked funding source (bank account, card).
type PaymentMethod struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	Currency     string `json:"currency"`
	PrimaryBuy   bool   `json:"primary_buy"`
	AllowDeposit bool   `json:"allow_deposit"`
}

// DepositRequest is the body of POST /deposits/payment-method.
type DepositRequest struct {
	PaymentMethodID string          `json:"payment_method_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

// Deposit is the exchange answer to a deposit request.
type Deposit struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	PayoutAt *time.Time      `json:"payout_at,omitempty"`
}
