package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type BetResponse struct {
	ID              string          `json:"id"`
	PlacedAt        string          `json:"placed_at"`
	Bookmaker       string          `json:"bookmaker"`
	BetType         string          `json:"bet_type"`
	Categories      []string        `json:"categories,omitempty"`
	Result          string          `json:"result"`
	Stake           decimal.Decimal `json:"stake"`
	Odds            string          `json:"odds"`
	BonusMode       int             `json:"bonus_mode"`
	SettlementValue decimal.Decimal `json:"settlement_value"`
	Tournament      string          `json:"tournament,omitempty"`
	Match           string          `json:"match,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type RegisterBetResponse struct {
	BetID  string `json:"bet_id"`
	Result string `json:"result"` // PENDING
}

type SettleBetResponse struct {
	BetID           string          `json:"bet_id"`
	Result          string          `json:"result"`
	SettlementValue decimal.Decimal `json:"settlement_value"`
	BalanceCredit   decimal.Decimal `json:"balance_credit"`
}

type RefundBetResponse struct {
	BetID    string          `json:"bet_id"`
	Refunded decimal.Decimal `json:"refunded"`
}

type BalanceResponse struct {
	Name        string          `json:"name"`
	Balance     decimal.Decimal `json:"balance"`
	LastUpdated time.Time       `json:"last_updated"`
}

type BalancesResponse struct {
	Balances []BalanceResponse `json:"balances"`
	Total    decimal.Decimal   `json:"total"`
}

type TransactionResponse struct {
	ID               int64           `json:"id"`
	Timestamp        time.Time       `json:"timestamp"`
	Bookmaker        string          `json:"bookmaker"`
	Operation        string          `json:"operation"`
	Amount           decimal.Decimal `json:"amount"`
	Note             string          `json:"note,omitempty"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
}

type AdjustBalanceResponse struct {
	Balance     BalanceResponse     `json:"balance"`
	Transaction TransactionResponse `json:"transaction"`
}
