package events

import "github.com/shopspring/decimal"

type BetPlaced struct {
	BetID     string          `json:"bet_id"`
	Bookmaker string          `json:"bookmaker"`
	BetType   string          `json:"bet_type"`
	Stake     decimal.Decimal `json:"stake"`
	OddsRepr  string          `json:"odds_repr"`
	BonusMode int             `json:"bonus_mode"`
	TsUnixMs  int64           `json:"ts_unix_ms"`
}

type BetSettled struct {
	BetID           string          `json:"bet_id"`
	Bookmaker       string          `json:"bookmaker"`
	Result          string          `json:"result"`
	SettlementValue decimal.Decimal `json:"settlement_value"`
	BalanceCredit   decimal.Decimal `json:"balance_credit"`
	Cashout         bool            `json:"cashout"`
	TsUnixMs        int64           `json:"ts_unix_ms"`
}

type BetRefunded struct {
	BetID     string          `json:"bet_id"`
	Bookmaker string          `json:"bookmaker"`
	Refunded  decimal.Decimal `json:"refunded"`
	TsUnixMs  int64           `json:"ts_unix_ms"`
}

type BalanceAdjusted struct {
	Bookmaker  string          `json:"bookmaker"`
	Operation  string          `json:"operation"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
	TsUnixMs   int64           `json:"ts_unix_ms"`
}
