package dto

import "github.com/shopspring/decimal"

type RegisterBetRequest struct {
	PlacedAt   string   `json:"placed_at"` // YYYY-MM-DD, vazio = hoje
	Bookmaker  string   `json:"bookmaker"`
	BetType    string   `json:"bet_type"` // Simple | Double | Triple | Multiple | SuperOdd
	Categories []string `json:"categories"`

	Stake decimal.Decimal `json:"stake"`
	Odds  string          `json:"odds"` // "1.5, 2.3" ou "1.5, 2.3|10"

	// as duas flags espelham o formulário antigo; marcar ambas é erro
	PromotionalBonus bool            `json:"promotional_bonus"`
	CombinedBonus    bool            `json:"combined_bonus"`
	BonusPercent     decimal.Decimal `json:"bonus_percent"` // usado quando a string de odds não traz "|p"

	Tournament string `json:"tournament"`
	Match      string `json:"match"`
	Notes      string `json:"notes"`
}

type SettleBetRequest struct {
	Result    string           `json:"result"`               // WON | LOST
	ValidLegs []int            `json:"valid_legs,omitempty"` // índices das odds que valem; ausente = todas
	Cashout   *decimal.Decimal `json:"cashout,omitempty"`    // valor líquido de encerramento antecipado
}

type CreateBookmakerRequest struct {
	Name string `json:"name"`
}

type AdjustBalanceRequest struct {
	Bookmaker string          `json:"bookmaker"`
	Operation string          `json:"operation"` // DEPOSIT | WITHDRAWAL | WON | LOST | MANUAL_ADJUSTMENT
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
}
