package repo

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/bet-ledger/internal/settlement"
)

// Bet é o modelo persistido no Postgres.
type Bet struct {
	ID              string
	PlacedAt        time.Time
	Bookmaker       string
	BetType         string
	Categories      []string
	Result          settlement.Result
	Stake           decimal.Decimal
	OddsRepr        string // "1.5, 2.3" ou "1.5, 2.3|10", contrato durável
	BonusMode       settlement.BonusMode
	SettlementValue decimal.Decimal
	Tournament      string
	Match           string
	Notes           string
	CreatedAt       time.Time
}

// Balance é o saldo corrente de uma casa de apostas.
type Balance struct {
	Name        string
	Balance     decimal.Decimal
	LastUpdated time.Time
}

// Transaction é uma linha do histórico append-only de saldo.
type Transaction struct {
	ID               int64
	Timestamp        time.Time
	Bookmaker        string
	Operation        string
	Amount           decimal.Decimal // delta assinado aplicado ao saldo
	Note             string
	ResultingBalance decimal.Decimal
}

// Operações registradas no ledger. STAKE e REFUND cobrem o débito de registro
// e o estorno, que o sistema antigo aplicava sem linha de histórico.
const (
	OpStake            = "STAKE"
	OpDeposit          = "DEPOSIT"
	OpWithdrawal       = "WITHDRAWAL"
	OpWon              = "WON"
	OpLost             = "LOST"
	OpManualAdjustment = "MANUAL_ADJUSTMENT"
	OpRefund           = "REFUND"
)

// BetFilters restringe listagens de apostas.
type BetFilters struct {
	Result    string
	Bookmaker string
	Date      string // YYYY-MM-DD
}

// TxFilters restringe listagens do histórico.
type TxFilters struct {
	Bookmaker string
	Operation string
}

// Tipos de aposta aceitos no registro (informativo, não entra no cálculo).
var BetTypes = []string{"Simple", "Double", "Triple", "Multiple", "SuperOdd"}

func ValidBetType(t string) bool {
	for _, bt := range BetTypes {
		if bt == t {
			return true
		}
	}
	return false
}
