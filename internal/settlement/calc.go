package settlement

import "github.com/shopspring/decimal"

// BonusMode segue a codificação persistida: 0 sem bônus, 1 aposta bônus
// (stake promocional, nunca debitado do saldo), 2 bônus de combinadas
// (uplift percentual sobre o produto das odds).
type BonusMode int

const (
	BonusNone        BonusMode = 0
	BonusPromotional BonusMode = 1
	BonusCombined    BonusMode = 2
)

// Result é o estado de ciclo de vida da aposta.
type Result string

const (
	ResultPending Result = "PENDING"
	ResultWon     Result = "WON"
	ResultLost    Result = "LOST"
)

func (r Result) Terminal() bool { return r == ResultWon || r == ResultLost }

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Combined devolve o produto das odds, com uplift de combinadas quando ativo.
// Odds 1.0 são pernas neutras e entram normalmente no produto.
func Combined(legs []decimal.Decimal, mode BonusMode, bonusPercent decimal.Decimal) decimal.Decimal {
	combined := one
	for _, o := range legs {
		combined = combined.Mul(o)
	}
	if mode == BonusCombined && bonusPercent.IsPositive() {
		combined = combined.Mul(one.Add(bonusPercent.Div(hundred)))
	}
	return combined
}

// Settle calcula o valor líquido reconhecido pra aposta.
// Função pura; nenhum arredondamento aqui, só na borda de persistência.
func Settle(stake decimal.Decimal, legs []decimal.Decimal, mode BonusMode, bonusPercent decimal.Decimal, result Result) decimal.Decimal {
	switch result {
	case ResultWon:
		combined := Combined(legs, mode, bonusPercent)
		if mode == BonusPromotional {
			// o stake promocional não é do apostador: lucro é retorno menos stake
			return stake.Mul(combined).Sub(stake)
		}
		return stake.Mul(combined.Sub(one))
	case ResultLost:
		if mode == BonusPromotional {
			// crédito promocional não reembolsável, perda não reconhecida
			return decimal.Zero
		}
		return stake.Neg()
	default:
		return decimal.Zero
	}
}

// DebitsStake diz se o registro da aposta debita o stake do saldo da casa.
// Apostas promocionais nunca debitam.
func DebitsStake(mode BonusMode) bool { return mode != BonusPromotional }

// BalanceCredit devolve o crédito compensatório a lançar no saldo da casa ao
// resolver a aposta. Em vitória sem bônus promocional o stake debitado volta
// junto com o lucro; em derrota o débito original já reflete a perda.
func BalanceCredit(stake, settlementValue decimal.Decimal, mode BonusMode, result Result) (decimal.Decimal, bool) {
	if result != ResultWon {
		return decimal.Zero, false
	}
	if mode == BonusPromotional {
		return settlementValue, true
	}
	return stake.Add(settlementValue), true
}
