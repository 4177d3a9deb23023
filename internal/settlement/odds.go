package settlement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNoOdds     = errors.New("no odds informed")
	ErrInvalidOdd = errors.New("invalid odd")
)

// ParseOdds interpreta a string persistida de odds: "1.5, 2.3" ou "1.5, 2.3|10".
// O sufixo após "|" é o percentual de bônus de combinadas gravado junto das odds;
// ausente ou inválido vira zero. Vírgula dentro de um token vira marca decimal.
func ParseOdds(raw string) ([]decimal.Decimal, decimal.Decimal, error) {
	oddsPart := raw
	bonus := decimal.Zero

	if i := strings.IndexByte(raw, '|'); i >= 0 {
		oddsPart = raw[:i]
		if p, err := decimal.NewFromString(strings.TrimSpace(raw[i+1:])); err == nil && !p.IsNegative() {
			bonus = p
		}
	}

	// "1.5, 2,3" separa em "1.5" e "2,3"; sem o separador ", " cada vírgula divide
	var tokens []string
	if strings.Contains(oddsPart, ", ") {
		tokens = strings.Split(oddsPart, ", ")
	} else {
		tokens = strings.Split(oddsPart, ",")
	}

	legs := make([]decimal.Decimal, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		t = strings.ReplaceAll(t, ",", ".")
		o, err := decimal.NewFromString(t)
		if err != nil || !o.IsPositive() {
			return nil, decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidOdd, t)
		}
		legs = append(legs, o)
	}

	if len(legs) == 0 {
		return nil, decimal.Zero, ErrNoOdds
	}
	return legs, bonus, nil
}

// FormatOdds serializa as odds no formato durável lido por ParseOdds.
// O percentual só entra na string quando o bônus de combinadas está ativo,
// igual ao registro original.
func FormatOdds(legs []decimal.Decimal, mode BonusMode, bonusPercent decimal.Decimal) string {
	parts := make([]string, len(legs))
	for i, o := range legs {
		parts[i] = o.String()
	}
	s := strings.Join(parts, ", ")
	if mode == BonusCombined {
		s += "|" + bonusPercent.String()
	}
	return s
}
