package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/bet-ledger/internal/settlement"
)

// Postgres implementa a persistência de apostas e saldos.
// Cada transição de estado roda numa única transação: aposta, saldo e linha
// de ledger são gravados juntos ou nada é gravado.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadySettled   = errors.New("bet already settled")
	ErrInvalidLeg       = errors.New("invalid leg index")
	ErrUnknownOperation = errors.New("unknown operation")
)

const betColumns = `id, placed_at, bookmaker, bet_type, categories, result, stake,
	odds_repr, bonus_mode, settlement_value, tournament, match, notes, created_at`

// CreateBet insere a aposta PENDING e debita o stake do saldo da casa na mesma
// transação (apostas promocionais não debitam). A casa precisa existir.
func (p *Postgres) CreateBet(ctx context.Context, b *Bet) (string, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	bal, err := lockBalance(ctx, tx, b.Bookmaker)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bets (id, placed_at, bookmaker, bet_type, categories, result, stake,
			odds_repr, bonus_mode, settlement_value, tournament, match, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,$10,$11,$12)`,
		id, b.PlacedAt, b.Bookmaker, b.BetType, joinList(b.Categories),
		string(settlement.ResultPending), b.Stake, b.OddsRepr, int(b.BonusMode),
		b.Tournament, b.Match, b.Notes,
	)
	if err != nil {
		return "", err
	}

	if settlement.DebitsStake(b.BonusMode) {
		newBal := bal.Sub(b.Stake)
		if err := updateBalance(ctx, tx, b.Bookmaker, newBal); err != nil {
			return "", err
		}
		if _, err := insertTransaction(ctx, tx, b.Bookmaker, OpStake, b.Stake.Neg(), newBal, "bet:"+id); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// GetBet retorna a aposta pelo id.
func (p *Postgres) GetBet(ctx context.Context, id string) (*Bet, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1`, id)
	return scanBet(row)
}

// ListBets retorna apostas com os filtros opcionais, mais recentes primeiro.
func (p *Postgres) ListBets(ctx context.Context, f BetFilters) ([]Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE 1=1`
	var args []any

	if f.Result != "" {
		args = append(args, f.Result)
		query += fmt.Sprintf(" AND result=$%d", len(args))
	}
	if f.Bookmaker != "" {
		args = append(args, f.Bookmaker)
		query += fmt.Sprintf(" AND bookmaker=$%d", len(args))
	}
	if f.Date != "" {
		args = append(args, f.Date)
		query += fmt.Sprintf(" AND placed_at=$%d", len(args))
	}
	query += ` ORDER BY placed_at DESC, created_at DESC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

// SettleBet resolve uma aposta PENDING pra WON ou LOST.
// validLegs, quando presente, escolhe o subconjunto de odds que vale pro
// cálculo; cashout substitui o valor calculado. Atualização da aposta, crédito
// de saldo e linha de ledger saem na mesma transação.
func (p *Postgres) SettleBet(ctx context.Context, id string, result settlement.Result, validLegs []int, cashout *decimal.Decimal) (*Bet, decimal.Decimal, error) {
	if !result.Terminal() {
		return nil, decimal.Zero, fmt.Errorf("%w: result %q", ErrUnknownOperation, result)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer tx.Rollback()

	b, err := scanBet(tx.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, decimal.Zero, err
	}
	if b.Result != settlement.ResultPending {
		return nil, decimal.Zero, ErrAlreadySettled
	}

	// odds e percentual vêm do formato gravado, nunca re-derivados
	legs, bonusPercent, err := settlement.ParseOdds(b.OddsRepr)
	if err != nil {
		return nil, decimal.Zero, err
	}
	legs, err = pickLegs(legs, validLegs)
	if err != nil {
		return nil, decimal.Zero, err
	}

	value := settlement.Settle(b.Stake, legs, b.BonusMode, bonusPercent, result)
	if cashout != nil {
		value = *cashout
	}
	value = value.Round(2)

	if _, err := tx.ExecContext(ctx,
		`UPDATE bets SET result=$1, settlement_value=$2 WHERE id=$3`,
		string(result), value, id); err != nil {
		return nil, decimal.Zero, err
	}

	credit := decimal.Zero
	if c, ok := settlement.BalanceCredit(b.Stake, value, b.BonusMode, result); ok {
		credit = c.Round(2)
		bal, err := lockBalance(ctx, tx, b.Bookmaker)
		if err != nil {
			return nil, decimal.Zero, err
		}
		newBal := bal.Add(credit)
		if err := updateBalance(ctx, tx, b.Bookmaker, newBal); err != nil {
			return nil, decimal.Zero, err
		}
		if _, err := insertTransaction(ctx, tx, b.Bookmaker, OpWon, credit, newBal, "bet:"+id); err != nil {
			return nil, decimal.Zero, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, err
	}

	b.Result = result
	b.SettlementValue = value
	return b, credit, nil
}

// RefundBet apaga uma aposta PENDING e devolve o stake ao saldo da casa
// (nada a devolver em apostas promocionais). Apostas já resolvidas não podem
// ser reembolsadas por aqui: isso corrigiria o saldo duas vezes.
func (p *Postgres) RefundBet(ctx context.Context, id string) (*Bet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := scanBet(tx.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if b.Result != settlement.ResultPending {
		return nil, ErrAlreadySettled
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bets WHERE id=$1`, id); err != nil {
		return nil, err
	}

	if settlement.DebitsStake(b.BonusMode) {
		bal, err := lockBalance(ctx, tx, b.Bookmaker)
		if err != nil {
			return nil, err
		}
		newBal := bal.Add(b.Stake)
		if err := updateBalance(ctx, tx, b.Bookmaker, newBal); err != nil {
			return nil, err
		}
		if _, err := insertTransaction(ctx, tx, b.Bookmaker, OpRefund, b.Stake, newBal, "refund bet:"+id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBalance retorna o saldo de uma casa.
func (p *Postgres) GetBalance(ctx context.Context, name string) (*Balance, error) {
	var b Balance
	err := p.db.QueryRowContext(ctx,
		`SELECT name, balance, last_updated FROM bookmaker_balances WHERE name=$1`, name).
		Scan(&b.Name, &b.Balance, &b.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBalances retorna todos os saldos em ordem alfabética.
func (p *Postgres) ListBalances(ctx context.Context) ([]Balance, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT name, balance, last_updated FROM bookmaker_balances ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.Name, &b.Balance, &b.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBookmaker cadastra uma casa nova com saldo zero, idempotente.
func (p *Postgres) CreateBookmaker(ctx context.Context, name string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO bookmaker_balances(name) VALUES($1) ON CONFLICT (name) DO NOTHING`, name)
	return err
}

// ApplyDelta aplica uma operação manual de saldo e grava a linha de histórico
// na mesma transação. MANUAL_ADJUSTMENT define o saldo absoluto; o delta
// registrado é a diferença.
func (p *Postgres) ApplyDelta(ctx context.Context, name, op string, amount decimal.Decimal, note string) (*Balance, *Transaction, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	bal, err := lockBalance(ctx, tx, name)
	if err != nil {
		return nil, nil, err
	}

	newBal, delta, err := applyOperation(bal, amount, op)
	if err != nil {
		return nil, nil, err
	}
	newBal = newBal.Round(2)

	if err := updateBalance(ctx, tx, name, newBal); err != nil {
		return nil, nil, err
	}
	rec, err := insertTransaction(ctx, tx, name, op, delta.Round(2), newBal, note)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	b, err := p.GetBalance(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return b, rec, nil
}

// ListTransactions retorna o histórico com filtros opcionais, mais recente primeiro.
func (p *Postgres) ListTransactions(ctx context.Context, f TxFilters) ([]Transaction, error) {
	query := `SELECT id, ts, bookmaker, operation, amount, note, resulting_balance
		FROM ledger_transactions WHERE 1=1`
	var args []any

	if f.Bookmaker != "" {
		args = append(args, f.Bookmaker)
		query += fmt.Sprintf(" AND bookmaker=$%d", len(args))
	}
	if f.Operation != "" {
		args = append(args, f.Operation)
		query += fmt.Sprintf(" AND operation=$%d", len(args))
	}
	query += ` ORDER BY ts DESC, id DESC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Bookmaker, &t.Operation, &t.Amount, &t.Note, &t.ResultingBalance); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- helpers ---

type rowScanner interface{ Scan(dest ...any) error }

func scanBet(row rowScanner) (*Bet, error) {
	var b Bet
	var categories string
	var result string
	var bonusMode int
	err := row.Scan(&b.ID, &b.PlacedAt, &b.Bookmaker, &b.BetType, &categories, &result,
		&b.Stake, &b.OddsRepr, &bonusMode, &b.SettlementValue, &b.Tournament, &b.Match,
		&b.Notes, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Categories = splitList(categories)
	b.Result = settlement.Result(result)
	b.BonusMode = settlement.BonusMode(bonusMode)
	return &b, nil
}

func lockBalance(ctx context.Context, tx *sql.Tx, name string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM bookmaker_balances WHERE name=$1 FOR UPDATE`, name).Scan(&bal)
	if err == sql.ErrNoRows {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return bal, nil
}

func updateBalance(ctx context.Context, tx *sql.Tx, name string, newBal decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bookmaker_balances SET balance=$1, last_updated=now() WHERE name=$2`, newBal, name)
	return err
}

func insertTransaction(ctx context.Context, tx *sql.Tx, bookmaker, op string, amount, resulting decimal.Decimal, note string) (*Transaction, error) {
	t := Transaction{Bookmaker: bookmaker, Operation: op, Amount: amount, Note: note, ResultingBalance: resulting}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO ledger_transactions(bookmaker, operation, amount, note, resulting_balance)
		VALUES($1,$2,$3,$4,$5) RETURNING id, ts`,
		bookmaker, op, amount, note, resulting).Scan(&t.ID, &t.Timestamp)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// applyOperation resolve o novo saldo e o delta registrado pra cada operação.
func applyOperation(current, amount decimal.Decimal, op string) (newBalance, delta decimal.Decimal, err error) {
	switch op {
	case OpDeposit, OpWon:
		return current.Add(amount), amount, nil
	case OpWithdrawal, OpLost:
		return current.Sub(amount), amount.Neg(), nil
	case OpManualAdjustment:
		return amount, amount.Sub(current), nil
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}

// pickLegs seleciona o subconjunto de odds válido pro acerto.
func pickLegs(legs []decimal.Decimal, idx []int) ([]decimal.Decimal, error) {
	if idx == nil {
		return legs, nil
	}
	out := make([]decimal.Decimal, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(legs) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidLeg, i)
		}
		out = append(out, legs[i])
	}
	if len(out) == 0 {
		return nil, settlement.ErrNoOdds
	}
	return out, nil
}

func joinList(items []string) string { return strings.Join(items, ", ") }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
