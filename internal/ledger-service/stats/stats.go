package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Stats calcula os agregados que o dashboard consome, com cache de curta
// duração no Redis. Sem Redis configurado toda leitura vai direto no banco.
type Stats struct {
	db  *sql.DB
	rdb *redis.Client // pode ser nil
	ttl time.Duration
}

func New(db *sql.DB, rdb *redis.Client, ttl time.Duration) *Stats {
	return &Stats{db: db, rdb: rdb, ttl: ttl}
}

const (
	keySummary    = "stats:summary"
	keyBookmakers = "stats:bookmakers"
	keyMonthly    = "stats:monthly"
)

type Summary struct {
	TotalBets      int             `json:"total_bets"`
	TotalStaked    decimal.Decimal `json:"total_staked"`
	TotalWon       decimal.Decimal `json:"total_won"`
	TotalLost      decimal.Decimal `json:"total_lost"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	ROIPercent     decimal.Decimal `json:"roi_percent"`
	HitRatePercent decimal.Decimal `json:"hit_rate_percent"`
	PendingBets    int             `json:"pending_bets"`
	PendingStake   decimal.Decimal `json:"pending_stake"` // valor em risco
}

type BookmakerPerformance struct {
	Bookmaker string          `json:"bookmaker"`
	Bets      int             `json:"bets"`
	Staked    decimal.Decimal `json:"staked"`
	Net       decimal.Decimal `json:"net"`
	Balance   decimal.Decimal `json:"balance"`
}

type MonthlyPoint struct {
	Month  string          `json:"month"` // YYYY-MM
	Bets   int             `json:"bets"`
	Staked decimal.Decimal `json:"staked"`
	Net    decimal.Decimal `json:"net"`
}

// Summary devolve os totais gerais: investido, ganho, perdido, ROI, taxa de
// acerto e exposição pendente.
func (s *Stats) Summary(ctx context.Context) (*Summary, error) {
	var out Summary
	if s.hit(ctx, keySummary, &out) {
		return &out, nil
	}

	var wonCount, settledCount int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(stake), 0),
			COALESCE(SUM(settlement_value) FILTER (WHERE result = 'WON'), 0),
			COALESCE(SUM(settlement_value) FILTER (WHERE result = 'LOST'), 0),
			COUNT(*) FILTER (WHERE result = 'WON'),
			COUNT(*) FILTER (WHERE result IN ('WON', 'LOST')),
			COUNT(*) FILTER (WHERE result = 'PENDING'),
			COALESCE(SUM(stake) FILTER (WHERE result = 'PENDING'), 0)
		FROM bets`).
		Scan(&out.TotalBets, &out.TotalStaked, &out.TotalWon, &out.TotalLost,
			&wonCount, &settledCount, &out.PendingBets, &out.PendingStake)
	if err != nil {
		return nil, err
	}

	out.NetProfit = out.TotalWon.Add(out.TotalLost)
	if out.TotalStaked.IsPositive() {
		out.ROIPercent = out.NetProfit.Div(out.TotalStaked).Mul(decimal.NewFromInt(100)).Round(1)
	}
	if settledCount > 0 {
		out.HitRatePercent = decimal.NewFromInt(int64(wonCount)).
			Div(decimal.NewFromInt(int64(settledCount))).Mul(decimal.NewFromInt(100)).Round(1)
	}

	s.store(ctx, keySummary, out)
	return &out, nil
}

// Bookmakers devolve a performance por casa junto com o saldo corrente.
func (s *Stats) Bookmakers(ctx context.Context) ([]BookmakerPerformance, error) {
	var out []BookmakerPerformance
	if s.hit(ctx, keyBookmakers, &out) {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bb.name,
			COUNT(b.id),
			COALESCE(SUM(b.stake), 0),
			COALESCE(SUM(b.settlement_value) FILTER (WHERE b.result IN ('WON', 'LOST')), 0),
			bb.balance
		FROM bookmaker_balances bb
		LEFT JOIN bets b ON b.bookmaker = bb.name
		GROUP BY bb.name, bb.balance
		ORDER BY bb.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p BookmakerPerformance
		if err := rows.Scan(&p.Bookmaker, &p.Bets, &p.Staked, &p.Net, &p.Balance); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.store(ctx, keyBookmakers, out)
	return out, nil
}

// Monthly devolve a evolução mensal do retorno líquido.
func (s *Stats) Monthly(ctx context.Context) ([]MonthlyPoint, error) {
	var out []MonthlyPoint
	if s.hit(ctx, keyMonthly, &out) {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(placed_at, 'YYYY-MM'),
			COUNT(*),
			COALESCE(SUM(stake), 0),
			COALESCE(SUM(settlement_value), 0)
		FROM bets
		GROUP BY 1
		ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m MonthlyPoint
		if err := rows.Scan(&m.Month, &m.Bets, &m.Staked, &m.Net); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.store(ctx, keyMonthly, out)
	return out, nil
}

func (s *Stats) hit(ctx context.Context, key string, dst any) bool {
	if s.rdb == nil {
		return false
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func (s *Stats) store(ctx context.Context, key string, v any) {
	if s.rdb == nil {
		return
	}
	b, _ := json.Marshal(v)
	_ = s.rdb.Set(ctx, key, b, s.ttl).Err()
}
