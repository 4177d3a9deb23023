package repo

import "context"

// EnsureSchema cria as tabelas quando não existem, como o app original fazia
// no boot de cada página.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bets (
			id TEXT PRIMARY KEY,
			placed_at DATE NOT NULL,
			bookmaker TEXT NOT NULL,
			bet_type TEXT NOT NULL,
			categories TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL DEFAULT 'PENDING',
			stake NUMERIC(12,2) NOT NULL,
			odds_repr TEXT NOT NULL,
			bonus_mode SMALLINT NOT NULL DEFAULT 0,
			settlement_value NUMERIC(12,2) NOT NULL DEFAULT 0,
			tournament TEXT NOT NULL DEFAULT '',
			match TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS bookmaker_balances (
			name TEXT PRIMARY KEY,
			balance NUMERIC(12,2) NOT NULL DEFAULT 0,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_transactions (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			bookmaker TEXT NOT NULL,
			operation TEXT NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			resulting_balance NUMERIC(12,2) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_result ON bets(result)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_bookmaker ON ledger_transactions(bookmaker)`,
	}

	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// DefaultBookmakers é a lista de casas pré-cadastradas do sistema antigo.
var DefaultBookmakers = []string{
	"Bet 365", "Betano", "Betfair", "Superbet", "Estrela Bet", "4Play Bet", "PixBet",
	"Novibet", "Sporting Bet", "Bet7k", "Cassino Pix", "KTO", "Stake", "BR Bet",
	"Aposta tudo", "Casa de Apostas", "Vera Bet", "Bateu Bet", "Betnacional",
	"Jogue Facil", "Jogo de Ouro", "Pagol", "Seu Bet", "Bet Esporte", "BetFast",
	"Faz1Bet", "Esportiva Bet", "Betpix365", "Seguro Bet", "Outros", "Minha Conta",
}

// SeedBookmakers garante as casas iniciais, idempotente.
func (p *Postgres) SeedBookmakers(ctx context.Context, names []string) error {
	for _, n := range names {
		if _, err := p.db.ExecContext(ctx,
			`INSERT INTO bookmaker_balances(name) VALUES($1) ON CONFLICT (name) DO NOTHING`, n); err != nil {
			return err
		}
	}
	return nil
}
