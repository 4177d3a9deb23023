package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/bet-ledger/internal/ledger-service/dto"
	"github.com/radieske/bet-ledger/internal/ledger-service/producer"
	"github.com/radieske/bet-ledger/internal/ledger-service/repo"
	"github.com/radieske/bet-ledger/internal/ledger-service/stats"
	"github.com/radieske/bet-ledger/internal/settlement"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeRepo reproduz em memória a semântica do repositório Postgres:
// débito de stake no registro, crédito compensatório no acerto e estorno
// no reembolso, sempre sobre o mesmo estado.
type fakeRepo struct {
	seq      int
	bets     map[string]*repo.Bet
	balances map[string]decimal.Decimal
	ledger   []repo.Transaction
}

func newFakeRepo(balances map[string]decimal.Decimal) *fakeRepo {
	return &fakeRepo{bets: map[string]*repo.Bet{}, balances: balances}
}

func (f *fakeRepo) CreateBet(_ context.Context, b *repo.Bet) (string, error) {
	bal, ok := f.balances[b.Bookmaker]
	if !ok {
		return "", repo.ErrNotFound
	}
	f.seq++
	id := fmt.Sprintf("bet-%d", f.seq)
	c := *b
	c.ID = id
	c.Result = settlement.ResultPending
	c.SettlementValue = decimal.Zero
	c.CreatedAt = time.Now()
	f.bets[id] = &c

	if settlement.DebitsStake(b.BonusMode) {
		f.balances[b.Bookmaker] = bal.Sub(b.Stake)
		f.record(b.Bookmaker, repo.OpStake, b.Stake.Neg())
	}
	return id, nil
}

func (f *fakeRepo) GetBet(_ context.Context, id string) (*repo.Bet, error) {
	b, ok := f.bets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) ListBets(_ context.Context, _ repo.BetFilters) ([]repo.Bet, error) {
	var out []repo.Bet
	for _, b := range f.bets {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeRepo) SettleBet(_ context.Context, id string, result settlement.Result, validLegs []int, cashout *decimal.Decimal) (*repo.Bet, decimal.Decimal, error) {
	b, ok := f.bets[id]
	if !ok {
		return nil, decimal.Zero, repo.ErrNotFound
	}
	if b.Result != settlement.ResultPending {
		return nil, decimal.Zero, repo.ErrAlreadySettled
	}

	legs, bonusPercent, err := settlement.ParseOdds(b.OddsRepr)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if validLegs != nil {
		picked := make([]decimal.Decimal, 0, len(validLegs))
		for _, i := range validLegs {
			if i < 0 || i >= len(legs) {
				return nil, decimal.Zero, repo.ErrInvalidLeg
			}
			picked = append(picked, legs[i])
		}
		if len(picked) == 0 {
			return nil, decimal.Zero, settlement.ErrNoOdds
		}
		legs = picked
	}

	value := settlement.Settle(b.Stake, legs, b.BonusMode, bonusPercent, result)
	if cashout != nil {
		value = *cashout
	}
	value = value.Round(2)

	b.Result = result
	b.SettlementValue = value

	credit := decimal.Zero
	if c, ok := settlement.BalanceCredit(b.Stake, value, b.BonusMode, result); ok {
		credit = c.Round(2)
		f.balances[b.Bookmaker] = f.balances[b.Bookmaker].Add(credit)
		f.record(b.Bookmaker, repo.OpWon, credit)
	}
	return b, credit, nil
}

func (f *fakeRepo) RefundBet(_ context.Context, id string) (*repo.Bet, error) {
	b, ok := f.bets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if b.Result != settlement.ResultPending {
		return nil, repo.ErrAlreadySettled
	}
	delete(f.bets, id)
	if settlement.DebitsStake(b.BonusMode) {
		f.balances[b.Bookmaker] = f.balances[b.Bookmaker].Add(b.Stake)
		f.record(b.Bookmaker, repo.OpRefund, b.Stake)
	}
	return b, nil
}

func (f *fakeRepo) GetBalance(_ context.Context, name string) (*repo.Balance, error) {
	bal, ok := f.balances[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &repo.Balance{Name: name, Balance: bal}, nil
}

func (f *fakeRepo) ListBalances(_ context.Context) ([]repo.Balance, error) {
	var out []repo.Balance
	for n, b := range f.balances {
		out = append(out, repo.Balance{Name: n, Balance: b})
	}
	return out, nil
}

func (f *fakeRepo) CreateBookmaker(_ context.Context, name string) error {
	if _, ok := f.balances[name]; !ok {
		f.balances[name] = decimal.Zero
	}
	return nil
}

func (f *fakeRepo) ApplyDelta(_ context.Context, name, op string, amount decimal.Decimal, note string) (*repo.Balance, *repo.Transaction, error) {
	bal, ok := f.balances[name]
	if !ok {
		return nil, nil, repo.ErrNotFound
	}
	var newBal decimal.Decimal
	switch op {
	case repo.OpDeposit, repo.OpWon:
		newBal = bal.Add(amount)
	case repo.OpWithdrawal, repo.OpLost:
		newBal = bal.Sub(amount)
	case repo.OpManualAdjustment:
		newBal = amount
	default:
		return nil, nil, repo.ErrUnknownOperation
	}
	f.balances[name] = newBal
	rec := f.record(name, op, newBal.Sub(bal))
	return &repo.Balance{Name: name, Balance: newBal}, rec, nil
}

func (f *fakeRepo) ListTransactions(_ context.Context, _ repo.TxFilters) ([]repo.Transaction, error) {
	return f.ledger, nil
}

func (f *fakeRepo) record(bookmaker, op string, amount decimal.Decimal) *repo.Transaction {
	t := repo.Transaction{
		ID: int64(len(f.ledger) + 1), Timestamp: time.Now(), Bookmaker: bookmaker,
		Operation: op, Amount: amount, ResultingBalance: f.balances[bookmaker],
	}
	f.ledger = append(f.ledger, t)
	return &t
}

type fakeStats struct{}

func (fakeStats) Summary(context.Context) (*stats.Summary, error) {
	return &stats.Summary{TotalBets: 2, TotalStaked: d("150")}, nil
}
func (fakeStats) Bookmakers(context.Context) ([]stats.BookmakerPerformance, error) { return nil, nil }
func (fakeStats) Monthly(context.Context) ([]stats.MonthlyPoint, error)            { return nil, nil }

func newTestServer(f *fakeRepo) http.Handler {
	return NewServer(zap.NewNop(), f, fakeStats{}, producer.Noop{}).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerBet(t *testing.T, h http.Handler, req dto.RegisterBetRequest) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/bets", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register bet: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp dto.RegisterBetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.BetID
}

func TestRegisterBetDebitsStake(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Bet 365": d("500")})
	h := newTestServer(f)

	id := registerBet(t, h, dto.RegisterBetRequest{
		Bookmaker: "Bet 365", BetType: "Double", Stake: d("100"),
		Odds: "1.5, 2,3|10", CombinedBonus: true,
	})

	b := f.bets[id]
	if b.OddsRepr != "1.5, 2.3|10" {
		t.Errorf("odds_repr = %q, want canonical %q", b.OddsRepr, "1.5, 2.3|10")
	}
	if b.BonusMode != settlement.BonusCombined {
		t.Errorf("bonus_mode = %d, want combined", b.BonusMode)
	}
	if !f.balances["Bet 365"].Equal(d("400")) {
		t.Errorf("balance = %s, want 400 after stake debit", f.balances["Bet 365"])
	}
}

func TestRegisterBetPromotionalSkipsDebit(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Betano": d("200")})
	h := newTestServer(f)

	registerBet(t, h, dto.RegisterBetRequest{
		Bookmaker: "Betano", BetType: "Simple", Stake: d("50"),
		Odds: "2.0", PromotionalBonus: true,
	})

	if !f.balances["Betano"].Equal(d("200")) {
		t.Errorf("balance = %s, aposta promocional não debita", f.balances["Betano"])
	}
}

func TestRegisterBetValidation(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Bet 365": d("500")})
	h := newTestServer(f)

	tests := []struct {
		name string
		req  dto.RegisterBetRequest
		code int
	}{
		{"odds vazia", dto.RegisterBetRequest{Bookmaker: "Bet 365", BetType: "Simple", Stake: d("10"), Odds: ""}, http.StatusBadRequest},
		{"odds só com vírgula", dto.RegisterBetRequest{Bookmaker: "Bet 365", BetType: "Simple", Stake: d("10"), Odds: ","}, http.StatusBadRequest},
		{"odd não numérica", dto.RegisterBetRequest{Bookmaker: "Bet 365", BetType: "Simple", Stake: d("10"), Odds: "abc"}, http.StatusBadRequest},
		{"odd zero", dto.RegisterBetRequest{Bookmaker: "Bet 365", BetType: "Simple", Stake: d("10"), Odds: "0"}, http.StatusBadRequest},
		{"stake negativo", dto.RegisterBetRequest{Bookmaker: "Bet 365", BetType: "Simple", Stake: d("-1"), Odds: "2.0"}, http.StatusBadRequest},
		{"tipo inválido", dto.RegisterBetRequest{Bookmaker: "Bet 365", BetType: "Quadruple", Stake: d("10"), Odds: "2.0"}, http.StatusBadRequest},
		{"sem casa", dto.RegisterBetRequest{BetType: "Simple", Stake: d("10"), Odds: "2.0"}, http.StatusBadRequest},
		{"casa desconhecida", dto.RegisterBetRequest{Bookmaker: "Nope", BetType: "Simple", Stake: d("10"), Odds: "2.0"}, http.StatusNotFound},
		{"duas flags de bônus", dto.RegisterBetRequest{Bookmaker: "Bet 365", BetType: "Simple", Stake: d("10"), Odds: "2.0", PromotionalBonus: true, CombinedBonus: true}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		rec := doJSON(t, h, http.MethodPost, "/bets", tt.req)
		if rec.Code != tt.code {
			t.Errorf("%s: status = %d, want %d (%s)", tt.name, rec.Code, tt.code, rec.Body.String())
		}
	}

	if len(f.bets) != 0 {
		t.Errorf("nenhuma aposta deveria ter sido criada, há %d", len(f.bets))
	}
	if !f.balances["Bet 365"].Equal(d("500")) {
		t.Errorf("saldo não pode mudar em requisição rejeitada: %s", f.balances["Bet 365"])
	}
}

func TestSettleBetWonCreditsBalance(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Bet 365": d("500")})
	h := newTestServer(f)

	id := registerBet(t, h, dto.RegisterBetRequest{
		Bookmaker: "Bet 365", BetType: "Simple", Stake: d("100"), Odds: "2.0",
	})

	rec := doJSON(t, h, http.MethodPost, "/bets/"+id+"/settle", dto.SettleBetRequest{Result: "WON"})
	if rec.Code != http.StatusOK {
		t.Fatalf("settle: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp dto.SettleBetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.SettlementValue.Equal(d("100")) {
		t.Errorf("settlement_value = %s, want 100", resp.SettlementValue)
	}
	if !resp.BalanceCredit.Equal(d("200")) {
		t.Errorf("balance_credit = %s, want 200 (stake + lucro)", resp.BalanceCredit)
	}
	// 500 - 100 de stake + 200 de crédito
	if !f.balances["Bet 365"].Equal(d("600")) {
		t.Errorf("balance = %s, want 600", f.balances["Bet 365"])
	}
}

func TestSettleBetTwiceConflicts(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Bet 365": d("500")})
	h := newTestServer(f)

	id := registerBet(t, h, dto.RegisterBetRequest{
		Bookmaker: "Bet 365", BetType: "Simple", Stake: d("100"), Odds: "2.0",
	})

	if rec := doJSON(t, h, http.MethodPost, "/bets/"+id+"/settle", dto.SettleBetRequest{Result: "LOST"}); rec.Code != http.StatusOK {
		t.Fatalf("first settle: status %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/bets/"+id+"/settle", dto.SettleBetRequest{Result: "WON"}); rec.Code != http.StatusConflict {
		t.Errorf("second settle: status %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestSettleBetValidation(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Bet 365": d("500")})
	h := newTestServer(f)

	id := registerBet(t, h, dto.RegisterBetRequest{
		Bookmaker: "Bet 365", BetType: "Double", Stake: d("100"), Odds: "1.5, 2.0",
	})

	tests := []struct {
		name string
		req  any
		code int
	}{
		{"resultado pendente", dto.SettleBetRequest{Result: "PENDING"}, http.StatusBadRequest},
		{"resultado desconhecido", dto.SettleBetRequest{Result: "DRAW"}, http.StatusBadRequest},
		// omitempty esconde a lista vazia, então o JSON vai cru
		{"todas as pernas excluídas", json.RawMessage(`{"result":"WON","valid_legs":[]}`), http.StatusBadRequest},
		{"índice de perna inválido", dto.SettleBetRequest{Result: "WON", ValidLegs: []int{5}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := doJSON(t, h, http.MethodPost, "/bets/"+id+"/settle", tt.req)
		if rec.Code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.code)
		}
	}

	if rec := doJSON(t, h, http.MethodPost, "/bets/nope/settle", dto.SettleBetRequest{Result: "WON"}); rec.Code != http.StatusNotFound {
		t.Errorf("aposta inexistente: status %d, want 404", rec.Code)
	}
}

func TestSettleBetWithLegExclusion(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Bet 365": d("500")})
	h := newTestServer(f)

	id := registerBet(t, h, dto.RegisterBetRequest{
		Bookmaker: "Bet 365", BetType: "Triple", Stake: d("100"), Odds: "1.5, 2.0, 3.0",
	})

	// só as pernas 0 e 1 valem: produto 3.0, lucro 200
	rec := doJSON(t, h, http.MethodPost, "/bets/"+id+"/settle",
		dto.SettleBetRequest{Result: "WON", ValidLegs: []int{0, 1}})
	if rec.Code != http.StatusOK {
		t.Fatalf("settle: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp dto.SettleBetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.SettlementValue.Equal(d("200")) {
		t.Errorf("settlement_value = %s, want 200", resp.SettlementValue)
	}
}

func TestSettleBetCashoutOverride(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Bet 365": d("500")})
	h := newTestServer(f)

	id := registerBet(t, h, dto.RegisterBetRequest{
		Bookmaker: "Bet 365", BetType: "Simple", Stake: d("100"), Odds: "2.0",
	})

	cash := d("35.50")
	rec := doJSON(t, h, http.MethodPost, "/bets/"+id+"/settle",
		dto.SettleBetRequest{Result: "WON", Cashout: &cash})
	if rec.Code != http.StatusOK {
		t.Fatalf("settle: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp dto.SettleBetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.SettlementValue.Equal(d("35.50")) {
		t.Errorf("settlement_value = %s, want cashout 35.50", resp.SettlementValue)
	}
	// crédito segue a regra normal sobre o valor operado
	if !resp.BalanceCredit.Equal(d("135.50")) {
		t.Errorf("balance_credit = %s, want 135.50", resp.BalanceCredit)
	}
}

func TestRefundRestoresBalance(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Bet 365": d("500")})
	h := newTestServer(f)

	id := registerBet(t, h, dto.RegisterBetRequest{
		Bookmaker: "Bet 365", BetType: "Simple", Stake: d("100"), Odds: "2.0",
	})
	if !f.balances["Bet 365"].Equal(d("400")) {
		t.Fatalf("balance após registro = %s, want 400", f.balances["Bet 365"])
	}

	rec := doJSON(t, h, http.MethodDelete, "/bets/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refund: status %d, body %s", rec.Code, rec.Body.String())
	}

	// volta exatamente ao valor pré-aposta
	if !f.balances["Bet 365"].Equal(d("500")) {
		t.Errorf("balance = %s, want 500 restaurado", f.balances["Bet 365"])
	}
	if _, ok := f.bets[id]; ok {
		t.Error("aposta reembolsada deveria ter sido apagada")
	}
}

func TestRefundSettledBetConflicts(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Bet 365": d("500")})
	h := newTestServer(f)

	id := registerBet(t, h, dto.RegisterBetRequest{
		Bookmaker: "Bet 365", BetType: "Simple", Stake: d("100"), Odds: "2.0",
	})
	if rec := doJSON(t, h, http.MethodPost, "/bets/"+id+"/settle", dto.SettleBetRequest{Result: "WON"}); rec.Code != http.StatusOK {
		t.Fatalf("settle: status %d", rec.Code)
	}

	// aposta resolvida não pode ser reembolsada: corrigiria o saldo duas vezes
	if rec := doJSON(t, h, http.MethodDelete, "/bets/"+id, nil); rec.Code != http.StatusConflict {
		t.Errorf("refund após acerto: status %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestAdjustBalance(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"KTO": d("100")})
	h := newTestServer(f)

	rec := doJSON(t, h, http.MethodPost, "/balances/adjust", dto.AdjustBalanceRequest{
		Bookmaker: "KTO", Operation: repo.OpDeposit, Amount: d("50"), Note: "pix",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp dto.AdjustBalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Balance.Balance.Equal(d("150")) {
		t.Errorf("balance = %s, want 150", resp.Balance.Balance)
	}

	tests := []struct {
		name string
		req  dto.AdjustBalanceRequest
		code int
	}{
		{"operação desconhecida", dto.AdjustBalanceRequest{Bookmaker: "KTO", Operation: "BONUS", Amount: d("10")}, http.StatusBadRequest},
		{"valor não positivo", dto.AdjustBalanceRequest{Bookmaker: "KTO", Operation: repo.OpDeposit, Amount: d("0")}, http.StatusBadRequest},
		{"casa desconhecida", dto.AdjustBalanceRequest{Bookmaker: "Nope", Operation: repo.OpDeposit, Amount: d("10")}, http.StatusNotFound},
		{"sem casa", dto.AdjustBalanceRequest{Operation: repo.OpDeposit, Amount: d("10")}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := doJSON(t, h, http.MethodPost, "/balances/adjust", tt.req)
		if rec.Code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.code)
		}
	}
}

func TestListBalancesTotal(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{"Bet 365": d("100.50"), "Betano": d("49.50")})
	h := newTestServer(f)

	rec := doJSON(t, h, http.MethodGet, "/balances", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list balances: status %d", rec.Code)
	}
	var resp dto.BalancesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Total.Equal(d("150")) {
		t.Errorf("total = %s, want 150", resp.Total)
	}
	if len(resp.Balances) != 2 {
		t.Errorf("balances = %d, want 2", len(resp.Balances))
	}
}

func TestStatsSummaryEndpoint(t *testing.T) {
	f := newFakeRepo(map[string]decimal.Decimal{})
	h := newTestServer(f)

	rec := doJSON(t, h, http.MethodGet, "/stats/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status %d", rec.Code)
	}
	var sum stats.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.TotalBets != 2 || !sum.TotalStaked.Equal(d("150")) {
		t.Errorf("summary = %+v", sum)
	}
}
