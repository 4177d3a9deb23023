package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/bet-ledger/internal/ledger-service/dto"
	"github.com/radieske/bet-ledger/internal/ledger-service/repo"
	"github.com/radieske/bet-ledger/internal/ledger-service/stats"
	"github.com/radieske/bet-ledger/internal/settlement"
	"github.com/radieske/bet-ledger/pkg/contracts/events"
)

// Repo define as operações de persistência usadas pelos handlers
type Repo interface {
	CreateBet(ctx context.Context, b *repo.Bet) (string, error)
	GetBet(ctx context.Context, id string) (*repo.Bet, error)
	ListBets(ctx context.Context, f repo.BetFilters) ([]repo.Bet, error)
	SettleBet(ctx context.Context, id string, result settlement.Result, validLegs []int, cashout *decimal.Decimal) (*repo.Bet, decimal.Decimal, error)
	RefundBet(ctx context.Context, id string) (*repo.Bet, error)

	GetBalance(ctx context.Context, name string) (*repo.Balance, error)
	ListBalances(ctx context.Context) ([]repo.Balance, error)
	CreateBookmaker(ctx context.Context, name string) error
	ApplyDelta(ctx context.Context, name, op string, amount decimal.Decimal, note string) (*repo.Balance, *repo.Transaction, error)
	ListTransactions(ctx context.Context, f repo.TxFilters) ([]repo.Transaction, error)
}

// StatsProvider expõe os agregados do dashboard
type StatsProvider interface {
	Summary(ctx context.Context) (*stats.Summary, error)
	Bookmakers(ctx context.Context) ([]stats.BookmakerPerformance, error)
	Monthly(ctx context.Context) ([]stats.MonthlyPoint, error)
}

// Publisher publica eventos do ledger (no-op quando Kafka está desabilitado)
type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
	PublishBetRefunded(ctx context.Context, e events.BetRefunded) error
	PublishBalanceAdjusted(ctx context.Context, e events.BalanceAdjusted) error
}

// Server expõe a API HTTP do ledger de apostas
type Server struct {
	log   *zap.Logger
	repo  Repo
	stats StatsProvider
	publ  Publisher
}

func NewServer(log *zap.Logger, r Repo, st StatsProvider, p Publisher) *Server {
	return &Server{log: log, repo: r, stats: st, publ: p}
}

// Router retorna o mux HTTP com as rotas da API
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bets", s.bets)                       // POST registra, GET lista
	mux.HandleFunc("/bets/", s.betByID)                   // GET /bets/{id}, DELETE /bets/{id}, POST /bets/{id}/settle
	mux.HandleFunc("/balances", s.balances)               // GET lista, POST cadastra casa
	mux.HandleFunc("/balances/adjust", s.adjustBalance)   // POST
	mux.HandleFunc("/transactions", s.listTransactions)   // GET
	mux.HandleFunc("/stats/summary", s.statsSummary)      // GET
	mux.HandleFunc("/stats/bookmakers", s.statsBookmakers) // GET
	mux.HandleFunc("/stats/monthly", s.statsMonthly)      // GET
	return mux
}

func (s *Server) bets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.registerBet(w, r)
	case http.MethodGet:
		s.listBets(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// registerBet valida o formulário de aposta, monta o formato durável de odds e
// cria a aposta PENDING com o débito de stake na mesma transação.
func (s *Server) registerBet(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Bookmaker == "" {
		http.Error(w, "bookmaker required", http.StatusBadRequest)
		return
	}
	if req.Stake.IsNegative() {
		http.Error(w, "stake must not be negative", http.StatusBadRequest)
		return
	}
	if !repo.ValidBetType(req.BetType) {
		http.Error(w, "invalid bet_type", http.StatusBadRequest)
		return
	}
	if req.PromotionalBonus && req.CombinedBonus {
		// o formulário antigo deixava marcar os dois, as fórmulas não
		http.Error(w, "bonus flags are mutually exclusive", http.StatusBadRequest)
		return
	}

	mode := settlement.BonusNone
	switch {
	case req.PromotionalBonus:
		mode = settlement.BonusPromotional
	case req.CombinedBonus:
		mode = settlement.BonusCombined
	}

	legs, bonusPercent, err := settlement.ParseOdds(req.Odds)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if mode == settlement.BonusCombined && bonusPercent.IsZero() {
		if req.BonusPercent.IsNegative() || req.BonusPercent.GreaterThan(decimal.NewFromInt(100)) {
			http.Error(w, "bonus_percent must be between 0 and 100", http.StatusBadRequest)
			return
		}
		bonusPercent = req.BonusPercent
	}

	placedAt := time.Now()
	if req.PlacedAt != "" {
		placedAt, err = time.Parse("2006-01-02", req.PlacedAt)
		if err != nil {
			http.Error(w, "placed_at must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	bet := &repo.Bet{
		PlacedAt:   placedAt,
		Bookmaker:  req.Bookmaker,
		BetType:    req.BetType,
		Categories: req.Categories,
		Stake:      req.Stake,
		OddsRepr:   settlement.FormatOdds(legs, mode, bonusPercent),
		BonusMode:  mode,
		Tournament: req.Tournament,
		Match:      req.Match,
		Notes:      req.Notes,
	}

	id, err := s.repo.CreateBet(r.Context(), bet)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
		BetID:     id,
		Bookmaker: bet.Bookmaker,
		BetType:   bet.BetType,
		Stake:     bet.Stake,
		OddsRepr:  bet.OddsRepr,
		BonusMode: int(bet.BonusMode),
	}); err != nil {
		s.log.Warn("publish bet_placed", zap.Error(err))
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, dto.RegisterBetResponse{BetID: id, Result: string(settlement.ResultPending)})
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bets, err := s.repo.ListBets(r.Context(), repo.BetFilters{
		Result:    q.Get("result"),
		Bookmaker: q.Get("bookmaker"),
		Date:      q.Get("date"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]dto.BetResponse, 0, len(bets))
	for i := range bets {
		out = append(out, betResponse(&bets[i]))
	}
	writeJSON(w, out)
}

func (s *Server) betByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/bets/")
	if rest == "" {
		http.Error(w, "bet id required", http.StatusBadRequest)
		return
	}

	if id, ok := strings.CutSuffix(rest, "/settle"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.settleBet(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getBet(w, r, rest)
	case http.MethodDelete:
		s.refundBet(w, r, rest)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request, id string) {
	b, err := s.repo.GetBet(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, betResponse(b))
}

// settleBet resolve a aposta pra WON ou LOST. O percentual de bônus gravado
// na string de odds é reaproveitado; cashout substitui o valor da fórmula.
func (s *Server) settleBet(w http.ResponseWriter, r *http.Request, id string) {
	var req dto.SettleBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	result := settlement.Result(req.Result)
	if !result.Terminal() {
		http.Error(w, "result must be WON or LOST", http.StatusBadRequest)
		return
	}

	b, credit, err := s.repo.SettleBet(r.Context(), id, result, req.ValidLegs, req.Cashout)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.publ.PublishBetSettled(r.Context(), events.BetSettled{
		BetID:           b.ID,
		Bookmaker:       b.Bookmaker,
		Result:          string(b.Result),
		SettlementValue: b.SettlementValue,
		BalanceCredit:   credit,
		Cashout:         req.Cashout != nil,
	}); err != nil {
		s.log.Warn("publish bet_settled", zap.Error(err))
	}

	writeJSON(w, dto.SettleBetResponse{
		BetID:           b.ID,
		Result:          string(b.Result),
		SettlementValue: b.SettlementValue,
		BalanceCredit:   credit,
	})
}

// refundBet apaga uma aposta PENDING devolvendo o stake; irreversível.
func (s *Server) refundBet(w http.ResponseWriter, r *http.Request, id string) {
	b, err := s.repo.RefundBet(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	refunded := decimal.Zero
	if settlement.DebitsStake(b.BonusMode) {
		refunded = b.Stake
	}

	if err := s.publ.PublishBetRefunded(r.Context(), events.BetRefunded{
		BetID:     b.ID,
		Bookmaker: b.Bookmaker,
		Refunded:  refunded,
	}); err != nil {
		s.log.Warn("publish bet_refunded", zap.Error(err))
	}

	writeJSON(w, dto.RefundBetResponse{BetID: b.ID, Refunded: refunded})
}

func (s *Server) balances(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBalances(w, r)
	case http.MethodPost:
		s.createBookmaker(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listBalances(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.ListBalances(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := dto.BalancesResponse{Balances: make([]dto.BalanceResponse, 0, len(list)), Total: decimal.Zero}
	for _, b := range list {
		resp.Total = resp.Total.Add(b.Balance)
		resp.Balances = append(resp.Balances, dto.BalanceResponse{
			Name: b.Name, Balance: b.Balance, LastUpdated: b.LastUpdated,
		})
	}
	writeJSON(w, resp)
}

func (s *Server) createBookmaker(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBookmakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	if err := s.repo.CreateBookmaker(r.Context(), name); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{"name": name})
}

// adjustBalance aplica depósito, saque ou ajuste manual no saldo de uma casa.
func (s *Server) adjustBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Bookmaker == "" {
		http.Error(w, "bookmaker required", http.StatusBadRequest)
		return
	}
	if req.Operation != repo.OpManualAdjustment && !req.Amount.IsPositive() {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	bal, rec, err := s.repo.ApplyDelta(r.Context(), req.Bookmaker, req.Operation, req.Amount, req.Note)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.publ.PublishBalanceAdjusted(r.Context(), events.BalanceAdjusted{
		Bookmaker:  bal.Name,
		Operation:  rec.Operation,
		Amount:     rec.Amount,
		NewBalance: bal.Balance,
	}); err != nil {
		s.log.Warn("publish balance_adjusted", zap.Error(err))
	}

	writeJSON(w, dto.AdjustBalanceResponse{
		Balance: dto.BalanceResponse{Name: bal.Name, Balance: bal.Balance, LastUpdated: bal.LastUpdated},
		Transaction: dto.TransactionResponse{
			ID: rec.ID, Timestamp: rec.Timestamp, Bookmaker: rec.Bookmaker,
			Operation: rec.Operation, Amount: rec.Amount, Note: rec.Note,
			ResultingBalance: rec.ResultingBalance,
		},
	})
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	list, err := s.repo.ListTransactions(r.Context(), repo.TxFilters{
		Bookmaker: q.Get("bookmaker"),
		Operation: q.Get("operation"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]dto.TransactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, dto.TransactionResponse{
			ID: t.ID, Timestamp: t.Timestamp, Bookmaker: t.Bookmaker,
			Operation: t.Operation, Amount: t.Amount, Note: t.Note,
			ResultingBalance: t.ResultingBalance,
		})
	}
	writeJSON(w, out)
}

func (s *Server) statsSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.stats.Summary(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, sum)
}

func (s *Server) statsBookmakers(w http.ResponseWriter, r *http.Request) {
	list, err := s.stats.Bookmakers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, list)
}

func (s *Server) statsMonthly(w http.ResponseWriter, r *http.Request) {
	list, err := s.stats.Monthly(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, list)
}

// writeError mapeia a taxonomia de erros pra status HTTP
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repo.ErrAlreadySettled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, settlement.ErrNoOdds),
		errors.Is(err, settlement.ErrInvalidOdd),
		errors.Is(err, repo.ErrInvalidLeg),
		errors.Is(err, repo.ErrUnknownOperation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error("internal error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func betResponse(b *repo.Bet) dto.BetResponse {
	return dto.BetResponse{
		ID:              b.ID,
		PlacedAt:        b.PlacedAt.Format("2006-01-02"),
		Bookmaker:       b.Bookmaker,
		BetType:         b.BetType,
		Categories:      b.Categories,
		Result:          string(b.Result),
		Stake:           b.Stake,
		Odds:            b.OddsRepr,
		BonusMode:       int(b.BonusMode),
		SettlementValue: b.SettlementValue,
		Tournament:      b.Tournament,
		Match:           b.Match,
		Notes:           b.Notes,
		CreatedAt:       b.CreatedAt,
	}
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
