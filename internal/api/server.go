package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/event"
	"paper_trade/internal/infra"

	"github.com/shopspring/decimal"
)

// Market is the read side of the market data store.
type Market interface {
	GetAll() []domain.Stock
	Get(symbol string) (domain.Stock, error)
	GetHistory(symbol string) ([]domain.HistoryPoint, error)
}

// Portfolio values the account against a price source.
type Portfolio interface {
	Valuation(src domain.PriceSource) domain.PortfolioValuation
}

// Trader executes trade requests.
type Trader interface {
	Execute(ctx context.Context, req domain.TradeRequest) (domain.TradeResult, error)
}

// Deps groups what the server needs. Journal, Metrics and Bus are optional.
type Deps struct {
	Market    Market
	Prices    domain.PriceSource
	Portfolio Portfolio
	Trader    Trader
	Journal   domain.TradeJournal
	Metrics   *infra.Metrics
	Bus       *event.Bus
}

// Server exposes the simulator over HTTP and WebSocket.
type Server struct {
	deps Deps
	mux  *http.ServeMux

	pingInterval time.Duration
}

// NewServer registers all routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:         deps,
		mux:          http.NewServeMux(),
		pingInterval: 30 * time.Second,
	}

	s.mux.HandleFunc("GET /stocks", s.handleStocks)
	s.mux.HandleFunc("GET /stocks/{symbol}", s.handleStock)
	s.mux.HandleFunc("GET /stocks/{symbol}/history", s.handleHistory)
	s.mux.HandleFunc("GET /portfolio", s.handlePortfolio)
	s.mux.HandleFunc("POST /trade", s.handleTrade)
	s.mux.HandleFunc("GET /trades", s.handleTrades)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /ws/ticks", s.handleTicks)

	return s
}

// Handler returns the root handler with logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return withRecover(withLogging(s.mux))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Hijacked tick streams watch the request context to exit on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Market.GetAll())
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	stock, err := s.deps.Market.Get(pathSymbol(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.deps.Market.GetHistory(pathSymbol(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Portfolio.Valuation(s.deps.Prices))
}

// tradeBody mirrors TradeRequest but keeps quantity raw so it can be checked
// as a JSON number with an integral value (2 and 2.0 pass, "2" and 2.5 do not).
type tradeBody struct {
	Symbol   string          `json:"symbol"`
	Quantity json.RawMessage `json:"quantity"`
	Side     string          `json:"side"`
}

func (b tradeBody) toRequest() (domain.TradeRequest, error) {
	qty, err := parseQuantity(b.Quantity)
	if err != nil {
		return domain.TradeRequest{}, err
	}
	side, err := domain.ParseSide(b.Side)
	if err != nil {
		return domain.TradeRequest{}, err
	}
	req := domain.TradeRequest{Symbol: b.Symbol, Quantity: qty, Side: side}
	return req, req.Validate()
}

func parseQuantity(raw json.RawMessage) (int64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return 0, fmt.Errorf("%w: quantity is required", domain.ErrInvalidRequest)
	}
	if strings.HasPrefix(text, "\"") {
		return 0, fmt.Errorf("%w: quantity must be a number", domain.ErrInvalidRequest)
	}
	d, err := decimal.NewFromString(text)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("%w: quantity must be an integer", domain.ErrInvalidRequest)
	}
	n := d.IntPart()
	if !decimal.NewFromInt(n).Equal(d) {
		return 0, fmt.Errorf("%w: quantity is out of range", domain.ErrInvalidRequest)
	}
	return n, nil
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var body tradeBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: malformed JSON body", domain.ErrInvalidRequest))
		return
	}

	req, err := body.toRequest()
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("Trade request received",
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.Int64("quantity", req.Quantity))

	res, err := s.deps.Trader.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeJSON(w, http.StatusOK, []domain.TradeRecord{})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidRequest))
			return
		}
		limit = n
	}

	records, err := s.deps.Journal.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to read trade journal", slog.Any("error", err))
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Metrics == nil {
		writeJSON(w, http.StatusOK, infra.MetricsSnapshot{Timestamp: time.Now()})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Metrics.Snapshot())
}

func pathSymbol(r *http.Request) string {
	return strings.ToUpper(r.PathValue("symbol"))
}
