package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/amm"
	"github.com/hakimelghazi/ledger-dex/internal/ledger"
	"github.com/hakimelghazi/ledger-dex/internal/venue"
	"github.com/hakimelghazi/ledger-dex/pricefeed"
)

type server struct {
	venue    *venue.Venue
	prices   *hub[pricefeed.Confirmation]
	upgrader websocket.Upgrader
	metrics  http.Handler
	log      *zap.Logger
}

func newServer(v *venue.Venue, metricsHandler http.Handler, log *zap.Logger) *server {
	return &server{
		venue:    v,
		prices:   newHub[pricefeed.Confirmation](),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		metrics:  metricsHandler,
		log:      log,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// the price stream is long-lived and stays outside the request timeout
	r.Get("/ws/prices", s.handlePriceStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Use(middleware.Timeout(3 * time.Second))

		r.Get("/status", s.handleStatus)
		r.Handle("/metrics", s.metrics)

		r.Get("/blocks", s.handleBlocks)
		r.Get("/blocks/height", s.handleHeight)
		r.Get("/blocks/{height}", s.handleBlock)
		r.Post("/transactions", s.handleSubmit)

		r.Get("/prices", s.handlePrices)
		r.Get("/prices/{base}/{quote}", s.handlePrice)
		r.Get("/prices/{base}/{quote}/history", s.handlePriceHistory)
		r.Get("/oracle", s.handleOracle)

		r.Get("/books", s.handleBooks)
		r.Get("/books/{base}/{quote}", s.handleBook)
		r.Get("/books/{base}/{quote}/matches", s.handleMatches)
		r.Get("/orders", s.handleOrders)
		r.Get("/orders/{id}", s.handleOrder)

		r.Get("/pools", s.handlePools)
		r.Get("/pools/{base}/{quote}", s.handlePool)
		r.Get("/positions", s.handlePositions)
		r.Get("/positions/{id}", s.handlePosition)
		r.Post("/liquidity", s.handleDeposit)
	})
	return r
}

// deliverConfirmation is the bridge end of the price outbox. Delivery to
// websocket subscribers is best effort; the outbox only needs the hand-off
// to succeed.
func (s *server) deliverConfirmation(_ context.Context, c pricefeed.Confirmation) error {
	s.prices.Broadcast(c)
	s.log.Debug("price settlement acknowledged",
		zap.Uint64("seq", c.Seq),
		zap.String("pair", c.Pair),
		zap.Float64("price", c.Quote.Price),
		zap.Uint64("height", c.Height),
		zap.Int("subscribers", s.prices.Len()))
	return nil
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (s *server) handlePriceStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.prices.Subscribe(32)
	defer s.prices.Unsubscribe(sub)

	for c := range sub.ch {
		if err := conn.WriteJSON(outboundMessage{Type: "price_confirmed", Data: c}); err != nil {
			return
		}
	}
}

func pairParam(r *http.Request) string {
	return chi.URLParam(r, "base") + "/" + chi.URLParam(r, "quote")
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.venue.Status())
}

func (s *server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.venue.Ledger.Blocks())
}

func (s *server) handleHeight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]uint64{"height": s.venue.Ledger.Height()})
}

func (s *server) handleBlock(w http.ResponseWriter, r *http.Request) {
	h, err := strconv.ParseUint(chi.URLParam(r, "height"), 10, 64)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "height must be a positive integer")
		return
	}
	b, ok := s.venue.Ledger.Block(h)
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "not_found", "block not found")
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

type submitRequest struct {
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Contract  ledger.Contract `json:"contract"`
	Payload   ledger.Payload  `json:"payload"`
}

// handleSubmit queues a raw transaction. Submission itself never fails; the
// transaction is judged when its block is scanned.
func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	req.Sender = strings.TrimSpace(req.Sender)
	if req.Sender == "" {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "sender is required")
		return
	}
	if req.Sender == ledger.OracleSender {
		writeProblem(w, r, http.StatusForbidden, "reserved_sender", "sender is reserved for the price oracle")
		return
	}
	cost, ok := req.Contract.Cost()
	if !ok {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "unknown contract")
		return
	}
	if req.Payload.Kind == "" {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "payload.type is required")
		return
	}
	if req.Recipient == "" {
		req.Recipient = string(req.Contract)
	}

	hash := s.venue.Ledger.Submit(ledger.Transaction{
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Contract:  req.Contract,
		Payload:   req.Payload,
		Cost:      cost,
	})
	writeJSON(w, r, http.StatusAccepted, map[string]any{
		"hash":            hash,
		"expected_height": s.venue.Ledger.Height() + 1,
	})
}

func (s *server) handlePrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.venue.Prices.All())
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
	q, ok := s.venue.Prices.Current(pairParam(r))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "not_found", "no confirmed price for pair")
		return
	}
	writeJSON(w, r, http.StatusOK, q)
}

func (s *server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.venue.Prices.History(pairParam(r)))
}

func (s *server) handleOracle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.venue.Oracle.All())
}

func (s *server) handleBooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.venue.Books.GetAll())
}

func (s *server) handleBook(w http.ResponseWriter, r *http.Request) {
	b, ok := s.venue.Books.Get(pairParam(r))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "not_found", "no book for pair")
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

func (s *server) handleMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.venue.Books.Matches(pairParam(r)))
}

func (s *server) handleOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.venue.Books.Orders())
}

func (s *server) handleOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.venue.Books.Order(chi.URLParam(r, "id"))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "not_found", "order not found")
		return
	}
	writeJSON(w, r, http.StatusOK, o)
}

func (s *server) handlePools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.venue.Pools.GetAll())
}

func (s *server) handlePool(w http.ResponseWriter, r *http.Request) {
	st, ok := s.venue.Pools.Stats(pairParam(r))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "not_found", "no pool for pair")
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

func (s *server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.venue.Pools.Positions())
}

func (s *server) handlePosition(w http.ResponseWriter, r *http.Request) {
	p, ok := s.venue.Pools.Position(chi.URLParam(r, "id"))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "not_found", "position not found")
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

type depositRequest struct {
	Provider   string  `json:"provider"`
	Pair       string  `json:"pair"`
	AmountA    float64 `json:"amount_a"`
	AmountB    float64 `json:"amount_b"`
	MinLPClaim float64 `json:"min_lp_claim,omitempty"`
}

func (s *server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	req.Provider = strings.TrimSpace(req.Provider)
	if req.Provider == "" {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "provider is required")
		return
	}

	receipt, err := s.venue.Deposit(amm.DepositRequest{
		Provider:   req.Provider,
		Pair:       strings.TrimSpace(req.Pair),
		AmountA:    req.AmountA,
		AmountB:    req.AmountB,
		MinLPClaim: req.MinLPClaim,
	})
	var slip *amm.SlippageError
	switch {
	case errors.As(err, &slip):
		writeProblem(w, r, http.StatusUnprocessableEntity, "slippage", err.Error())
		return
	case errors.Is(err, amm.ErrNonPositiveAmount), errors.Is(err, amm.ErrMissingPair):
		writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	case err != nil:
		writeProblem(w, r, http.StatusInternalServerError, "deposit_error", err.Error())
		return
	}

	w.Header().Set("Location", "/positions/"+receipt.PositionID)
	writeJSON(w, r, http.StatusAccepted, receipt)
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, title, detail string) {
	reqID := middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":      title,
		"status":     code,
		"detail":     detail,
		"instance":   r.URL.Path,
		"request_id": reqID,
	})
}
