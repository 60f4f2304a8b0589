package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/tradesim/pkg/engine/core"
	"github.com/uhyunpark/tradesim/pkg/engine/sim"
)

// Server exposes the simulation engine over REST and WebSocket.
type Server struct {
	engine *sim.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(engine *sim.Engine, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}

	// push executed trades and the updated book to ws subscribers
	engine.OnExecution(func(e *core.Execution) {
		s.hub.BroadcastToChannel("trades:"+e.Symbol, execToInfo(e))
		s.hub.BroadcastToChannel("book:"+e.Symbol, s.snapshot(10))
	})

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/book/{symbol}", s.handleGetBook).Methods("GET")
	api.HandleFunc("/book/{symbol}/bbo", s.handleGetBBO).Methods("GET")
	api.HandleFunc("/trades/{symbol}", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/strategies", s.handleGetStrategies).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) bookFor(w http.ResponseWriter, r *http.Request) bool {
	symbol := mux.Vars(r)["symbol"]
	if symbol != s.engine.Book().Symbol() {
		respondError(w, http.StatusNotFound, "unknown symbol", symbol)
		return false
	}
	return true
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	if !s.bookFor(w, r) {
		return
	}

	levels := 20
	if v := r.URL.Query().Get("levels"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			levels = n
		}
	}

	respondJSON(w, s.snapshot(levels))
}

// snapshot aggregates the top of the engine's book into a wire snapshot.
func (s *Server) snapshot(levels int) OrderbookSnapshot {
	book := s.engine.Book()
	bidLevels, askLevels := book.Depth(levels)

	bids := make([]PriceLevel, len(bidLevels))
	for i, l := range bidLevels {
		bids[i] = PriceLevel{Price: l.Price, Size: l.Qty}
	}
	asks := make([]PriceLevel, len(askLevels))
	for i, l := range askLevels {
		asks[i] = PriceLevel{Price: l.Price, Size: l.Qty}
	}

	return OrderbookSnapshot{
		Symbol:    book.Symbol(),
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (s *Server) handleGetBBO(w http.ResponseWriter, r *http.Request) {
	if !s.bookFor(w, r) {
		return
	}

	book := s.engine.Book()
	respondJSON(w, BBO{
		Symbol:   book.Symbol(),
		Bid:      book.BestBid(),
		Ask:      book.BestAsk(),
		Spread:   book.Spread(),
		MidPrice: book.MidPrice(),
		Last:     book.LastPrice(),
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	if !s.bookFor(w, r) {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	execs, err := s.engine.RecentTrades(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "trade lookup failed", err.Error())
		return
	}

	trades := make([]TradeInfo, len(execs))
	for i := range execs {
		trades[i] = execToInfo(&execs[i])
	}
	respondJSON(w, trades)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	var side core.Side
	switch strings.ToUpper(req.Side) {
	case "BUY":
		side = core.Buy
	case "SELL":
		side = core.Sell
	default:
		respondError(w, http.StatusBadRequest, "invalid side", req.Side)
		return
	}

	id, accepted := s.engine.SubmitOrder(side, req.Price, req.Qty)
	if !accepted {
		s.log.Debugw("order_rejected", "side", req.Side, "price", req.Price, "qty", req.Qty)
	}
	respondJSON(w, SubmitOrderResponse{OrderID: id, Accepted: accepted})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	respondJSON(w, CancelOrderResponse{
		OrderID:   req.OrderID,
		Cancelled: s.engine.CancelOrder(req.OrderID),
	})
}

func (s *Server) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	sts := s.engine.Strategies()
	out := make([]StrategyInfo, len(sts))
	for i, st := range sts {
		out[i] = StrategyInfo{
			Name:     st.Name(),
			Symbol:   st.Symbol(),
			Running:  st.IsRunning(),
			Position: st.Position(),
			PnL:      st.PnL(),
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func execToInfo(e *core.Execution) TradeInfo {
	return TradeInfo{
		ID:        e.ID,
		Symbol:    e.Symbol,
		Price:     e.Price,
		Size:      e.Qty,
		Side:      e.Aggressor.String(),
		Timestamp: e.Time.UnixMilli(),
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Detail: detail})
}
