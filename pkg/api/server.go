package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/bazaarchain/bazaard/pkg/app/bazaar"
	"github.com/bazaarchain/bazaard/pkg/app/core/exchange"
	"github.com/bazaarchain/bazaard/pkg/app/core/transaction"
	"github.com/bazaarchain/bazaard/pkg/storage"
)

// SettlementHistory reads back persisted settlement records, newest first
type SettlementHistory interface {
	LoadRecentSettlements(venue string, limit int) ([]*storage.SettlementRecord, error)
}

// Server handles REST API and WebSocket connections
type Server struct {
	app     *bazaar.App
	router  *mux.Router
	hub     *Hub              // WebSocket hub
	txLog   *os.File          // Transaction log file
	history SettlementHistory // nil when the node runs without persistence
}

// NewServer creates a new API server
func NewServer(app *bazaar.App) *Server {
	// Open transaction log file
	txLogPath := os.Getenv("TX_LOG_FILE")
	if txLogPath == "" {
		txLogPath = "data/transactions.log"
	}

	// Create data directory if it doesn't exist
	os.MkdirAll("data", 0755)

	txLog, err := os.OpenFile(txLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[api] WARNING: failed to open tx log file %s: %v", txLogPath, err)
		txLog = nil // Continue without tx logging
	} else {
		log.Printf("[api] transaction log: %s", txLogPath)
	}

	s := &Server{
		app:    app,
		router: mux.NewRouter(),
		hub:    NewHub(),
		txLog:  txLog,
	}

	s.setupRoutes()
	return s
}

// SetSettlementHistory attaches the settlement history store serving
// /venues/{venue}/settlements. Without it the endpoint returns an empty list.
func (s *Server) SetSettlementHistory(h SettlementHistory) {
	s.history = h
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Venue endpoints
	api.HandleFunc("/venues", s.handleGetVenues).Methods("GET")
	api.HandleFunc("/venues/{venue}/exchanges", s.handleGetExchanges).Methods("GET")
	api.HandleFunc("/venues/{venue}/exchanges/{id}", s.handleGetExchange).Methods("GET")
	api.HandleFunc("/venues/{venue}/exchanges/{id}/offers", s.handleGetExchangeOffers).Methods("GET")
	api.HandleFunc("/venues/{venue}/offers/{id}", s.handleGetOffer).Methods("GET")
	api.HandleFunc("/venues/{venue}/settlements", s.handleGetSettlements).Methods("GET")

	// Token ledger endpoints
	api.HandleFunc("/tokens", s.handleGetLedgers).Methods("GET")
	api.HandleFunc("/tokens/{symbol}/balances/{address}", s.handleGetBalance).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}/nonce", s.handleGetNonce).Methods("GET")

	// Chain endpoints
	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")

	// Transaction submission
	api.HandleFunc("/tx", s.handleSubmitTx).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	// Start WebSocket hub
	go s.hub.Run()

	// CORS configuration
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetVenues(w http.ResponseWriter, r *http.Request) {
	venues := s.app.Venues()

	response := make([]VenueInfo, len(venues))
	for i, name := range venues {
		eng := s.app.Engine(name)
		response[i] = VenueInfo{
			Name:      name,
			AssetKind: eng.Kind().String(),
			Custody:   eng.Custody().Hex(),
			Exchanges: len(eng.ListExchanges()),
		}
	}

	respondJSON(w, response)
}

func (s *Server) engineFromRequest(w http.ResponseWriter, r *http.Request) *exchange.Engine {
	eng := s.app.Engine(mux.Vars(r)["venue"])
	if eng == nil {
		respondError(w, http.StatusNotFound, "venue not found", mux.Vars(r)["venue"])
	}
	return eng
}

func (s *Server) handleGetExchanges(w http.ResponseWriter, r *http.Request) {
	eng := s.engineFromRequest(w, r)
	if eng == nil {
		return
	}

	rows := eng.ListExchanges()
	response := make([]ExchangeInfo, len(rows))
	for i, ex := range rows {
		response[i] = toExchangeInfo(ex)
	}

	respondJSON(w, response)
}

func (s *Server) handleGetExchange(w http.ResponseWriter, r *http.Request) {
	eng := s.engineFromRequest(w, r)
	if eng == nil {
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid exchange id", err.Error())
		return
	}

	ex, ok := eng.GetExchange(id)
	if !ok {
		respondError(w, http.StatusNotFound, "exchange not found", "")
		return
	}

	respondJSON(w, toExchangeInfo(ex))
}

func (s *Server) handleGetExchangeOffers(w http.ResponseWriter, r *http.Request) {
	eng := s.engineFromRequest(w, r)
	if eng == nil {
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid exchange id", err.Error())
		return
	}

	rows := eng.ListOffers(id)
	response := make([]OfferInfo, len(rows))
	for i, o := range rows {
		response[i] = toOfferInfo(o)
	}

	respondJSON(w, response)
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	eng := s.engineFromRequest(w, r)
	if eng == nil {
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid offer id", err.Error())
		return
	}

	o, ok := eng.GetOffer(id)
	if !ok {
		respondError(w, http.StatusNotFound, "offer not found", "")
		return
	}

	respondJSON(w, toOfferInfo(o))
}

func (s *Server) handleGetLedgers(w http.ResponseWriter, r *http.Request) {
	fungible, unique, semi := s.app.Ledgers().Symbols()
	respondJSON(w, LedgerInfo{
		Fungible:     fungible,
		Unique:       unique,
		SemiFungible: semi,
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]
	addressStr := vars["address"]

	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(addressStr)

	reg := s.app.Ledgers()
	if led, err := reg.Fungible(symbol); err == nil {
		respondJSON(w, BalanceInfo{Ledger: symbol, Address: addr.Hex(), Balance: led.BalanceOf(addr)})
		return
	}
	if led, err := reg.Unique(symbol); err == nil {
		respondJSON(w, BalanceInfo{Ledger: symbol, Address: addr.Hex(), Balance: led.BalanceOf(addr)})
		return
	}
	if led, err := reg.SemiFungible(symbol); err == nil {
		// semi-fungible balances are per token id
		idStr := r.URL.Query().Get("id")
		if idStr == "" {
			respondError(w, http.StatusBadRequest, "missing token id", "pass ?id=0x... for semi-fungible ledgers")
			return
		}
		id := common.HexToHash(idStr)
		respondJSON(w, BalanceInfo{Ledger: symbol, Address: addr.Hex(), TokenID: id.Hex(), Balance: led.BalanceOf(addr, id)})
		return
	}

	respondError(w, http.StatusNotFound, "ledger not found", symbol)
}

func (s *Server) handleGetSettlements(w http.ResponseWriter, r *http.Request) {
	eng := s.engineFromRequest(w, r)
	if eng == nil {
		return
	}
	if s.history == nil {
		respondJSON(w, []SettlementInfo{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}

	recs, err := s.history.LoadRecentSettlements(mux.Vars(r)["venue"], limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load settlements", err.Error())
		return
	}

	response := make([]SettlementInfo, len(recs))
	for i, rec := range recs {
		info := SettlementInfo{
			Venue:      rec.Venue,
			ExchangeID: rec.ExchangeID,
			OfferID:    rec.OfferID,
			Kind:       rec.Kind.String(),
			Maker:      rec.Maker.Hex(),
			Taker:      rec.Taker.Hex(),
			Amount:     rec.Amount,
			Price:      rec.Price,
			Timestamp:  rec.Timestamp,
		}
		if rec.TokenID != (common.Hash{}) {
			info.TokenID = rec.TokenID.Hex()
		}
		response[i] = info
	}
	respondJSON(w, response)
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(addressStr)
	respondJSON(w, NonceInfo{Address: addr.Hex(), Nonce: s.app.Nonce(addr)})
}

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	// TODO(status): report view, avg block time and validator count once
	// the node exposes consensus.State to the API
	respondJSON(w, ChainStatus{Height: s.app.Height()})
}

func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}

	// Structural validation up front; signature and state checks happen
	// at execution so the mempool never admits garbage
	tx, err := transaction.ParseTransaction(bodyBytes)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction", err.Error())
		return
	}

	s.app.PushTx(bodyBytes)

	// Short id from the signature prefix
	txID := tx.Signature
	if len(txID) > 10 {
		txID = txID[:10]
	}

	log.Printf("[api] signed tx submitted: type=%s id=%s bytes=%d", tx.Type, txID, len(bodyBytes))

	s.logTransaction("TX_SUBMIT", map[string]interface{}{
		"tx_id":    txID,
		"type":     string(tx.Type),
		"tx_bytes": len(bodyBytes),
	})

	respondJSON(w, SubmitTxResponse{
		Status: "submitted",
		TxID:   txID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from node wiring)
// ==============================

// BroadcastSettlement pushes a settlement to WebSocket subscribers of
// "settlements:<venue>"
func (s *Server) BroadcastSettlement(venue string, st exchange.Settlement) {
	update := SettlementUpdate{
		Type: "settlement",
		SettlementInfo: SettlementInfo{
			Venue:      venue,
			ExchangeID: st.ExchangeID,
			OfferID:    st.OfferID,
			Kind:       st.Kind.String(),
			Maker:      st.Maker.Hex(),
			Taker:      st.Taker.Hex(),
			TokenID:    st.TokenID.Hex(),
			Amount:     st.Amount,
			Price:      st.Price,
			Timestamp:  time.Now().UnixMilli(),
		},
	}

	s.hub.BroadcastToChannel("settlements:"+venue, update)
}

// ==============================
// Helper Functions
// ==============================

func toExchangeInfo(ex *exchange.Exchange) ExchangeInfo {
	info := ExchangeInfo{
		ID:           ex.ID,
		Name:         ex.Name,
		AssetToken:   ex.AssetToken,
		PaymentToken: ex.PaymentToken,
		Creator:      ex.Creator.Hex(),
		Amount:       ex.Amount,
		Price:        ex.Price,
	}
	if ex.TokenID != (common.Hash{}) {
		info.TokenID = ex.TokenID.Hex()
	}
	return info
}

func toOfferInfo(o *exchange.Offer) OfferInfo {
	info := OfferInfo{
		ID:         o.ID,
		ExchangeID: o.ExchangeID,
		Kind:       o.Kind.String(),
		Creator:    o.Creator.Hex(),
		Amount:     o.Amount,
		Price:      o.Price,
		Total:      o.Total(),
		Status:     o.Status.String(),
	}
	if o.TokenID != (common.Hash{}) {
		info.TokenID = o.TokenID.Hex()
	}
	return info
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// logTransaction writes a transaction event to the log file
func (s *Server) logTransaction(eventType string, data map[string]interface{}) {
	if s.txLog == nil {
		return // Logging disabled
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"event":     eventType,
		"data":      data,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[api] failed to marshal tx log entry: %v", err)
		return
	}

	// One JSON object per line
	s.txLog.Write(jsonData)
	s.txLog.Write([]byte("\n"))
}
