package httpserver

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mselser95/market-sdk/internal/fillable"
	"github.com/mselser95/market-sdk/pkg/collateral"
	"github.com/mselser95/market-sdk/pkg/signing"
	"github.com/mselser95/market-sdk/pkg/types"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Ledger is the fill-ledger surface exposed over HTTP.
type Ledger interface {
	fillable.FilledQtyLookup
	Invalidate(contract common.Address, orderHash common.Hash)
	InvalidateAll()
}

// OrdersHandler serves order hashing, fillable quantity and ledger endpoints.
type OrdersHandler struct {
	reader   fillable.ChainReader
	ledger   Ledger
	feeToken common.Address
	logger   *zap.Logger
}

// NewOrdersHandler creates a new orders handler.
func NewOrdersHandler(reader fillable.ChainReader, ledger Ledger, feeToken common.Address, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		reader:   reader,
		ledger:   ledger,
		feeToken: feeToken,
		logger:   logger,
	}
}

// Routes mounts the handler under r.
func (h *OrdersHandler) Routes(r chi.Router) {
	r.Post("/api/orders/hash", h.HandleHash)
	r.Post("/api/orders/fillable", h.HandleFillable)
	r.Post("/api/collateral", h.HandleCollateral)
	r.Delete("/api/ledger", h.HandleClearLedger)
	r.Delete("/api/ledger/{contract}/{orderHash}", h.HandleInvalidate)
}

// HashResponse is returned by POST /api/orders/hash.
type HashResponse struct {
	OrderHash string `json:"orderHash"`
}

// FillableResponse is returned by POST /api/orders/fillable.
type FillableResponse struct {
	OrderHash     string `json:"orderHash"`
	MakerFillable string `json:"makerFillable"`
	TakerFillable string `json:"takerFillable"`
}

// CollateralRequest is the body of POST /api/collateral.
type CollateralRequest struct {
	ContractAddress common.Address `json:"contractAddress"`
	Qty             *big.Int       `json:"qty"`
	Price           *big.Int       `json:"price"`
}

// CollateralResponse is returned by POST /api/collateral.
type CollateralResponse struct {
	NeededCollateral string `json:"neededCollateral"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HandleHash returns the hash of the posted order.
func (h *OrdersHandler) HandleHash(w http.ResponseWriter, r *http.Request) {
	var order types.Order
	if !h.decode(w, r, &order) {
		return
	}

	h.writeJSON(w, http.StatusOK, HashResponse{OrderHash: signing.HashOrder(&order).Hex()})
}

// HandleFillable computes maker and taker fillable quantities for the posted
// signed order.
func (h *OrdersHandler) HandleFillable(w http.ResponseWriter, r *http.Request) {
	var order types.SignedOrder
	if !h.decode(w, r, &order) {
		return
	}
	if order.OrderQty == nil {
		h.writeError(w, "orderQty is required", "", http.StatusBadRequest)
		return
	}

	orderHash := signing.HashOrder(&order.Order)

	calc, err := fillable.New(&fillable.Config{
		Reader:   h.reader,
		Ledger:   h.ledger,
		FeeToken: h.feeToken,
		Logger:   h.logger,
	}, &order, orderHash)
	if err != nil {
		h.writeError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	makerFillable, err := calc.ComputeRemainingMakerFillable(ctx)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	takerFillable, err := calc.ComputeRemainingTakerFillable(ctx)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, FillableResponse{
		OrderHash:     orderHash.Hex(),
		MakerFillable: makerFillable.String(),
		TakerFillable: takerFillable.String(),
	})
}

// HandleCollateral returns the collateral a position of qty at price needs.
func (h *OrdersHandler) HandleCollateral(w http.ResponseWriter, r *http.Request) {
	var req CollateralRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Qty == nil || req.Price == nil {
		h.writeError(w, "qty and price are required", "", http.StatusBadRequest)
		return
	}

	terms, err := h.reader.ContractTerms(r.Context(), req.ContractAddress)
	if err != nil {
		h.logger.Error("contract-terms-lookup-failed",
			zap.String("contract", req.ContractAddress.Hex()),
			zap.Error(err))
		h.writeError(w, "contract terms unavailable", "", http.StatusBadGateway)
		return
	}

	needed := collateral.NeededCollateralForTerms(terms, req.Qty, req.Price)
	h.writeJSON(w, http.StatusOK, CollateralResponse{NeededCollateral: needed.String()})
}

// HandleClearLedger drops every cached filled/cancelled quantity.
func (h *OrdersHandler) HandleClearLedger(w http.ResponseWriter, r *http.Request) {
	h.ledger.InvalidateAll()
	h.logger.Info("ledger-cleared-via-api")
	w.WriteHeader(http.StatusNoContent)
}

// HandleInvalidate drops one cached filled/cancelled quantity.
func (h *OrdersHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	contract := chi.URLParam(r, "contract")
	orderHash := chi.URLParam(r, "orderHash")

	if !common.IsHexAddress(contract) {
		h.writeError(w, "invalid contract address", "", http.StatusBadRequest)
		return
	}
	hashBytes := common.FromHex(orderHash)
	if len(hashBytes) != common.HashLength {
		h.writeError(w, "invalid order hash", "", http.StatusBadRequest)
		return
	}

	h.ledger.Invalidate(common.HexToAddress(contract), common.BytesToHash(hashBytes))
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		h.writeError(w, "invalid request body: "+err.Error(), "", http.StatusBadRequest)
		return false
	}
	return true
}

// writeOrderError maps validation failures to 422 and backend failures to 502.
func (h *OrdersHandler) writeOrderError(w http.ResponseWriter, err error) {
	var orderErr *types.OrderError
	if errors.As(err, &orderErr) {
		h.writeError(w, orderErr.Error(), orderErr.Code, http.StatusUnprocessableEntity)
		return
	}

	h.logger.Error("fillable-computation-failed", zap.Error(err))
	h.writeError(w, "backend unavailable", "", http.StatusBadGateway)
}

func (h *OrdersHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *OrdersHandler) writeError(w http.ResponseWriter, message string, code string, statusCode int) {
	h.writeJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}
