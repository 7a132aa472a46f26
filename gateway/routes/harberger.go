package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pacochain/core"
	"pacochain/crypto"
	"pacochain/gateway/middleware"
	"pacochain/indexer"
	"pacochain/native/common"
	"pacochain/native/fees"
	"pacochain/native/harberger"
	"pacochain/observability"
)

const maxBodyBytes = 1 << 20

// Ledger is the node surface served over HTTP.
type Ledger interface {
	Params() harberger.Params
	Mint(caller [20]byte, statedPrice, bond *big.Int) (uint64, error)
	AlterStatedPriceAndBond(caller [20]byte, id uint64, priceDelta, bondDelta *big.Int) (*harberger.Listing, error)
	BuyToken(caller [20]byte, id uint64, newStatedPrice, newBond, maxPrice *big.Int) (*harberger.Listing, *big.Int, error)
	SetEscrowIntent(recipient [20]byte, id uint64, priceDelta, bondDelta *big.Int, expiry uint64) (*harberger.EscrowIntent, error)
	CancelEscrowIntent(recipient [20]byte, id uint64) error
	GetIntent(id uint64, account [20]byte) (*harberger.EscrowIntent, bool, error)
	IntentsForAsset(id uint64) ([]*harberger.EscrowIntent, error)
	TransferFrom(caller, from, to [20]byte, id uint64) (*harberger.Listing, error)
	ReapFeesForAssetIDs(ids []uint64) (*big.Int, error)
	ViewBondRefund(account [20]byte) (*big.Int, error)
	WithdrawBondRefund(caller [20]byte) (*big.Int, error)
	GetListing(id uint64) (*harberger.Quote, error)
	TokensOfOwner(owner [20]byte) ([]uint64, error)
	TokenApprove(owner, spender [20]byte, amount *big.Int) error
	TokenBalance(account [20]byte) (*big.Int, error)
	TokenAllowance(owner, spender [20]byte) (*big.Int, error)
	AuditVault() (*core.VaultAudit, error)
	FeeTotals() ([]fees.Totals, error)
}

// History serves indexed events of an asset.
type History interface {
	History(ctx context.Context, assetID uint64, limit int) ([]indexer.EventRecord, error)
}

type harbergerRoutes struct {
	ledger  Ledger
	history History
}

// apiError carries an HTTP status and taxonomy code for request-level
// failures that never reach the ledger.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(format string, args ...interface{}) error {
	return &apiError{status: http.StatusBadRequest, code: "BAD_REQUEST", message: fmt.Sprintf(format, args...)}
}

var errNoCaller = &apiError{status: http.StatusUnauthorized, code: harberger.CodeUnauthorized, message: "caller account required"}

type handlerFunc func(r *http.Request) (int, interface{}, error)

func (h *harbergerRoutes) instrument(method string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status, body, err := fn(r)
		code := ""
		if err != nil {
			status, code = errorStatus(err)
			body = errorResponse{Error: code, Message: err.Error()}
		}
		observability.ModuleMetrics().Observe(harberger.ModuleName, method, status, code, time.Since(start))
		writeJSON(w, status, body)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorStatus(err error) (int, string) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.status, apiErr.code
	}
	code := harberger.Code(err)
	switch {
	case errors.Is(err, harberger.ErrInsufficientBond),
		errors.Is(err, harberger.ErrInvalidDelta),
		errors.Is(err, harberger.ErrInvalidAmount):
		return http.StatusBadRequest, code
	case errors.Is(err, harberger.ErrUnauthorized):
		return http.StatusForbidden, code
	case errors.Is(err, harberger.ErrListingNotFound):
		return http.StatusNotFound, code
	case errors.Is(err, harberger.ErrIntentExpiredOrMissing):
		return http.StatusPreconditionFailed, code
	case errors.Is(err, harberger.ErrPaymentTransferFailed):
		return http.StatusPaymentRequired, code
	case errors.Is(err, harberger.ErrSaleNotActive),
		errors.Is(err, harberger.ErrPriceLimitExceeded):
		return http.StatusConflict, code
	case errors.Is(err, common.ErrModulePaused):
		return http.StatusServiceUnavailable, code
	default:
		return http.StatusInternalServerError, code
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("decode request: %v", err)
	}
	return nil
}

func caller(r *http.Request) ([20]byte, error) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		return [20]byte{}, errNoCaller
	}
	return account, nil
}

func assetIDParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid asset id %q", raw)
	}
	return id, nil
}

func accountParam(r *http.Request) ([20]byte, error) {
	raw := chi.URLParam(r, "account")
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, badRequest("invalid account %q", raw)
	}
	return addr.Raw(), nil
}

func parseAccount(field, raw string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, badRequest("invalid %s: %v", field, err)
	}
	return addr.Raw(), nil
}

// parseAmount decodes a decimal string. Empty input is zero when optional.
func parseAmount(field, raw string, signed bool) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, badRequest("invalid %s %q", field, raw)
	}
	if !signed && v.Sign() < 0 {
		return nil, badRequest("%s must not be negative", field)
	}
	return v, nil
}

func formatAccount(addr [20]byte) string {
	return crypto.AddressFromRaw(crypto.PacoPrefix, addr).String()
}

type listingResponse struct {
	AssetID              uint64 `json:"assetId"`
	Owner                string `json:"owner"`
	StatedPrice          string `json:"statedPrice"`
	CurrentPrice         string `json:"currentPrice,omitempty"`
	Bond                 string `json:"bond"`
	PendingFees          string `json:"pendingFees"`
	LastAccrual          uint64 `json:"lastAccrual"`
	LiquidationStartedAt uint64 `json:"liquidationStartedAt"`
	Liquidating          bool   `json:"liquidating"`
}

func newListingResponse(l *harberger.Listing, current *big.Int) listingResponse {
	resp := listingResponse{
		AssetID:              l.ID,
		Owner:                formatAccount(l.Owner),
		StatedPrice:          l.StatedPrice.String(),
		Bond:                 l.Bond.String(),
		PendingFees:          l.PendingFees.String(),
		LastAccrual:          l.LastAccrual,
		LiquidationStartedAt: l.LiquidationStartedAt,
		Liquidating:          l.Liquidating(),
	}
	if current != nil {
		resp.CurrentPrice = current.String()
	}
	return resp
}

type intentResponse struct {
	AssetID    uint64 `json:"assetId"`
	Recipient  string `json:"recipient"`
	PriceDelta string `json:"priceDelta"`
	BondDelta  string `json:"bondDelta"`
	Expiry     uint64 `json:"expiry"`
	CreatedAt  uint64 `json:"createdAt"`
}

func newIntentResponse(i *harberger.EscrowIntent) intentResponse {
	return intentResponse{
		AssetID:    i.AssetID,
		Recipient:  formatAccount(i.Recipient),
		PriceDelta: i.PriceDelta.String(),
		BondDelta:  i.BondDelta.String(),
		Expiry:     i.Expiry,
		CreatedAt:  i.CreatedAt,
	}
}

type mintRequest struct {
	StatedPrice string `json:"statedPrice"`
	Bond        string `json:"bond"`
}

func (h *harbergerRoutes) mint(r *http.Request) (int, interface{}, error) {
	from, err := caller(r)
	if err != nil {
		return 0, nil, err
	}
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	price, err := parseAmount("statedPrice", req.StatedPrice, false)
	if err != nil {
		return 0, nil, err
	}
	bond, err := parseAmount("bond", req.Bond, false)
	if err != nil {
		return 0, nil, err
	}
	id, err := h.ledger.Mint(from, price, bond)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, map[string]uint64{"assetId": id}, nil
}

func (h *harbergerRoutes) getListing(r *http.Request) (int, interface{}, error) {
	id, err := assetIDParam(r)
	if err != nil {
		return 0, nil, err
	}
	quote, err := h.ledger.GetListing(id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, newListingResponse(quote.Listing, quote.CurrentPrice), nil
}

type alterRequest struct {
	PriceDelta string `json:"priceDelta"`
	BondDelta  string `json:"bondDelta"`
}

func (h *harbergerRoutes) alter(r *http.Request) (int, interface{}, error) {
	from, err := caller(r)
	if err != nil {
		return 0, nil, err
	}
	id, err := assetIDParam(r)
	if err != nil {
		return 0, nil, err
	}
	var req alterRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	pd, err := parseAmount("priceDelta", req.PriceDelta, true)
	if err != nil {
		return 0, nil, err
	}
	bd, err := parseAmount("bondDelta", req.BondDelta, true)
	if err != nil {
		return 0, nil, err
	}
	listing, err := h.ledger.AlterStatedPriceAndBond(from, id, pd, bd)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, newListingResponse(listing, nil), nil
}

type buyRequest struct {
	NewStatedPrice string `json:"newStatedPrice"`
	NewBond        string `json:"newBond"`
	MaxPrice       string `json:"maxPrice,omitempty"`
}

func (h *harbergerRoutes) buy(r *http.Request) (int, interface{}, error) {
	from, err := caller(r)
	if err != nil {
		return 0, nil, err
	}
	id, err := assetIDParam(r)
	if err != nil {
		return 0, nil, err
	}
	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	price, err := parseAmount("newStatedPrice", req.NewStatedPrice, false)
	if err != nil {
		return 0, nil, err
	}
	bond, err := parseAmount("newBond", req.NewBond, false)
	if err != nil {
		return 0, nil, err
	}
	var maxPrice *big.Int
	if strings.TrimSpace(req.MaxPrice) != "" {
		if maxPrice, err = parseAmount("maxPrice", req.MaxPrice, false); err != nil {
			return 0, nil, err
		}
	}
	listing, paid, err := h.ledger.BuyToken(from, id, price, bond, maxPrice)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]interface{}{
		"listing": newListingResponse(listing, nil),
		"paid":    paid.String(),
	}, nil
}

type intentRequest struct {
	PriceDelta string `json:"priceDelta"`
	BondDelta  string `json:"bondDelta"`
	Expiry     uint64 `json:"expiry"`
}

func (h *harbergerRoutes) setIntent(r *http.Request) (int, interface{}, error) {
	recipient, err := caller(r)
	if err != nil {
		return 0, nil, err
	}
	id, err := assetIDParam(r)
	if err != nil {
		return 0, nil, err
	}
	var req intentRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	pd, err := parseAmount("priceDelta", req.PriceDelta, true)
	if err != nil {
		return 0, nil, err
	}
	bd, err := parseAmount("bondDelta", req.BondDelta, true)
	if err != nil {
		return 0, nil, err
	}
	intent, err := h.ledger.SetEscrowIntent(recipient, id, pd, bd, req.Expiry)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, newIntentResponse(intent), nil
}

func (h *harbergerRoutes) cancelIntent(r *http.Request) (int, interface{}, error) {
	recipient, err := caller(r)
	if err != nil {
		return 0, nil, err
	}
	id, err := assetIDParam(r)
	if err != nil {
		return 0, nil, err
	}
	if err := h.ledger.CancelEscrowIntent(recipient, id); err != nil {
		return 0, nil, err
	}
	return http.StatusNoContent, nil, nil
}

func (h *harbergerRoutes) getIntent(r *http.Request) (int, interface{}, error) {
	id, err := assetIDParam(r)
	if err != nil {
		return 0, nil, err
	}
	account, err := accountParam(r)
	if err != nil {
		return 0, nil, err
	}
	intent, ok, err := h.ledger.GetIntent(id, account)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, harberger.ErrIntentExpiredOrMissing
	}
	return http.StatusOK, newIntentResponse(intent), nil
}

func (h *harbergerRoutes) listIntents(r *http.Request) (int, interface{}, error) {
	id, err := assetIDParam(r)
	if err != nil {
		return 0, nil, err
	}
	intents, err := h.ledger.IntentsForAsset(id)
	if err != nil {
		return 0, nil, err
	}
	out := make([]intentResponse, 0, len(intents))
	for _, intent := range intents {
		out = append(out, newIntentResponse(intent))
	}
	return http.StatusOK, map[string]interface{}{"assetId": id, "intents": out}, nil
}

type transferRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

func (h *harbergerRoutes) transfer(r *http.Request) (int, interface{}, error) {
	who, err := caller(r)
	if err != nil {
		return 0, nil, err
	}
	id, err := assetIDParam(r)
	if err != nil {
		return 0, nil, err
	}
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	from := who
	if strings.TrimSpace(req.From) != "" {
		if from, err = parseAccount("from", req.From); err != nil {
			return 0, nil, err
		}
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		return 0, nil, err
	}
	listing, err := h.ledger.TransferFrom(who, from, to, id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, newListingResponse(listing, nil), nil
}

type historyEntry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recordedAt"`
}

func (h *harbergerRoutes) assetHistory(r *http.Request) (int, interface{}, error) {
	if h.history == nil {
		return 0, nil, &apiError{status: http.StatusNotImplemented, code: "INDEXER_DISABLED", message: "event indexer not configured"}
	}
	id, err := assetIDParam(r)
	if err != nil {
		return 0, nil, err
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return 0, nil, badRequest("invalid limit %q", raw)
		}
	}
	records, err := h.history.History(r.Context(), id, limit)
	if err != nil {
		return 0, nil, err
	}
	out := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		attrs, err := rec.DecodeAttributes()
		if err != nil {
			return 0, nil, err
		}
		out = append(out, historyEntry{Sequence: rec.Sequence, Type: rec.Type, Attributes: attrs, RecordedAt: rec.CreatedAt})
	}
	return http.StatusOK, map[string]interface{}{"assetId": id, "events": out}, nil
}

type reapRequest struct {
	AssetIDs []uint64 `json:"assetIds"`
}

func (h *harbergerRoutes) reap(r *http.Request) (int, interface{}, error) {
	var req reapRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	total, err := h.ledger.ReapFeesForAssetIDs(req.AssetIDs)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]string{"total": total.String()}, nil
}

func (h *harbergerRoutes) viewRefund(r *http.Request) (int, interface{}, error) {
	account, err := accountParam(r)
	if err != nil {
		return 0, nil, err
	}
	amount, err := h.ledger.ViewBondRefund(account)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]string{"account": formatAccount(account), "amount": amount.String()}, nil
}

func (h *harbergerRoutes) withdrawRefund(r *http.Request) (int, interface{}, error) {
	account, err := caller(r)
	if err != nil {
		return 0, nil, err
	}
	amount, err := h.ledger.WithdrawBondRefund(account)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]string{"account": formatAccount(account), "amount": amount.String()}, nil
}

func (h *harbergerRoutes) tokensOfOwner(r *http.Request) (int, interface{}, error) {
	account, err := accountParam(r)
	if err != nil {
		return 0, nil, err
	}
	ids, err := h.ledger.TokensOfOwner(account)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]interface{}{"owner": formatAccount(account), "assetIds": ids}, nil
}

type approveRequest struct {
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount"`
}

// tokenApprove defaults the spender to the vault, which pulls bonds and
// purchase payments.
func (h *harbergerRoutes) tokenApprove(r *http.Request) (int, interface{}, error) {
	owner, err := caller(r)
	if err != nil {
		return 0, nil, err
	}
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	spender := h.ledger.Params().Vault
	if strings.TrimSpace(req.Spender) != "" {
		if spender, err = parseAccount("spender", req.Spender); err != nil {
			return 0, nil, err
		}
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		return 0, nil, err
	}
	if err := h.ledger.TokenApprove(owner, spender, amount); err != nil {
		return 0, nil, badRequest("%v", err)
	}
	allowance, err := h.ledger.TokenAllowance(owner, spender)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]string{
		"owner":     formatAccount(owner),
		"spender":   crypto.AddressFromRaw(crypto.ModulePrefix, spender).String(),
		"allowance": allowance.String(),
	}, nil
}

func (h *harbergerRoutes) tokenBalance(r *http.Request) (int, interface{}, error) {
	account, err := accountParam(r)
	if err != nil {
		return 0, nil, err
	}
	balance, err := h.ledger.TokenBalance(account)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]string{"account": formatAccount(account), "balance": balance.String()}, nil
}

type feeTotalsResponse struct {
	Wallet string `json:"wallet"`
	Gross  string `json:"gross"`
	Fee    string `json:"fee"`
	Net    string `json:"net"`
}

func (h *harbergerRoutes) feeTotals(r *http.Request) (int, interface{}, error) {
	totals, err := h.ledger.FeeTotals()
	if err != nil {
		return 0, nil, err
	}
	out := make([]feeTotalsResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, feeTotalsResponse{
			Wallet: formatAccount(t.Wallet),
			Gross:  amountString(t.Gross),
			Fee:    amountString(t.Fee),
			Net:    amountString(t.Net),
		})
	}
	return http.StatusOK, map[string]interface{}{"totals": out}, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (h *harbergerRoutes) vaultAudit(r *http.Request) (int, interface{}, error) {
	audit, err := h.ledger.AuditVault()
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]interface{}{
		"vault":       crypto.AddressFromRaw(crypto.ModulePrefix, h.ledger.Params().Vault).String(),
		"balance":     audit.Balance.String(),
		"bonds":       audit.Bonds.String(),
		"pendingFees": audit.PendingFees.String(),
		"refunds":     audit.Refunds.String(),
		"solvent":     audit.Solvent(),
	}, nil
}
