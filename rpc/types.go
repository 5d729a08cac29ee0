package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"

	"gotsol/native/common"
	"gotsol/native/merchant"
	"gotsol/storage/eventlog"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeDuplicateTx    = -32010
	codeRateLimited    = -32020
)

const (
	codeMerchantInvalid     = -32031
	codeMerchantForbidden   = -32032
	codeMerchantConflict    = -32033
	codeMerchantUnavailable = -32034
	codeModulePaused        = -32035
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// merchantErrorData is attached to every error raised by the merchant engine
// so clients can switch on the stable numeric code.
type merchantErrorData struct {
	Code   uint32 `json:"code"`
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

// classifyError maps an engine failure onto an HTTP status and JSON-RPC code.
func classifyError(err error) (int, int, string, interface{}) {
	if errors.Is(err, common.ErrModulePaused) {
		return http.StatusServiceUnavailable, codeModulePaused, "module_paused", err.Error()
	}
	code, name, class, ok := merchant.Code(err)
	if !ok {
		return http.StatusInternalServerError, codeServerError, "internal_error", nil
	}
	data := merchantErrorData{Code: code, Name: name, Detail: err.Error()}
	switch class {
	case merchant.ClassAuthorization:
		return http.StatusForbidden, codeMerchantForbidden, "forbidden", data
	case merchant.ClassBalance, merchant.ClassDuplicate:
		return http.StatusConflict, codeMerchantConflict, "conflict", data
	case merchant.ClassConfiguration:
		return http.StatusUnprocessableEntity, codeMerchantUnavailable, "unavailable", data
	default:
		if errors.Is(err, merchant.ErrMerchantNotFound) || errors.Is(err, merchant.ErrRefundNotFound) {
			return http.StatusNotFound, codeMerchantInvalid, "not_found", data
		}
		return http.StatusBadRequest, codeMerchantInvalid, "invalid", data
	}
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) int {
	status, code, message, data := classifyError(err)
	writeError(w, status, id, code, message, data)
	return code
}

type merchantJSON struct {
	Address        string `json:"address"`
	Owner          string `json:"owner"`
	EntityName     string `json:"entityName"`
	FeeEligible    bool   `json:"feeEligible"`
	TotalWithdrawn string `json:"totalWithdrawn"`
	TotalRefunded  string `json:"totalRefunded"`
	RefundLimit    string `json:"refundLimit"`
	Vault          string `json:"vault"`
	CreatedAt      int64  `json:"createdAt"`
}

func formatMerchant(programID, addr solana.PublicKey, m *merchant.Merchant) merchantJSON {
	out := merchantJSON{
		Address:        addr.String(),
		Owner:          m.Owner.String(),
		EntityName:     m.EntityName,
		FeeEligible:    m.FeeEligible,
		TotalWithdrawn: formatAmount(m.TotalWithdrawn),
		TotalRefunded:  formatAmount(m.TotalRefunded),
		RefundLimit:    formatAmount(m.RefundLimit),
		CreatedAt:      m.CreatedAt,
	}
	if vault, _, err := merchant.VaultAddress(programID, addr); err == nil {
		out.Vault = vault.String()
	}
	return out
}

type refundJSON struct {
	Address       string `json:"address,omitempty"`
	OriginalTxSig string `json:"originalTxSig"`
	Merchant      string `json:"merchant"`
	Recipient     string `json:"recipient"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	CreatedAt     int64  `json:"createdAt"`
}

func formatRefund(programID solana.PublicKey, rec *merchant.RefundRecord) refundJSON {
	out := refundJSON{
		OriginalTxSig: rec.OriginalTxSig,
		Merchant:      rec.Merchant.String(),
		Recipient:     rec.Recipient.String(),
		Asset:         merchant.AssetLabel(rec.Asset),
		Amount:        formatAmount(rec.Amount),
		CreatedAt:     rec.CreatedAt,
	}
	if addr, _, err := merchant.RefundAddress(programID, rec.OriginalTxSig); err == nil {
		out.Address = addr.String()
	}
	return out
}

type legJSON struct {
	Role        string `json:"role"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

type receiptJSON struct {
	Merchant  string    `json:"merchant"`
	Asset     string    `json:"asset"`
	Gross     string    `json:"gross"`
	Legs      []legJSON `json:"legs"`
	Remainder string    `json:"remainder"`
}

func formatReceipt(r *merchant.Receipt) receiptJSON {
	legs := make([]legJSON, 0, len(r.Legs))
	for _, leg := range r.Legs {
		legs = append(legs, legJSON{
			Role:        string(leg.Role),
			Destination: leg.Destination.String(),
			Amount:      formatAmount(leg.Amount),
		})
	}
	return receiptJSON{
		Merchant:  r.Merchant.String(),
		Asset:     merchant.AssetLabel(r.Asset),
		Gross:     formatAmount(r.Gross),
		Legs:      legs,
		Remainder: formatAmount(r.Remainder),
	}
}

type eventJSON struct {
	ID         string            `json:"id"`
	Sequence   int64             `json:"sequence"`
	Type       string            `json:"type"`
	Merchant   string            `json:"merchant,omitempty"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt string            `json:"recordedAt"`
}

func formatEntry(e eventlog.Entry) eventJSON {
	return eventJSON{
		ID:         e.ID,
		Sequence:   e.Sequence,
		Type:       e.Type,
		Merchant:   e.Merchant,
		Attributes: e.Attributes,
		RecordedAt: e.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
}

type balanceJSON struct {
	Address  string `json:"address"`
	Mint     string `json:"mint,omitempty"`
	Lamports string `json:"lamports,omitempty"`
	Amount   string `json:"amount,omitempty"`
}

func formatAmount(v uint64) string { return strconv.FormatUint(v, 10) }

func parseAmount(raw string) (uint64, error) {
	if raw == "" {
		return 0, errors.New("amount required")
	}
	return strconv.ParseUint(raw, 10, 64)
}
