package rpc

import (
	"context"
	"strings"

	"github.com/gagliardetto/solana-go"

	"gotsol/native/merchant"
)

type createParams struct {
	payloadHeader
	EntityName  string `json:"entityName"`
	FeeEligible *bool  `json:"feeEligible,omitempty"`
}

type merchantParams struct {
	payloadHeader
	Merchant string `json:"merchant"`
}

type withdrawTokenParams struct {
	payloadHeader
	Merchant string `json:"merchant"`
	Mint     string `json:"mint"`
	Amount   string `json:"amount"`
}

type withdrawNativeParams struct {
	payloadHeader
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"`
}

type payComplianceParams struct {
	payloadHeader
	Merchant string `json:"merchant"`
	Mint     string `json:"mint"`
}

type refundParams struct {
	payloadHeader
	Merchant      string `json:"merchant"`
	Mint          string `json:"mint,omitempty"`
	OriginalTxSig string `json:"originalTxSig"`
	Amount        string `json:"amount"`
	Recipient     string `json:"recipient"`
}

type closeRefundParams struct {
	payloadHeader
	OriginalTxSig string `json:"originalTxSig"`
}

type setStatusParams struct {
	payloadHeader
	Merchant    string `json:"merchant"`
	FeeEligible bool   `json:"feeEligible"`
}

type setRefundLimitParams struct {
	payloadHeader
	Merchant string `json:"merchant"`
	Limit    string `json:"limit"`
}

type payParams struct {
	payloadHeader
	Merchant string `json:"merchant"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
}

type reclaimResult struct {
	Reclaimed string `json:"reclaimed"`
}

type paymentResult struct {
	Merchant string `json:"merchant"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
}

func invalidParam(field, detail string) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: "invalid " + field, Data: detail}
}

func parseKey(field, raw string) (solana.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return solana.PublicKey{}, invalidParam(field, "required")
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, invalidParam(field, err.Error())
	}
	return key, nil
}

// parseAsset accepts "native" (or empty) for lamports and a mint address
// otherwise.
func parseAsset(raw string) (solana.PublicKey, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "native":
		return merchant.NativeAsset, nil
	}
	return parseKey("asset", raw)
}

func parseAmountParam(field, raw string) (uint64, error) {
	amount, err := parseAmount(strings.TrimSpace(raw))
	if err != nil {
		return 0, invalidParam(field, err.Error())
	}
	return amount, nil
}

// apply runs fn as one state transition and returns its result.
func (s *Server) apply(ctx context.Context, operation string, fn func(*merchant.Engine) (interface{}, error)) (interface{}, error) {
	var out interface{}
	_, err := s.processor.Apply(ctx, operation, func(e *merchant.Engine) error {
		var err error
		out, err = fn(e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleCreate(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p createParams
	if err := call.decode(&p); err != nil {
		return nil, err
	}
	return s.apply(ctx, "create_merchant", func(e *merchant.Engine) (interface{}, error) {
		addr, m, err := e.CreateMerchant(call.Caller, p.EntityName, p.FeeEligible)
		if err != nil {
			return nil, err
		}
		return formatMerchant(e.Params().ProgramID, addr, m), nil
	})
}

func (s *Server) handleClose(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p merchantParams
	if err := call.decode(&p); err != nil {
		return nil, err
	}
	addr, err := parseKey("merchant", p.Merchant)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "close_merchant", func(e *merchant.Engine) (interface{}, error) {
		reclaimed, err := e.CloseMerchant(call.Caller, addr)
		if err != nil {
			return nil, err
		}
		return reclaimResult{Reclaimed: formatAmount(reclaimed)}, nil
	})
}

func (s *Server) handleWithdrawToken(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p withdrawTokenParams
	if err := call.decode(&p); err != nil {
		return nil, err
	}
	addr, err := parseKey("merchant", p.Merchant)
	if err != nil {
		return nil, err
	}
	mint, err := parseKey("mint", p.Mint)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmountParam("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "withdraw_token", func(e *merchant.Engine) (interface{}, error) {
		receipt, err := e.WithdrawToken(call.Caller, addr, mint, amount)
		if err != nil {
			return nil, err
		}
		return formatReceipt(receipt), nil
	})
}

func (s *Server) handleWithdrawNative(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p withdrawNativeParams
	if err := call.decode(&p); err != nil {
		return nil, err
	}
	addr, err := parseKey("merchant", p.Merchant)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmountParam("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "withdraw_native", func(e *merchant.Engine) (interface{}, error) {
		receipt, err := e.WithdrawNative(call.Caller, addr, amount)
		if err != nil {
			return nil, err
		}
		return formatReceipt(receipt), nil
	})
}

func (s *Server) handlePayCompliance(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p payComplianceParams
	if err := call.decode(&p); err != nil {
		return nil, err
	}
	addr, err := parseKey("merchant", p.Merchant)
	if err != nil {
		return nil, err
	}
	mint, err := parseKey("mint", p.Mint)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "pay_compliance", func(e *merchant.Engine) (interface{}, error) {
		paid, err := e.PayCompliance(call.Caller, addr, mint)
		if err != nil {
			return nil, err
		}
		return paymentResult{Merchant: addr.String(), Asset: mint.String(), Amount: formatAmount(paid)}, nil
	})
}

func (s *Server) parseRefund(call *signedCall, needMint bool) (*refundParams, solana.PublicKey, solana.PublicKey, solana.PublicKey, uint64, error) {
	var p refundParams
	var zero solana.PublicKey
	if err := call.decode(&p); err != nil {
		return nil, zero, zero, zero, 0, err
	}
	addr, err := parseKey("merchant", p.Merchant)
	if err != nil {
		return nil, zero, zero, zero, 0, err
	}
	mint := merchant.NativeAsset
	if needMint {
		if mint, err = parseKey("mint", p.Mint); err != nil {
			return nil, zero, zero, zero, 0, err
		}
	} else if p.Mint != "" {
		return nil, zero, zero, zero, 0, invalidParam("mint", "not allowed for native refunds")
	}
	recipient, err := parseKey("recipient", p.Recipient)
	if err != nil {
		return nil, zero, zero, zero, 0, err
	}
	amount, err := parseAmountParam("amount", p.Amount)
	if err != nil {
		return nil, zero, zero, zero, 0, err
	}
	return &p, addr, mint, recipient, amount, nil
}

func (s *Server) handleRefundToken(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	p, addr, mint, recipient, amount, err := s.parseRefund(call, true)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "refund_token", func(e *merchant.Engine) (interface{}, error) {
		rec, err := e.RefundToken(call.Caller, addr, mint, p.OriginalTxSig, amount, recipient)
		if err != nil {
			return nil, err
		}
		return formatRefund(e.Params().ProgramID, rec), nil
	})
}

func (s *Server) handleRefundNative(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	p, addr, _, recipient, amount, err := s.parseRefund(call, false)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "refund_native", func(e *merchant.Engine) (interface{}, error) {
		rec, err := e.RefundNative(call.Caller, addr, p.OriginalTxSig, amount, recipient)
		if err != nil {
			return nil, err
		}
		return formatRefund(e.Params().ProgramID, rec), nil
	})
}

func (s *Server) handleCloseRefund(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p closeRefundParams
	if err := call.decode(&p); err != nil {
		return nil, err
	}
	return s.apply(ctx, "close_refund", func(e *merchant.Engine) (interface{}, error) {
		reclaimed, err := e.CloseRefund(call.Caller, p.OriginalTxSig)
		if err != nil {
			return nil, err
		}
		return reclaimResult{Reclaimed: formatAmount(reclaimed)}, nil
	})
}

func (s *Server) handleSetStatus(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p setStatusParams
	if err := call.decode(&p); err != nil {
		return nil, err
	}
	addr, err := parseKey("merchant", p.Merchant)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "set_status", func(e *merchant.Engine) (interface{}, error) {
		m, err := e.SetStatus(call.Caller, addr, p.FeeEligible)
		if err != nil {
			return nil, err
		}
		return formatMerchant(e.Params().ProgramID, addr, m), nil
	})
}

func (s *Server) handleSetRefundLimit(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p setRefundLimitParams
	if err := call.decode(&p); err != nil {
		return nil, err
	}
	addr, err := parseKey("merchant", p.Merchant)
	if err != nil {
		return nil, err
	}
	limit, err := parseAmountParam("limit", p.Limit)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "set_refund_limit", func(e *merchant.Engine) (interface{}, error) {
		m, err := e.SetRefundLimit(call.Caller, addr, limit)
		if err != nil {
			return nil, err
		}
		return formatMerchant(e.Params().ProgramID, addr, m), nil
	})
}

func (s *Server) handlePay(ctx context.Context, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p payParams
	if err := call.decode(&p); err != nil {
		return nil, err
	}
	addr, err := parseKey("merchant", p.Merchant)
	if err != nil {
		return nil, err
	}
	asset, err := parseAsset(p.Asset)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmountParam("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "pay", func(e *merchant.Engine) (interface{}, error) {
		if err := e.Pay(call.Caller, addr, asset, amount); err != nil {
			return nil, err
		}
		return paymentResult{Merchant: addr.String(), Asset: merchant.AssetLabel(asset), Amount: formatAmount(amount)}, nil
	})
}
