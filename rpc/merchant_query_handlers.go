package rpc

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/gagliardetto/solana-go"

	"gotsol/core/state"
	"gotsol/native/merchant"
	"gotsol/storage/eventlog"
)

type merchantGetParams struct {
	Address    string `json:"address,omitempty"`
	Owner      string `json:"owner,omitempty"`
	EntityName string `json:"entityName,omitempty"`
}

type refundGetParams struct {
	OriginalTxSig string `json:"originalTxSig"`
}

type deriveParams struct {
	Owner         string `json:"owner"`
	EntityName    string `json:"entityName"`
	Mint          string `json:"mint,omitempty"`
	OriginalTxSig string `json:"originalTxSig,omitempty"`
}

type derivedAddresses struct {
	Merchant   string `json:"merchant"`
	Vault      string `json:"vault"`
	Compliance string `json:"compliance,omitempty"`
	Custody    string `json:"custody,omitempty"`
	Refund     string `json:"refund,omitempty"`
}

type listEventsParams struct {
	Type     string `json:"type,omitempty"`
	Merchant string `json:"merchant,omitempty"`
	After    int64  `json:"after,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type balanceParams struct {
	Address string `json:"address"`
	Mint    string `json:"mint,omitempty"`
}

// decodeQuery reads the single object parameter of a read method.
func decodeQuery(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single parameter object"}
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params", Data: err.Error()}
	}
	return nil
}

func (s *Server) handleGet(_ context.Context, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var p merchantGetParams
	if err := decodeQuery(req, &p); err != nil {
		return nil, err
	}
	var out merchantJSON
	err := s.processor.View(func(e *merchant.Engine, _ *state.Manager) error {
		if p.Address != "" {
			addr, err := parseKey("address", p.Address)
			if err != nil {
				return err
			}
			m, err := e.Merchant(addr)
			if err != nil {
				return err
			}
			out = formatMerchant(e.Params().ProgramID, addr, m)
			return nil
		}
		owner, err := parseKey("owner", p.Owner)
		if err != nil {
			return err
		}
		addr, m, err := e.MerchantByName(owner, p.EntityName)
		if err != nil {
			return err
		}
		out = formatMerchant(e.Params().ProgramID, addr, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleGetRefund(_ context.Context, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var p refundGetParams
	if err := decodeQuery(req, &p); err != nil {
		return nil, err
	}
	var out refundJSON
	err := s.processor.View(func(e *merchant.Engine, _ *state.Manager) error {
		rec, err := e.RefundRecord(p.OriginalTxSig)
		if err != nil {
			return err
		}
		out = formatRefund(e.Params().ProgramID, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleDeriveAddresses(_ context.Context, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var p deriveParams
	if err := decodeQuery(req, &p); err != nil {
		return nil, err
	}
	owner, err := parseKey("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	var mint solana.PublicKey
	if p.Mint != "" {
		if mint, err = parseKey("mint", p.Mint); err != nil {
			return nil, err
		}
	}
	var out derivedAddresses
	err = s.processor.View(func(e *merchant.Engine, _ *state.Manager) error {
		programID := e.Params().ProgramID
		addr, _, err := merchant.MerchantAddress(programID, owner, p.EntityName)
		if err != nil {
			return err
		}
		vault, _, err := merchant.VaultAddress(programID, addr)
		if err != nil {
			return err
		}
		out = derivedAddresses{Merchant: addr.String(), Vault: vault.String()}
		if !mint.IsZero() {
			custody, err := merchant.CustodyTokenAddress(addr, mint)
			if err != nil {
				return err
			}
			compliance, _, err := merchant.ComplianceAddress(programID, addr, mint)
			if err != nil {
				return err
			}
			out.Custody = custody.String()
			out.Compliance = compliance.String()
		}
		if p.OriginalTxSig != "" {
			refund, _, err := merchant.RefundAddress(programID, p.OriginalTxSig)
			if err != nil {
				return err
			}
			out.Refund = refund.String()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleListEvents(ctx context.Context, req *RPCRequest, _ *signedCall) (interface{}, error) {
	if s.events == nil {
		return nil, &RPCError{Code: codeServerError, Message: "event log unavailable"}
	}
	var p listEventsParams
	if err := decodeQuery(req, &p); err != nil {
		return nil, err
	}
	if p.Merchant != "" {
		if _, err := parseKey("merchant", p.Merchant); err != nil {
			return nil, err
		}
	}
	if p.After < 0 || p.Limit < 0 {
		return nil, invalidParam("paging", "after and limit must not be negative")
	}
	entries, err := s.events.List(ctx, eventlog.Filter{
		Type:     p.Type,
		Merchant: p.Merchant,
		After:    p.After,
		Limit:    p.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]eventJSON, 0, len(entries))
	for _, entry := range entries {
		out = append(out, formatEntry(entry))
	}
	return out, nil
}

func (s *Server) handleBalance(_ context.Context, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var p balanceParams
	if err := decodeQuery(req, &p); err != nil {
		return nil, err
	}
	addr, err := parseKey("address", p.Address)
	if err != nil {
		return nil, err
	}
	var mint solana.PublicKey
	if p.Mint != "" {
		if mint, err = parseKey("mint", p.Mint); err != nil {
			return nil, err
		}
	}
	out := balanceJSON{Address: addr.String()}
	err = s.processor.View(func(_ *merchant.Engine, m *state.Manager) error {
		if mint.IsZero() {
			lamports, err := m.LamportBalance(addr)
			if err != nil {
				return err
			}
			out.Lamports = formatAmount(lamports)
			return nil
		}
		ata, _, err := solana.FindAssociatedTokenAddress(addr, mint)
		if err != nil {
			return err
		}
		amount, err := m.TokenBalance(ata)
		if err != nil {
			return err
		}
		out.Mint = mint.String()
		out.Amount = formatAmount(amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
