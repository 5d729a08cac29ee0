package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"gotsol/crypto"
	"gotsol/native/merchant"
)

// signedEnvelope carries a mutating call. Payload is the exact JSON the caller
// signed; it is decoded only after the signature verifies.
type signedEnvelope struct {
	Caller    string          `json:"caller"`
	Signature string          `json:"signature"`
	Payload   json.RawMessage `json:"payload"`
}

// payloadHeader holds the fields every signed payload shares.
type payloadHeader struct {
	IssuedAt  int64 `json:"issuedAt"`
	Sponsored bool  `json:"sponsored,omitempty"`
}

// signedCall is an authenticated request ready for the engine.
type signedCall struct {
	Caller    merchant.Caller
	Signature string
	Payload   json.RawMessage
}

// decode unmarshals the payload into out, rejecting unknown fields.
func (c *signedCall) decode(out interface{}) *RPCError {
	dec := json.NewDecoder(bytes.NewReader(c.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid payload", Data: err.Error()}
	}
	return nil
}

// replayCache remembers verified signatures until the request they signed
// can no longer pass the issuedAt check. Expired entries are swept at most
// once per sweep interval.
type replayCache struct {
	mu        sync.Mutex
	window    time.Duration
	expires   map[string]time.Time
	nextSweep time.Time
}

func newReplayCache(window time.Duration) *replayCache {
	return &replayCache{window: window, expires: make(map[string]time.Time)}
}

// remember records sig, valid until expiry, and reports whether it was fresh.
func (c *replayCache) remember(sig string, expiry, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !now.Before(c.nextSweep) {
		for s, until := range c.expires {
			if now.After(until) {
				delete(c.expires, s)
			}
		}
		c.nextSweep = now.Add(c.window)
	}
	if until, exists := c.expires[sig]; exists && !now.After(until) {
		return false
	}
	c.expires[sig] = expiry
	return true
}

func (c *replayCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.expires)
}

// authenticate verifies the envelope of a mutating request. The returned
// status is the HTTP status to use when err is non-nil.
func (s *Server) authenticate(method string, req *RPCRequest) (*signedCall, int, *RPCError) {
	if len(req.Params) != 1 {
		return nil, http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: "expected a single signed envelope"}
	}
	var env signedEnvelope
	if err := json.Unmarshal(req.Params[0], &env); err != nil {
		return nil, http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: "invalid envelope", Data: err.Error()}
	}
	caller, err := crypto.ParsePublicKey(env.Caller)
	if err != nil {
		return nil, http.StatusUnauthorized, &RPCError{Code: codeUnauthorized, Message: "invalid caller", Data: err.Error()}
	}
	sig, err := solana.SignatureFromBase58(env.Signature)
	if err != nil {
		return nil, http.StatusUnauthorized, &RPCError{Code: codeUnauthorized, Message: "invalid signature encoding"}
	}
	if len(bytes.TrimSpace(env.Payload)) == 0 {
		return nil, http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: "payload required"}
	}
	if err := crypto.VerifyRequest(caller, method, env.Payload, sig); err != nil {
		return nil, http.StatusUnauthorized, &RPCError{Code: codeUnauthorized, Message: "signature verification failed"}
	}

	var header payloadHeader
	if err := json.Unmarshal(env.Payload, &header); err != nil {
		return nil, http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: "invalid payload", Data: err.Error()}
	}
	now := s.clock.Now()
	issued := time.Unix(header.IssuedAt, 0)
	if header.IssuedAt <= 0 || issued.After(now.Add(s.cfg.ReplayWindow)) || now.Sub(issued) > s.cfg.ReplayWindow {
		return nil, http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: "issuedAt outside replay window"}
	}
	// The request stays acceptable until issuedAt+window, so the signature
	// must be remembered at least that long.
	if !s.replay.remember(sig.String(), issued.Add(s.cfg.ReplayWindow), now) {
		return nil, http.StatusConflict, &RPCError{Code: codeDuplicateTx, Message: "request already processed"}
	}
	return &signedCall{
		Caller:    merchant.Caller{Key: caller, Sponsored: header.Sponsored},
		Signature: sig.String(),
		Payload:   env.Payload,
	}, http.StatusOK, nil
}
