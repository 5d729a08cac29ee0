package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"gotsol/crypto"
)

type wireRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type wireEnvelope struct {
	Caller    string          `json:"caller"`
	Signature string          `json:"signature"`
	Payload   json.RawMessage `json:"payload"`
}

func TestBuildRequestSignsMutations(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	body, err := buildRequest("merchant_setStatus", []string{"merchant=abc", "feeEligible=true"}, key, true, now)
	require.NoError(t, err)

	var req wireRequest
	require.NoError(t, json.Unmarshal(body, &req))
	require.Equal(t, "merchant_setStatus", req.Method)
	require.Len(t, req.Params, 1)

	var env wireEnvelope
	require.NoError(t, json.Unmarshal(req.Params[0], &env))
	require.Equal(t, key.PublicKey().String(), env.Caller)
	sig, err := solana.SignatureFromBase58(env.Signature)
	require.NoError(t, err)
	require.NoError(t, crypto.VerifyRequest(key.PublicKey(), "merchant_setStatus", env.Payload, sig))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Equal(t, true, payload["feeEligible"])
	require.Equal(t, true, payload["sponsored"])
	require.Equal(t, float64(1_700_000_000), payload["issuedAt"])
}

func TestBuildRequestReads(t *testing.T) {
	body, err := buildRequest("merchant_listEvents", []string{"limit=5", "type=merchant.created"}, nil, false, time.Now())
	require.NoError(t, err)
	var req wireRequest
	require.NoError(t, json.Unmarshal(body, &req))
	var params map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Params[0], &params))
	require.Equal(t, float64(5), params["limit"])
	require.NotContains(t, params, "issuedAt")

	_, err = buildRequest("merchant_close", []string{"merchant=abc"}, nil, false, time.Now())
	require.Error(t, err)
}

func TestParseArgsRejectsMalformedPairs(t *testing.T) {
	_, err := parseArgs([]string{"merchant"})
	require.Error(t, err)
	_, err = parseArgs([]string{"feeEligible=maybe"})
	require.Error(t, err)
	_, err = parseArgs([]string{"limit=ten"})
	require.Error(t, err)
}
