package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	flag "github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gotsol/crypto"
)

const (
	keygenCommand  = "keygen"
	callCommand    = "call"
	defaultRPC     = "http://127.0.0.1:8899/rpc"
	defaultKeypair = "./admin.json"
	requestTimeout = 30 * time.Second
)

// readMethods take a plain parameter object instead of a signed envelope.
var readMethods = map[string]struct{}{
	"merchant_get":             {},
	"merchant_getRefund":       {},
	"merchant_deriveAddresses": {},
	"merchant_listEvents":      {},
	"ledger_balance":           {},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case keygenCommand:
		err = runKeygen(os.Args[2:])
	case callCommand:
		err = runCall(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  gotsolctl keygen [--out PATH] [--force]
  gotsolctl call [--rpc URL] [--keypair PATH] [--sponsored] [--token JWT] METHOD [key=value ...]
`)
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet(keygenCommand, flag.ContinueOnError)
	out := fs.String("out", defaultKeypair, "Output path for the keypair file")
	force := fs.Bool("force", false, "Overwrite an existing keypair file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", *out)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveKeypair(*out, key); err != nil {
		return err
	}
	fmt.Println(key.PublicKey().String())
	return nil
}

func runCall(args []string) error {
	fs := flag.NewFlagSet(callCommand, flag.ContinueOnError)
	endpoint := fs.String("rpc", defaultRPC, "JSON-RPC endpoint")
	keypair := fs.String("keypair", defaultKeypair, "Keypair used to sign mutating calls")
	sponsored := fs.Bool("sponsored", false, "Ask the configured fee payer to fund created records")
	token := fs.String("token", "", "Operator bearer token for restricted reads")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return errors.New("method required")
	}
	method, kv := rest[0], rest[1:]

	var key solana.PrivateKey
	if _, read := readMethods[method]; !read {
		loaded, err := crypto.LoadKeypair(*keypair)
		if err != nil {
			return fmt.Errorf("load keypair: %w", err)
		}
		key = loaded
	}
	body, err := buildRequest(method, kv, key, *sponsored, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}
	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	fmt.Println(pretty.String())
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc returned %s", resp.Status)
	}
	return nil
}

// parseArgs turns key=value pairs into a parameter object. Booleans and the
// paging fields are typed; everything else is sent as a string.
func parseArgs(kv []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(kv))
	for _, pair := range kv {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		switch key {
		case "feeEligible":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = b
		case "after", "limit":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = n
		default:
			out[key] = value
		}
	}
	return out, nil
}

// buildRequest encodes a JSON-RPC request. Mutating methods are wrapped in an
// envelope signed by key.
func buildRequest(method string, kv []string, key solana.PrivateKey, sponsored bool, now time.Time) ([]byte, error) {
	params, err := parseArgs(kv)
	if err != nil {
		return nil, err
	}
	var param json.RawMessage
	if _, read := readMethods[method]; read {
		if param, err = json.Marshal(params); err != nil {
			return nil, err
		}
	} else {
		if len(key) == 0 {
			return nil, errors.New("keypair required for signed methods")
		}
		params["issuedAt"] = now.Unix()
		if sponsored {
			params["sponsored"] = true
		}
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		sig, err := crypto.SignRequest(key, method, payload)
		if err != nil {
			return nil, err
		}
		param, err = json.Marshal(map[string]interface{}{
			"caller":    key.PublicKey().String(),
			"signature": sig.String(),
			"payload":   json.RawMessage(payload),
		})
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []json.RawMessage{param},
	})
}
