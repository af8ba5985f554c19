package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
)

// Default lookup client parameters.
const (
	lookupTimeout    = 30 * time.Second
	lookupMaxRetries = 3
	lookupRetryDelay = 1 * time.Second
	lookupMaxDelay   = 10 * time.Second
)

// mintAddressLen is the decoded length of a valid mint address.
const mintAddressLen = 32

// TxLookup resolves a transaction signature into enriched transfer
// data via a JSON-RPC endpoint. It is the secondary lookup behind the
// log subscription: the subscription carries only signatures and log
// lines, amounts live in the transaction's token balance diff.
type TxLookup struct {
	endpoint  string
	http      *http.Client
	requestID atomic.Uint64
}

// NewTxLookup creates a lookup client for the given JSON-RPC endpoint.
func NewTxLookup(endpoint string) *TxLookup {
	return &TxLookup{
		endpoint: endpoint,
		http:     &http.Client{Timeout: lookupTimeout},
	}
}

// TokenDelta is the net balance change of one mint within a transaction,
// in whole-token units.
type TokenDelta struct {
	Mint     string
	Amount   float64 // signed, positive means the pool received tokens
	Decimals int
}

// TxDetail is the enrichment result for one signature.
type TxDetail struct {
	Signature string
	BlockTime int64
	Deltas    []TokenDelta
}

// ValidMintAddress reports whether s decodes to a 32-byte address.
func ValidMintAddress(s string) bool {
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == mintAddressLen
}

// GetTransaction resolves one signature. A nil result with nil error
// means the node does not know the transaction yet.
func (l *TxLookup) GetTransaction(ctx context.Context, signature string) (*TxDetail, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result txResult
	if err := l.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result.Slot == 0 && result.BlockTime == nil {
		return nil, nil
	}

	detail := &TxDetail{Signature: signature}
	if result.BlockTime != nil {
		detail.BlockTime = *result.BlockTime
	}
	if result.Meta != nil {
		detail.Deltas = balanceDeltas(result.Meta.PreTokenBalances, result.Meta.PostTokenBalances)
	}
	return detail, nil
}

// balanceDeltas folds the pre/post token balance lists into per-mint net
// changes. Mints that fail address validation are dropped.
func balanceDeltas(pre, post []tokenBalance) []TokenDelta {
	type key struct {
		account int
		mint    string
	}

	amounts := make(map[key]float64)
	decimals := make(map[string]int)

	for _, b := range pre {
		amounts[key{b.AccountIndex, b.Mint}] -= b.UITokenAmount.uiAmount()
		decimals[b.Mint] = b.UITokenAmount.Decimals
	}
	for _, b := range post {
		amounts[key{b.AccountIndex, b.Mint}] += b.UITokenAmount.uiAmount()
		decimals[b.Mint] = b.UITokenAmount.Decimals
	}

	// A transfer shows up twice per mint, once on each account, so the
	// gross moved amount is half the sum of absolute per-account deltas.
	perMint := make(map[string]float64)
	for k, amt := range amounts {
		if amt == 0 {
			continue
		}
		perMint[k.mint] += math.Abs(amt)
	}

	var deltas []TokenDelta
	for mint, amt := range perMint {
		if amt == 0 || !ValidMintAddress(mint) {
			continue
		}
		deltas = append(deltas, TokenDelta{
			Mint:     mint,
			Amount:   amt / 2,
			Decimals: decimals[mint],
		})
	}
	return deltas
}

// call performs one JSON-RPC request with bounded retries and
// exponential backoff. RPC-level errors are terminal.
func (l *TxLookup) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      l.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := lookupRetryDelay
	var lastErr error

	for attempt := 0; attempt <= lookupMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > lookupMaxDelay {
				delay = lookupMaxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := l.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}
		if rpcResp.Error != nil {
			return rpcResp.Error
		}
		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// JSON-RPC wire types.

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type txResult struct {
	Slot      int64   `json:"slot"`
	BlockTime *int64  `json:"blockTime"`
	Meta      *txMeta `json:"meta"`
}

type txMeta struct {
	Err               interface{}    `json:"err"`
	PreTokenBalances  []tokenBalance `json:"preTokenBalances"`
	PostTokenBalances []tokenBalance `json:"postTokenBalances"`
}

type tokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	UITokenAmount uiTokenAmount `json:"uiTokenAmount"`
}

type uiTokenAmount struct {
	UIAmount *float64 `json:"uiAmount"`
	Decimals int      `json:"decimals"`
}

func (a uiTokenAmount) uiAmount() float64 {
	if a.UIAmount == nil {
		return 0
	}
	return *a.UIAmount
}
