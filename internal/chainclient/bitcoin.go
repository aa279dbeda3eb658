// Package chainclient implements the external collaborators the indexer
// depends on but does not own: the Bitcoin Core JSON-RPC node, the Electrs
// HTTP API, and the Ord content server.
package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zhiying8710/orc20-indexer/pkg/helpers"
)

// BitcoinBlockHeader is the subset of `getblockheader` fields the producer
// needs for reorg detection and event timestamps.
type BitcoinBlockHeader struct {
	Hash              string `json:"hash"`
	Height            int64  `json:"height"`
	PreviousBlockHash string `json:"previousblockhash"`
	Time              int64  `json:"time"`
	NTx               int64  `json:"nTx"`
}

// BitcoinClient is a minimal Bitcoin Core JSON-RPC client, covering four
// methods: getblockcount, getblockhash, getblockheader, and
// getrawtransaction. Each call makes a single request with no retry.
type BitcoinClient struct {
	rpcURL     string
	rpcUser    string
	rpcPass    string
	httpClient *http.Client
	requestID  atomic.Uint64
}

// NewBitcoinClient creates a new Bitcoin Core JSON-RPC client.
func NewBitcoinClient(rpcURL, user, pass string) *BitcoinClient {
	return &BitcoinClient{
		rpcURL:  rpcURL,
		rpcUser: user,
		rpcPass: pass,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetBlockCount returns the current chain tip height.
func (b *BitcoinClient) GetBlockCount(ctx context.Context) (int64, error) {
	result, err := b.call(ctx, "getblockcount", []interface{}{})
	if err != nil {
		return 0, err
	}
	var height int64
	if err := json.Unmarshal(result, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// GetBlockHash returns the block hash at the given height, or an error if
// the height is not yet known to the node (caller should treat this as
// "not yet mined" and retry later).
func (b *BitcoinClient) GetBlockHash(ctx context.Context, height int64) (string, error) {
	result, err := b.call(ctx, "getblockhash", []interface{}{height})
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// GetBlockHeader fetches the block header (verbosity=1 style fields) for a
// given block hash.
func (b *BitcoinClient) GetBlockHeader(ctx context.Context, hash string) (*BitcoinBlockHeader, error) {
	result, err := b.call(ctx, "getblockheader", []interface{}{hash, true})
	if err != nil {
		return nil, err
	}

	var header struct {
		Hash          string `json:"hash"`
		Height        int64  `json:"height"`
		PreviousHash  string `json:"previousblockhash"`
		Time          int64  `json:"time"`
		NTx           int64  `json:"nTx"`
	}
	if err := json.Unmarshal(result, &header); err != nil {
		return nil, err
	}

	return &BitcoinBlockHeader{
		Hash:              header.Hash,
		Height:            header.Height,
		PreviousBlockHash: header.PreviousHash,
		Time:              header.Time,
		NTx:               header.NTx,
	}, nil
}

// GetRawTransaction fetches a transaction's raw bytes in verbose mode and
// returns the decoded JSON payload (verbosity=1).
func (b *BitcoinClient) GetRawTransaction(ctx context.Context, txid string) (json.RawMessage, error) {
	return b.call(ctx, "getrawtransaction", []interface{}{txid, true})
}

// GetRawTransactionHex fetches a transaction's raw hex (verbosity=0).
func (b *BitcoinClient) GetRawTransactionHex(ctx context.Context, txid string) ([]byte, error) {
	result, err := b.call(ctx, "getrawtransaction", []interface{}{txid, false})
	if err != nil {
		return nil, err
	}
	var hexStr string
	if err := json.Unmarshal(result, &hexStr); err != nil {
		return nil, err
	}
	return helpers.HexToBytes(hexStr)
}

func (b *BitcoinClient) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	id := b.requestID.Add(1)

	request := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}

	data, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.rpcURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.rpcUser != "" {
		req.SetBasicAuth(b.rpcUser, b.rpcPass)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var response struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      uint64          `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("bitcoin rpc: parse response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("bitcoin rpc error %d: %s", response.Error.Code, response.Error.Message)
	}

	return response.Result, nil
}
