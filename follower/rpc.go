// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package follower

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blinklabs-io/sunset/follower"

// maxResponseSize bounds the RPC response body we are willing to read
const maxResponseSize = 1 << 20

var ErrUnexpectedResponse = errors.New("unexpected RPC response")

// RPCError is an error object returned by the node
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Id      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Id     uint64          `json:"id"`
}

// BlockCount asks the node for the height of its best chain
func (f *Follower) BlockCount(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer(tracerName).Start(
		ctx,
		"follower.getblockcount",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()
	var height int64
	if err := f.call(ctx, "getblockcount", &height); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int64("chain.height", height))
	return height, nil
}

func (f *Follower) call(ctx context.Context, method string, result any) error {
	id := f.requestId.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "1.0",
		Id:      id,
		Method:  method,
		Params:  []any{},
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		f.config.URL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.config.Username != "" || f.config.Password != "" {
		req.SetBasicAuth(f.config.Username, f.config.Password)
	}
	resp, err := f.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	var rpcResp rpcResponse
	// Nodes report RPC errors with a non-200 status and a JSON body
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf(
				"%w: %s: status %d",
				ErrUnexpectedResponse,
				method,
				resp.StatusCode,
			)
		}
		return fmt.Errorf("%w: %s: %w", ErrUnexpectedResponse, method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"%w: %s: status %d",
			ErrUnexpectedResponse,
			method,
			resp.StatusCode,
		)
	}
	if rpcResp.Id != id {
		return fmt.Errorf(
			"%w: %s: response id %d does not match request id %d",
			ErrUnexpectedResponse,
			method,
			rpcResp.Id,
			id,
		)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fmt.Errorf("%w: %s: empty result", ErrUnexpectedResponse, method)
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnexpectedResponse, method, err)
	}
	return nil
}
