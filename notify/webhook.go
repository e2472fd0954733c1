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

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const webhookMaxAttempts = 3

// WebhookPayload is the JSON body posted to webhook targets
type WebhookPayload struct {
	Id        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Message   string `json:"message"`
}

// WebhookTarget posts each alert as JSON to a URL, retrying server errors
type WebhookTarget struct {
	client  *http.Client
	headers map[string]string
	url     string
	source  string
}

// NewWebhookTarget creates a webhook target. The source identifies this node
// in the payload. A nil client uses http.DefaultClient; the request deadline
// comes from the Notifier timeout.
func NewWebhookTarget(
	url string,
	source string,
	headers map[string]string,
	client *http.Client,
) *WebhookTarget {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookTarget{
		client:  client,
		headers: headers,
		url:     url,
		source:  source,
	}
}

func (w *WebhookTarget) Name() string {
	return "webhook"
}

func (w *WebhookTarget) Send(ctx context.Context, message string) error {
	body, err := json.Marshal(WebhookPayload{
		Id:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    w.source,
		Message:   message,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	var lastErr error
	for attempt := range webhookMaxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}
		retry, err := w.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return fmt.Errorf(
		"webhook failed after %d attempts: %w",
		webhookMaxAttempts,
		lastErr,
	)
}

// post sends one request and reports whether a failure is worth retrying
func (w *WebhookTarget) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		w.url,
		bytes.NewReader(body),
	)
	if err != nil {
		return false, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	return resp.StatusCode >= 500, fmt.Errorf(
		"webhook returned status %d",
		resp.StatusCode,
	)
}
