package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"comfynodes/logger"
)

// maxErrorBody caps how much of a failed response ends up in an error message.
const maxErrorBody = 512

func (r *Request) GetUrl() string {
	return r.Url
}

func (r *Request) GetMethod() string {
	return r.Method
}

func (r *Request) IsPost() bool {
	return r.Method == http.MethodPost
}

func (r *Request) GetHeaders() []Headers {
	return r.Headers
}

func (r *Request) GetPayload() interface{} {
	return r.Payload
}

func (r *Request) AddHeader(key string, value string) {
	r.Headers = append(r.Headers, Headers{Key: key, Value: value})
}

// SetBasicAuth takes credentials in "user:pass" form. An empty string clears them.
func (r *Request) SetBasicAuth(credentials string) {
	r.Username, r.Password, _ = strings.Cut(credentials, ":")
}

func (r *Request) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return &http.Client{Timeout: r.Timeout}
}

// Call performs the request and decodes the response into response. A
// *string receives the raw body; anything else is decoded as JSON.
func (r *Request) Call(ctx context.Context, response interface{}) error {
	var reqBody io.Reader = http.NoBody

	if r.IsPost() {
		jsonData, err := json.Marshal(r.GetPayload())
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
		r.AddHeader("Content-Type", "application/json")
	}

	req, err := http.NewRequestWithContext(ctx, r.GetMethod(), r.GetUrl(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}

	for _, header := range r.GetHeaders() {
		req.Header.Set(header.Key, header.Value)
	}
	if r.Username != "" || r.Password != "" {
		req.SetBasicAuth(r.Username, r.Password)
	}

	resp, err := r.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s %s: unexpected status %d: %s", r.GetMethod(), r.GetUrl(), resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if strPtr, ok := response.(*string); ok {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		*strPtr = string(bodyBytes)
	} else {
		err = json.NewDecoder(resp.Body).Decode(response)
		if err != nil {
			logger.Error("Failed to decode JSON response", "url", r.GetUrl(), "error", err)
			return fmt.Errorf("failed to decode JSON response: %w", err)
		}
	}

	return nil
}
