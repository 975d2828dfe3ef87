// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package client holds the outbound HTTP clients of the orders service.
// Every call runs through the circuit breaker named after the downstream
// service, so a dead dependency fails fast instead of tying up handlers.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopmesh/shopmesh/pkg/resilience"
)

// BreakerUsers is the breaker name guarding calls to the users service.
const BreakerUsers = "users"

// ErrUnauthorized indicates the users service rejected the caller's token.
var ErrUnauthorized = errors.New("users service rejected token")

// UserProfile is the subset of the users service profile the orders
// service cares about.
type UserProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserVerifier resolves a bearer token to the profile it belongs to.
type UserVerifier interface {
	Verify(ctx context.Context, bearerToken string) (*UserProfile, error)
}

// UsersClient calls the users service over HTTP.
type UsersClient struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

// NewUsersClient creates a client for the users service at baseURL.
func NewUsersClient(baseURL string, executor *resilience.Executor) *UsersClient {
	return &UsersClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		executor:   executor,
	}
}

// verifyResult separates "the dependency answered" from "the answer was a
// rejection", so auth failures do not count as breaker failures.
type verifyResult struct {
	profile      *UserProfile
	unauthorized bool
}

// Verify resolves the token via GET /users/me, wrapped in the "users"
// breaker. A fast rejection surfaces as *resilience.CircuitOpenError.
func (c *UsersClient) Verify(ctx context.Context, bearerToken string) (*UserProfile, error) {
	result, err := resilience.Call(ctx, c.executor, BreakerUsers, func() (verifyResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/me", nil)
		if err != nil {
			return verifyResult{}, err
		}
		req.Header.Set("Authorization", "Bearer "+bearerToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return verifyResult{}, err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			var profile UserProfile
			if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
				return verifyResult{}, err
			}
			return verifyResult{profile: &profile}, nil
		case http.StatusUnauthorized:
			return verifyResult{unauthorized: true}, nil
		default:
			return verifyResult{}, fmt.Errorf("users service returned status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return nil, err
	}
	if result.unauthorized {
		return nil, ErrUnauthorized
	}
	return result.profile, nil
}
