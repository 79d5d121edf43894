// Copyright 2026 The gosse Authors
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

// Package sseauth bridges OAuth2 device-code login and JWKS-backed token
// validation into sseconnect.TokenSource, so an EventSource can hold a
// long-lived SSE connection open against an authenticated endpoint.
package sseauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
)

// DeviceCode is the response to a device authorization request.
type DeviceCode struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURL         string `json:"verification_uri"`
	VerificationURLComplete string `json:"verification_uri_complete"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval"`
}

// DeviceTokenResponse is the token endpoint's response once the user has
// completed the device login flow.
type DeviceTokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ErrorString  string `json:"error,omitempty"`
}

// DeviceLoginConfig names the endpoints and client identity needed to run
// the OAuth2 device authorization grant.
type DeviceLoginConfig struct {
	CodeURL  string
	TokenURL string
	ClientID string
	Scopes   string
	Audience string
	// QRWriter receives the rendered QR code and login instructions; when
	// nil, nothing is printed and DeviceCodeLogin does not return the
	// verification URL or user code.
	QRWriter io.Writer
}

// DeviceCodeLogin runs the OAuth2 device authorization grant against cfg,
// printing a scannable QR code (and the verification URL as a fallback) to
// cfg.QRWriter, then polls the token endpoint until the user completes the
// login, the device code expires, or ctx is cancelled.
func DeviceCodeLogin(ctx context.Context, client *http.Client, cfg DeviceLoginConfig) (*DeviceTokenResponse, error) {
	if client == nil {
		client = http.DefaultClient
	}

	dc, err := requestDeviceCode(ctx, client, cfg)
	if err != nil {
		return nil, fmt.Errorf("sseauth: request device code: %w", err)
	}

	if cfg.QRWriter != nil {
		qr, err := qrcode.New(dc.VerificationURLComplete, qrcode.Medium)
		if err == nil {
			fmt.Fprintln(cfg.QRWriter, qr.ToSmallString(true))
		}
		fmt.Fprintln(cfg.QRWriter, "login code:", dc.UserCode)
		fmt.Fprintln(cfg.QRWriter, "verify at:", dc.VerificationURLComplete)
	}

	return waitForToken(ctx, client, cfg, dc)
}

func requestDeviceCode(ctx context.Context, client *http.Client, cfg DeviceLoginConfig) (*DeviceCode, error) {
	values := url.Values{
		"client_id": {cfg.ClientID},
		"scope":     {cfg.Scopes},
		"audience":  {cfg.Audience},
	}
	resp, err := postForm(ctx, client, cfg.CodeURL, values)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device code request returned %d (%s)", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	var dc DeviceCode
	if err := json.NewDecoder(resp.Body).Decode(&dc); err != nil {
		return nil, err
	}
	return &dc, nil
}

func waitForToken(ctx context.Context, client *http.Client, cfg DeviceLoginConfig, dc *DeviceCode) (*DeviceTokenResponse, error) {
	interval := dc.Interval
	if interval <= 0 {
		interval = 5
	}
	deadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("device login expired before completion")
		}

		values := url.Values{
			"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
			"client_id":   {cfg.ClientID},
			"device_code": {dc.DeviceCode},
		}
		resp, err := postForm(ctx, client, cfg.TokenURL, values)
		if err != nil {
			return nil, err
		}
		var tr DeviceTokenResponse
		err = json.NewDecoder(resp.Body).Decode(&tr)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode token response: %w", err)
		}

		switch tr.ErrorString {
		case "":
			return &tr, nil
		case "authorization_pending":
			// fall through to sleep and retry
		case "slow_down":
			interval *= 2
		case "expired_token":
			return nil, fmt.Errorf("device login code expired")
		case "access_denied":
			return nil, fmt.Errorf("device login denied")
		default:
			return nil, fmt.Errorf("device login error: %s", tr.ErrorString)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(interval) * time.Second):
		}
	}
}

func postForm(ctx context.Context, client *http.Client, rawURL string, values url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return client.Do(req)
}
