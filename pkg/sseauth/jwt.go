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

package sseauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

// IdentityClaims is the subset of an OIDC ID token this package extracts
// after verifying its signature against a JWKS endpoint.
type IdentityClaims struct {
	Name     string `json:"name,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenExpiry verifies idToken's signature against the key set published
// at jwksURL and returns its parsed claims and expiry time. It reports a
// descriptive error for malformed or expired tokens rather than the raw
// jwt error, since this is normally surfaced straight to a CLI user.
func TokenExpiry(jwksURL, idToken string) (*IdentityClaims, time.Time, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("sseauth: fetch JWKS: %w", err)
	}

	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, jwks.Keyfunc)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, time.Time{}, fmt.Errorf("sseauth: malformed id token: %w", err)
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, time.Time{}, fmt.Errorf("sseauth: id token not currently valid: %w", err)
		default:
			return nil, time.Time{}, fmt.Errorf("sseauth: cannot verify id token: %w", err)
		}
	}
	if !token.Valid {
		return nil, time.Time{}, fmt.Errorf("sseauth: id token failed verification")
	}

	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	return claims, expiry, nil
}
