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
	"context"

	"golang.org/x/oauth2"

	"github.com/ivcap-works/gosse/pkg/sseconnect"
)

// OAuth2TokenSource adapts a golang.org/x/oauth2.TokenSource (which
// already knows how to refresh an expired access token using a stored
// refresh token) into an sseconnect.TokenSource.
type OAuth2TokenSource struct {
	Source oauth2.TokenSource
}

// Token implements sseconnect.TokenSource.
func (a OAuth2TokenSource) Token(context.Context) (string, error) {
	tok, err := a.Source.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

var _ sseconnect.TokenSource = OAuth2TokenSource{}

// StaticTokenSource returns an oauth2.TokenSource that always returns the
// same access token, suitable for wrapping a device-login result before
// refresh support is needed.
func StaticTokenSource(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
}
