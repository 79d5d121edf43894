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

// Package ssecat is a demo CLI that watches a Server-Sent Events endpoint
// using the gosse client library.
package ssecat

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivcap-works/gosse/pkg/sseconfig"
)

const envAccessToken = "SSECAT_ACCESS_TOKEN"

var (
	accessToken  string
	debug        bool
	timeoutSec   int
	outputFormat string
	silent       bool

	logger *zap.Logger
	config *sseconfig.Config
)

var rootCmd = &cobra.Command{
	Use:   "ssecat",
	Short: "Watch a Server-Sent Events stream from the command line",
	Long:  "ssecat connects to an SSE endpoint and prints every message it receives, reconnecting automatically on failure.",
}

// Execute runs the ssecat command tree.
func Execute(version string) {
	rootCmd.Version = version
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&accessToken, "access-token", "",
		fmt.Sprintf("bearer token to send with the request [%s]", envAccessToken))
	rootCmd.PersistentFlags().IntVar(&timeoutSec, "timeout", 0, "max seconds to wait for the initial connection (0 = no limit)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "set logging level to debug")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "render message data as [json, yaml] instead of raw text")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "suppress connection status lines")

	rootCmd.AddCommand(watchCmd)
}

func initConfig() {
	l, err := sseconfig.NewLogger(debug)
	if err != nil {
		panic(err)
	}
	logger = l

	cfg, err := sseconfig.Load()
	if err != nil {
		logger.Warn("failed to load config file", zap.Error(err))
		cfg = &sseconfig.Config{Version: "1"}
	}
	config = cfg
}

func resolveAccessToken() string {
	if accessToken != "" {
		return accessToken
	}
	if t := os.Getenv(envAccessToken); t != "" {
		return t
	}
	if ep := config.ActiveEndpoint(); ep != nil {
		if age := sseconfig.FormatAge(ep.AccessTokenExpiry); age != "" {
			logger.Debug("using cached access token from config", zap.String("expires", age))
		}
		return ep.AccessToken
	}
	return ""
}
