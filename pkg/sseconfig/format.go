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

package sseconfig

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/inhies/go-bytesize"
)

// FormatBytes renders n bytes the way the project's other progress output
// does, e.g. "12.4 KB".
func FormatBytes(n int64) string {
	return bytesize.New(float64(n)).String()
}

// FormatAge renders t as a relative human time, e.g. "3 minutes ago".
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

// FormatDuration renders d the way a reconnect countdown is displayed,
// e.g. "1.5s".
func FormatDuration(d time.Duration) string {
	return d.Round(10 * time.Millisecond).String()
}
