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
	"encoding/json"
	"fmt"
	"io"

	yaml2 "gopkg.in/yaml.v2"
)

// RenderMessage writes data (parsed from a Message's JSON or plain-text
// payload) to w as either indented JSON or YAML, matching the CLI's
// "--output" switch. data may be any JSON-unmarshalable value; when it is
// a raw string that is not valid JSON, it is written through unchanged.
func RenderMessage(w io.Writer, raw string, useYAML bool) error {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		_, werr := fmt.Fprintln(w, raw)
		return werr
	}

	var b []byte
	var err error
	if useYAML {
		b, err = yaml2.Marshal(v)
	} else {
		b, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("sseconfig: render output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
