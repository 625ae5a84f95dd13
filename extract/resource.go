/*
 * Copyright 2021 National Library of Norway.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *       http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package extract implements the ResourceExtractor of spec.md §4.8: given a
// record's target URI and type, it derives the path components a caller
// should join under its own output root to materialize that record's
// payload on disk.
package extract

import (
	"net/url"
	"strconv"
	"strings"

	wurl "github.com/nlnwa/whatwg-url/url"

	"github.com/nlnwa/warccore"
)

const (
	maxComponentBytes = 240
	maxTotalBytes     = 4096
)

var reservedDeviceNames = map[string]bool{
	"CON": true, "AUX": true, "NUL": true, "PRN": true,
}

func init() {
	for i := 1; i <= 9; i++ {
		reservedDeviceNames["COM"+strconv.Itoa(i)] = true
		reservedDeviceNames["LPT"+strconv.Itoa(i)] = true
	}
}

// Metadata describes one record's extractability, per spec.md §4.8.
type Metadata struct {
	HasContent        bool
	IsTruncated       bool
	FilePathComponents []string
}

// Resource derives a Metadata for recordType/targetURI/truncated/blockLen.
// Non-extractable records (warcinfo, metadata, empty blocks, non-HTTP
// resources without a URI) return HasContent=false and no components.
func Resource(recordType warc.RecordType, targetURI, truncated string, blockLen int64) Metadata {
	m := Metadata{IsTruncated: truncated != ""}

	if recordType&(warc.Warcinfo|warc.Metadata) != 0 {
		return m
	}
	if blockLen == 0 {
		return m
	}
	if targetURI == "" {
		return m
	}

	components, ok := filePathComponents(targetURI)
	if !ok {
		return m
	}
	m.HasContent = true
	m.FilePathComponents = components
	return m
}

// filePathComponents turns a target URI into a sanitized path component
// list: scheme, host, then each path segment, percent-decoded and
// sanitized per spec.md §4.8.
func filePathComponents(targetURI string) ([]string, bool) {
	u, err := wurl.Parse(targetURI)
	if err != nil {
		return nil, false
	}

	components := []string{sanitizeComponent(strings.TrimSuffix(u.Protocol(), ":"))}
	if host := u.Host(); host != "" {
		components = append(components, sanitizeComponent(host))
	}

	path := u.Pathname()
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, seg := range segments {
		decoded, derr := url.PathUnescape(seg)
		if derr != nil {
			decoded = seg
		}
		if decoded == "" {
			decoded = "index"
		}
		components = append(components, sanitizeComponent(decoded))
	}

	total := 0
	for _, c := range components {
		total += len(c) + 1
	}
	if total > maxTotalBytes {
		return nil, false
	}
	return components, true
}

// sanitizeComponent strips control characters, replaces path separators
// and reserved Windows device names, and caps the result at
// maxComponentBytes.
func sanitizeComponent(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7f:
			continue
		case r == '/' || r == '\\':
			sb.WriteByte('_')
		default:
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if out == "" {
		out = "index"
	}
	if reservedDeviceNames[strings.ToUpper(out)] {
		out += "_"
	}
	if len(out) > maxComponentBytes {
		out = truncateBytes(out, maxComponentBytes)
	}
	return out
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	b := []byte(s)[:n]
	for len(b) > 0 && !isUTF8Boundary(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}

func isUTF8Boundary(b []byte) bool {
	return len(b) == 0 || b[len(b)-1]&0xC0 != 0x80
}
