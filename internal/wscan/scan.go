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

// Package wscan provides the byte-level line scanning and WARC header
// field parsing shared by the push decoder and the HTTP payload
// extractor. Unlike the
// bufio.Reader-based parser it is modeled on, every function here operates
// on a fully or partially buffered byte slice and reports how much of it it
// was able to consume, so callers can re-invoke it as more bytes arrive
// (see root package decoder.go).
package wscan

import (
	"bytes"
	"errors"
	"mime"
)

var (
	colon  = []byte{':'}
	sp     = byte(' ')
	ht     = byte('\t')
	crlf   = []byte("\r\n")
	sphtcr = " \t\r\n"
)

// ErrMissingColon indicates a header line without a ':' separator.
var ErrMissingColon = errors.New("wscan: missing ':' in header line")

// NameValue is a single, as-yet-unvalidated header field.
type NameValue struct {
	Name  string
	Value string
}

// ScanLine looks for the next LF-terminated line in buf starting at offset
// 0. It returns the line (without its terminator, and with any trailing CR
// stripped), the number of bytes consumed including the terminator, and
// whether a complete line was found. A missing CR before LF is tolerated:
// callers that care about strict CRLF report it themselves by inspecting
// the returned line's source bytes if needed.
func ScanLine(buf []byte) (line []byte, consumed int, ok bool) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		return nil, 0, false
	}
	end := i
	if end > 0 && buf[end-1] == '\r' {
		end--
	}
	return buf[:end], i + 1, true
}

// ScanHeaderBlock reports whether buf contains a complete run of WARC
// header field lines terminated by a blank line (the end-of-fields
// marker), tolerating both "\r\n\r\n" and a bare "\n\n". consumed is the
// number of leading bytes that make up the header block, terminator
// included.
func ScanHeaderBlock(buf []byte) (consumed int, ok bool) {
	if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
		return i + 4, true
	}
	if i := bytes.Index(buf, []byte("\n\n")); i >= 0 {
		return i + 2, true
	}
	return 0, false
}

// ParseFields parses a fully buffered block of WARC header field lines
// (as identified by ScanHeaderBlock, terminator included) into an ordered
// list of fields, folding SP/HT-prefixed continuation lines into the
// preceding field per spec.md §3 "Header Syntax". RFC 2047 encoded-word
// decoding is applied to each folded line before it is split into
// name/value, matching the historical warcfieldsParser behavior.
func ParseFields(block []byte) ([]NameValue, error) {
	// Strip the end-of-fields marker (trailing blank line) before splitting.
	body := block
	for {
		trimmed := bytes.TrimSuffix(body, []byte("\r\n"))
		if len(trimmed) == len(body) {
			trimmed = bytes.TrimSuffix(body, []byte("\n"))
			if len(trimmed) == len(body) {
				break
			}
		}
		body = trimmed
	}

	rawLines := bytes.Split(body, []byte("\n"))
	var folded [][]byte
	for _, rl := range rawLines {
		rl = bytes.TrimSuffix(rl, []byte("\r"))
		if len(rl) == 0 {
			continue
		}
		if (rl[0] == sp || rl[0] == ht) && len(folded) > 0 {
			folded[len(folded)-1] = append(append(folded[len(folded)-1], ' '), bytes.Trim(rl, sphtcr)...)
			continue
		}
		folded = append(folded, rl)
	}

	fields := make([]NameValue, 0, len(folded))
	dec := mime.WordDecoder{}
	for _, line := range folded {
		decoded, err := dec.DecodeHeader(string(line))
		if err != nil {
			decoded = string(line)
		}
		fv := bytes.SplitN([]byte(decoded), colon, 2)
		if len(fv) != 2 {
			return fields, ErrMissingColon
		}
		name := string(bytes.Trim(fv[0], sphtcr))
		value := string(bytes.Trim(fv[1], sphtcr))
		fields = append(fields, NameValue{Name: name, Value: value})
	}
	return fields, nil
}
