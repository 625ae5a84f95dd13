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

package warc

import (
	"strconv"
	"strings"
)

const (
	sp       = ' '
	ht       = '\t'
	cr       = '\r'
	lf       = '\n'
	crlf     = "\r\n"
	crlfcrlf = "\r\n\r\n"
)

// Record is a fully parsed WARC record header, as produced by PushDecoder's
// Header event and consumed by PushEncoder.
type Record struct {
	Version RecordVersion
	Type    RecordType
	Header  WarcFields
}

// ContentLength returns the record's declared Content-Length, or an error
// if the field is absent or not a valid non-negative integer (spec.md §3
// "the integer parsed from Content-Length equals the actual block octet
// count").
func (r *Record) ContentLength() (int64, error) {
	v := r.Header.Get(ContentLength)
	if v == "" {
		return 0, newHeaderFieldError(ContentLength, "missing")
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrInvalidHeader
	}
	return n, nil
}

// ID returns the record's WARC-Record-ID, still encapsulated in angle
// brackets as written on the wire.
func (r *Record) ID() string {
	return r.Header.Get(WarcRecordID)
}

// FormatVersionLine renders a version line including its terminating CRLF.
func FormatVersionLine(v RecordVersion) string {
	return v.String() + crlf
}

// ParseVersionLine parses a version line (with any trailing CR/LF already
// stripped by the caller's line scanner) of the form "WARC/<major>.<minor>".
// A version line terminated by a single LF is tolerated by the scanner
// upstream, not here; this function only validates the grammar itself
// (spec.md §4.2).
func ParseVersionLine(line []byte) (RecordVersion, error) {
	s := strings.TrimSpace(string(line))
	const prefix = "WARC/"
	if !strings.HasPrefix(s, prefix) {
		return RecordVersion{}, ErrInvalidVersion
	}
	s = s[len(prefix):]
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return RecordVersion{}, ErrInvalidVersion
	}
	majorStr, minorStr := s[:dot], s[dot+1:]
	if majorStr == "" || minorStr == "" {
		return RecordVersion{}, ErrInvalidVersion
	}
	for _, c := range majorStr + minorStr {
		if c < '0' || c > '9' {
			return RecordVersion{}, ErrInvalidVersion
		}
	}
	major, err := strconv.ParseUint(majorStr, 10, 8)
	if err != nil {
		return RecordVersion{}, ErrInvalidVersion
	}
	minor, err := strconv.ParseUint(minorStr, 10, 8)
	if err != nil {
		return RecordVersion{}, ErrInvalidVersion
	}
	v := RecordVersion{Major: uint8(major), Minor: uint8(minor)}
	switch {
	case v.Major == V1_0.Major && v.Minor == V1_0.Minor:
		v.id = V1_0.id
	case v.Major == V1_1.Major && v.Minor == V1_1.Minor:
		v.id = V1_1.id
	default:
		// Unrecognized minor version; accept the line but treat it as
		// WARC/1.1 for field-applicability purposes, the newest schema
		// this module understands.
		v.id = V1_1.id
	}
	return v, nil
}
