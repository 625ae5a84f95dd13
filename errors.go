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
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HeaderFieldError is used for violations of the WARC header field
// grammar or per-type field schema.
type HeaderFieldError struct {
	field string
	msg   string
}

func newHeaderFieldError(field, msg string) *HeaderFieldError {
	return &HeaderFieldError{field: field, msg: msg}
}

func newHeaderFieldErrorf(field, format string, a ...interface{}) *HeaderFieldError {
	return &HeaderFieldError{field: field, msg: fmt.Sprintf(format, a...)}
}

func (e *HeaderFieldError) Error() string {
	if e.field == "" {
		return "warc: " + e.msg
	}
	return fmt.Sprintf("warc: %s: %s", e.field, e.msg)
}

// SyntaxError is used for violations of the container/header line grammar:
// bad version lines, missing CRLF, unterminated fields.
type SyntaxError struct {
	msg     string
	wrapped error
}

func NewSyntaxError(msg string) *SyntaxError {
	return &SyntaxError{msg: msg}
}

func NewWrappedSyntaxError(msg string, wrapped error) *SyntaxError {
	return &SyntaxError{msg: msg, wrapped: wrapped}
}

func (e *SyntaxError) Error() string {
	return "warc: " + e.msg
}

func (e *SyntaxError) Unwrap() error {
	return e.wrapped
}

// Container-level errors (spec.md §7 "Container"). These terminate the
// active member/record; the caller decides whether to skip ahead.
var (
	ErrTruncatedMember       = errors.New("warc: truncated member")
	ErrBadMagic              = errors.New("warc: bad magic for compression member")
	ErrDictionaryWithoutFrame = errors.New("warc: zstd dictionary skippable frame not followed by a data frame")
	ErrUnexpectedCompression = errors.New("warc: raw stream contains bytes matching a compression magic")
)

// Protocol-level errors (spec.md §7 "Protocol").
var (
	ErrInvalidVersion   = errors.New("warc: invalid version line")
	ErrInvalidHeader    = errors.New("warc: invalid header")
	ErrLengthMismatch   = errors.New("warc: sum of block chunk lengths does not match Content-Length")
	ErrMissingTrailer   = errors.New("warc: missing two-CRLF record trailer")
	ErrChecksumMismatch = errors.New("warc: checksum mismatch")
)

// Validation collects non-fatal findings accumulated while parsing or
// validating a record header.
type Validation []error

func (v *Validation) Error() string {
	return v.String()
}

func (v *Validation) String() string {
	if len(*v) == 0 {
		return ""
	}
	sb := strings.Builder{}
	sb.WriteString("warc: validation errors:\n")
	for i, e := range *v {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("  ")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(": ")
		sb.WriteString(e.Error())
	}
	return sb.String()
}

// Valid reports whether no validation errors were recorded.
func (v *Validation) Valid() bool {
	return len(*v) == 0
}

func (v *Validation) addError(err error) {
	*v = append(*v, err)
}
