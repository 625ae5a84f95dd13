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
	"net/http"
	"strconv"
	"strings"

	"github.com/nlnwa/warccore/internal/wscan"
)

// ErrTrailingBytes is returned when a fixed Content-Length HTTP body is
// followed by more bytes than declared and the caller has not set
// Config.LenientTrailingBytes.
var ErrTrailingBytes = errors.New("warc: excess bytes beyond declared Content-Length")

// ErrMalformedHTTP covers status/request line and chunk-framing errors.
var ErrMalformedHTTP = errors.New("warc: malformed HTTP message")

// HttpExtractKind identifies which member of HttpExtractEvent is populated.
type HttpExtractKind uint8

const (
	ExtractChunk HttpExtractKind = iota
	ExtractEnd
)

// HttpExtractEvent is the secondary event stream HttpPayloadExtractor
// exposes so a DigestEngine can hook payload-digest verification (spec.md
// §4.5).
type HttpExtractEvent struct {
	Kind      HttpExtractKind
	Data      []byte
	Proto     string
	StatusCode int
	Method    string
	RequestURI string
	Header    http.Header
	Checksums ChecksumSet
}

type httpState uint8

const (
	httpParsingHeaders httpState = iota
	httpChunkedSize
	httpChunkedData
	httpChunkedDataCRLF
	httpChunkedTrailer
	httpFixedBody
	httpUntilEof
	httpDone
	httpFinished
)

// HttpPayloadExtractor decodes an HTTP message embedded in a WARC record's
// block: the status or request line, headers, and a Transfer-Encoding:
// chunked, Content-Length bounded, or until-EOF body, per spec.md §4.5.
type HttpPayloadExtractor struct {
	recordType RecordType
	lenient    bool

	buf   []byte
	state httpState
	eof   bool

	haveContentLength bool
	contentLength     int64
	chunked           bool
	remaining         int64

	checksums *ChecksumAccumulator

	startLine HttpExtractEvent
}

// NewHttpPayloadExtractor constructs an extractor for a record of the
// given type.
func NewHttpPayloadExtractor(recordType RecordType, cfg Config) *HttpPayloadExtractor {
	return &HttpPayloadExtractor{
		recordType: recordType,
		lenient:    cfg.LenientTrailingBytes,
		checksums:  NewChecksumAccumulator(),
	}
}

// Write appends block bytes to the extractor's input.
func (h *HttpPayloadExtractor) Write(p []byte) (int, error) {
	h.buf = append(h.buf, p...)
	return len(p), nil
}

// WriteEOF signals that the record's block has ended.
func (h *HttpPayloadExtractor) WriteEOF() error {
	h.eof = true
	return nil
}

// Events drains whatever ExtractChunk/ExtractEnd events the currently
// buffered bytes allow.
func (h *HttpPayloadExtractor) Events() ([]HttpExtractEvent, error) {
	var out []HttpExtractEvent
	for {
		progressed, events, err := h.step()
		if len(events) > 0 && h.startLine.Header != nil {
			// The parsed start line and headers ride on the first event.
			events[0].Proto, events[0].StatusCode = h.startLine.Proto, h.startLine.StatusCode
			events[0].Method, events[0].RequestURI = h.startLine.Method, h.startLine.RequestURI
			events[0].Header = h.startLine.Header
			h.startLine = HttpExtractEvent{}
		}
		out = append(out, events...)
		if err != nil {
			return out, err
		}
		if !progressed {
			break
		}
	}
	return out, nil
}

func (h *HttpPayloadExtractor) step() (bool, []HttpExtractEvent, error) {
	switch h.state {
	case httpParsingHeaders:
		return h.stepHeaders()
	case httpChunkedSize:
		return h.stepChunkedSize()
	case httpChunkedData:
		return h.stepChunkedData()
	case httpChunkedDataCRLF:
		return h.stepChunkedDataCRLF()
	case httpChunkedTrailer:
		return h.stepChunkedTrailer()
	case httpFixedBody:
		return h.stepFixedBody()
	case httpUntilEof:
		return h.stepUntilEof()
	case httpDone:
		return h.stepDone()
	default:
		return false, nil, nil
	}
}

func (h *HttpPayloadExtractor) stepHeaders() (bool, []HttpExtractEvent, error) {
	consumed, ok := wscan.ScanHeaderBlock(h.buf)
	if !ok {
		if h.eof {
			return false, nil, ErrMalformedHTTP
		}
		return false, nil, nil
	}
	block := h.buf[:consumed]
	line, lineConsumed, lok := wscan.ScanLine(block)
	if !lok {
		return false, nil, ErrMalformedHTTP
	}

	ev := HttpExtractEvent{}
	if proto, code, ok := parseStatusLineLenient(string(line)); ok {
		ev.Proto, ev.StatusCode = proto, code
	} else if method, uri, proto, ok := parseRequestLine(string(line)); ok {
		ev.Method, ev.RequestURI, ev.Proto = method, uri, proto
	} else {
		return false, nil, ErrMalformedHTTP
	}

	nvs, err := wscan.ParseFields(block[lineConsumed:])
	if err != nil && !errors.Is(err, wscan.ErrMissingColon) {
		return false, nil, err
	}
	header := http.Header{}
	for _, nv := range nvs {
		header.Add(nv.Name, nv.Value)
	}
	ev.Header = header

	if cl := header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n >= 0 {
			h.haveContentLength = true
			h.contentLength = n
		}
	}
	h.chunked = strings.Contains(strings.ToLower(header.Get("Transfer-Encoding")), "chunked")

	h.buf = h.buf[consumed:]
	h.startLine = ev

	switch {
	case h.chunked:
		h.state = httpChunkedSize
	case h.haveContentLength:
		h.remaining = h.contentLength
		h.state = httpFixedBody
	case h.recordType == Response:
		h.state = httpUntilEof
	default:
		h.state = httpDone
	}
	return true, nil, nil
}

func (h *HttpPayloadExtractor) stepChunkedSize() (bool, []HttpExtractEvent, error) {
	line, consumed, ok := wscan.ScanLine(h.buf)
	if !ok {
		if h.eof {
			return false, nil, ErrTruncatedMember
		}
		return false, nil, nil
	}
	h.buf = h.buf[consumed:]
	sizeStr := string(line)
	if i := strings.IndexByte(sizeStr, ';'); i >= 0 {
		sizeStr = sizeStr[:i]
	}
	sizeStr = strings.TrimSpace(sizeStr)
	size, err := strconv.ParseInt(sizeStr, 16, 64)
	if err != nil || size < 0 {
		return false, nil, ErrMalformedHTTP
	}
	if size == 0 {
		h.state = httpChunkedTrailer
		return true, nil, nil
	}
	h.remaining = size
	h.state = httpChunkedData
	return true, nil, nil
}

func (h *HttpPayloadExtractor) stepChunkedData() (bool, []HttpExtractEvent, error) {
	if h.remaining == 0 {
		h.state = httpChunkedDataCRLF
		return true, nil, nil
	}
	if len(h.buf) == 0 {
		if h.eof {
			return false, nil, ErrTruncatedMember
		}
		return false, nil, nil
	}
	n := h.remaining
	if int64(len(h.buf)) < n {
		n = int64(len(h.buf))
	}
	chunk := h.buf[:n]
	h.checksums.Write(chunk)
	data := make([]byte, len(chunk))
	copy(data, chunk)
	h.buf = h.buf[n:]
	h.remaining -= n
	return true, []HttpExtractEvent{{Kind: ExtractChunk, Data: data}}, nil
}

func (h *HttpPayloadExtractor) stepChunkedDataCRLF() (bool, []HttpExtractEvent, error) {
	line, consumed, ok := wscan.ScanLine(h.buf)
	if !ok {
		if h.eof {
			return false, nil, ErrTruncatedMember
		}
		return false, nil, nil
	}
	if len(line) != 0 {
		return false, nil, ErrMalformedHTTP
	}
	h.buf = h.buf[consumed:]
	h.state = httpChunkedSize
	return true, nil, nil
}

func (h *HttpPayloadExtractor) stepChunkedTrailer() (bool, []HttpExtractEvent, error) {
	line, consumed, ok := wscan.ScanLine(h.buf)
	if !ok {
		if h.eof {
			return false, nil, ErrTruncatedMember
		}
		return false, nil, nil
	}
	h.buf = h.buf[consumed:]
	if len(line) == 0 {
		h.state = httpDone
	}
	return true, nil, nil
}

func (h *HttpPayloadExtractor) stepFixedBody() (bool, []HttpExtractEvent, error) {
	if h.remaining == 0 {
		h.state = httpDone
		return true, nil, nil
	}
	if len(h.buf) == 0 {
		if h.eof {
			return false, nil, ErrTruncatedMember
		}
		return false, nil, nil
	}
	n := h.remaining
	if int64(len(h.buf)) < n {
		n = int64(len(h.buf))
	}
	chunk := h.buf[:n]
	h.checksums.Write(chunk)
	data := make([]byte, len(chunk))
	copy(data, chunk)
	h.buf = h.buf[n:]
	h.remaining -= n
	return true, []HttpExtractEvent{{Kind: ExtractChunk, Data: data}}, nil
}

func (h *HttpPayloadExtractor) stepUntilEof() (bool, []HttpExtractEvent, error) {
	if len(h.buf) > 0 {
		data := h.buf
		h.buf = nil
		h.checksums.Write(data)
		return true, []HttpExtractEvent{{Kind: ExtractChunk, Data: data}}, nil
	}
	if h.eof {
		h.state = httpDone
		return true, nil, nil
	}
	return false, nil, nil
}

func (h *HttpPayloadExtractor) stepDone() (bool, []HttpExtractEvent, error) {
	if len(h.buf) > 0 {
		if !h.lenient {
			return false, nil, ErrTrailingBytes
		}
		h.buf = nil
	}
	sum := h.checksums.Sum()
	h.state = httpFinished
	return true, []HttpExtractEvent{{Kind: ExtractEnd, Checksums: sum}}, nil
}

// parseStatusLineLenient parses "HTTP/1.1 200 OK", tolerating a missing
// space between the status code and the reason phrase ("HTTP/1.1 200OK"),
// an observed-in-practice deviation from RFC 7230 (spec.md §4.5).
func parseStatusLineLenient(line string) (proto string, code int, ok bool) {
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return "", 0, false
	}
	proto = line[:sp]
	if !strings.HasPrefix(proto, "HTTP/") {
		return "", 0, false
	}
	rest := strings.TrimLeft(line[sp+1:], " ")
	if len(rest) < 3 {
		return "", 0, false
	}
	n, err := strconv.Atoi(rest[:3])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return proto, n, true
}

// parseRequestLine parses "GET /foo HTTP/1.1" into its three parts.
func parseRequestLine(line string) (method, uri, proto string, ok bool) {
	s1 := strings.IndexByte(line, ' ')
	if s1 < 0 {
		return "", "", "", false
	}
	s2 := strings.IndexByte(line[s1+1:], ' ')
	if s2 < 0 {
		return "", "", "", false
	}
	s2 += s1 + 1
	return line[:s1], line[s1+1 : s2], line[s2+1:], true
}
