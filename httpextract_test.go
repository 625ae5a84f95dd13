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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runExtractor(t *testing.T, recordType RecordType, cfg Config, block []byte) ([]byte, []HttpExtractEvent) {
	t.Helper()
	extractor := NewHttpPayloadExtractor(recordType, cfg)
	_, err := extractor.Write(block)
	require.NoError(t, err)
	require.NoError(t, extractor.WriteEOF())
	events, err := extractor.Events()
	require.NoError(t, err)

	var body []byte
	for _, ev := range events {
		if ev.Kind == ExtractChunk {
			body = append(body, ev.Data...)
		}
	}
	return body, events
}

func TestHttpPayloadExtractorFixedContentLength(t *testing.T) {
	block := []byte("HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: 5\r\n\r\nhello")
	body, events := runExtractor(t, Response, DefaultConfig(), block)
	assert.Equal(t, "hello", string(body))

	last := events[len(events)-1]
	require.Equal(t, ExtractEnd, last.Kind)
	assert.Equal(t, 200, events[0].StatusCode)
	assert.Equal(t, "text/html", events[0].Header.Get("Content-Type"))
}

func TestHttpPayloadExtractorChunkedTransferEncoding(t *testing.T) {
	block := []byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")
	body, _ := runExtractor(t, Response, DefaultConfig(), block)
	assert.Equal(t, "hello world", string(body))
}

func TestHttpPayloadExtractorUntilEofForResponseWithNoLength(t *testing.T) {
	block := []byte("HTTP/1.1 200 OK\r\n\r\nwhatever is left")
	body, _ := runExtractor(t, Response, DefaultConfig(), block)
	assert.Equal(t, "whatever is left", string(body))
}

func TestHttpPayloadExtractorRequestLine(t *testing.T) {
	block := []byte("GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n")
	_, events := runExtractor(t, Request, DefaultConfig(), block)
	assert.Equal(t, "GET", events[0].Method)
	assert.Equal(t, "/index.html", events[0].RequestURI)
}

func TestHttpPayloadExtractorRejectsTrailingBytesByDefault(t *testing.T) {
	block := []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhelloEXTRA")
	extractor := NewHttpPayloadExtractor(Response, DefaultConfig())
	_, err := extractor.Write(block)
	require.NoError(t, err)
	require.NoError(t, extractor.WriteEOF())
	_, err = extractor.Events()
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestHttpPayloadExtractorLenientTrailingBytes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LenientTrailingBytes = true
	block := []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhelloEXTRA")
	body, _ := runExtractor(t, Response, cfg, block)
	assert.Equal(t, "hello", string(body))
}

func TestHttpPayloadExtractorRejectsTruncatedChunkedBody(t *testing.T) {
	block := []byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhel")
	extractor := NewHttpPayloadExtractor(Response, DefaultConfig())
	_, err := extractor.Write(block)
	require.NoError(t, err)
	require.NoError(t, extractor.WriteEOF())
	_, err = extractor.Events()
	assert.ErrorIs(t, err, ErrTruncatedMember)
}
