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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeOneRecord(t *testing.T, cfg Config, fields WarcFields, block []byte) []byte {
	t.Helper()
	enc := NewPushEncoder(cfg)
	fields.Set(ContentLength, fmt.Sprintf("%d", len(block)))
	require.NoError(t, enc.WriteHeader(V1_1, fields))
	if len(block) > 0 {
		require.NoError(t, enc.WriteBlockChunk(block))
	}
	acc := NewChecksumAccumulator()
	acc.Write(block)
	require.NoError(t, enc.WriteBlockEnd(acc.Sum(), HasCRC32|HasCRC32C|HasXXH3))
	out := append([]byte{}, enc.Bytes()...)
	final, err := enc.Finish()
	require.NoError(t, err)
	return append(out, final...)
}

func decodeAll(t *testing.T, cfg Config, data []byte) []DecoderEvent {
	t.Helper()
	dec := NewPushDecoder("fixture.warc", cfg)
	_, err := dec.Write(data)
	require.NoError(t, err)
	require.NoError(t, dec.WriteEOF())
	events, err := dec.Events()
	require.NoError(t, err)
	return events
}

func TestPushEncoderDecoderRoundTripRaw(t *testing.T) {
	cfg := DefaultConfig()
	fields := WarcFields{}
	fields.Add(WarcRecordID, "<urn:uuid:rt-1>")
	fields.Add(WarcType, "resource")
	fields.Add(WarcDate, "2020-01-01T00:00:00Z")
	fields.Add(WarcTargetURI, "http://example.com/")
	fields.Add(ContentType, "text/plain")
	block := []byte("hello, warc")

	data := encodeOneRecord(t, cfg, fields, block)
	events := decodeAll(t, cfg, data)

	var gotHeader, gotEnd bool
	var gotBlock []byte
	for _, ev := range events {
		switch ev.Kind {
		case EventHeader:
			gotHeader = true
			assert.Equal(t, "resource", ev.Fields.Get(WarcType))
			assert.Equal(t, "http://example.com/", ev.Fields.Get(WarcTargetURI))
		case EventBlockChunk:
			gotBlock = append(gotBlock, ev.Data...)
		case EventBlockEnd:
			gotEnd = true
		}
	}
	assert.True(t, gotHeader)
	assert.True(t, gotEnd)
	assert.Equal(t, block, gotBlock)
}

func TestPushEncoderDecoderRoundTripGzip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compression = CompressionGzip
	fields := WarcFields{}
	fields.Add(WarcRecordID, "<urn:uuid:rt-2>")
	fields.Add(WarcType, "resource")
	fields.Add(WarcDate, "2020-01-01T00:00:00Z")
	fields.Add(ContentType, "text/plain")
	block := []byte("compressed payload")

	data := encodeOneRecord(t, cfg, fields, block)
	events := decodeAll(t, cfg, data)

	var gotBlock []byte
	for _, ev := range events {
		if ev.Kind == EventBlockChunk {
			gotBlock = append(gotBlock, ev.Data...)
		}
	}
	assert.Equal(t, block, gotBlock)
}

func TestPushDecoderMultipleRecordsInOneStream(t *testing.T) {
	cfg := DefaultConfig()
	var all []byte
	for i := 0; i < 3; i++ {
		fields := WarcFields{}
		fields.Add(WarcRecordID, fmt.Sprintf("<urn:uuid:multi-%d>", i))
		fields.Add(WarcType, "resource")
		fields.Add(WarcDate, "2020-01-01T00:00:00Z")
		fields.Add(ContentType, "text/plain")
		all = append(all, encodeOneRecord(t, cfg, fields, []byte(fmt.Sprintf("body-%d", i)))...)
	}

	events := decodeAll(t, cfg, all)
	var headerCount int
	for _, ev := range events {
		if ev.Kind == EventHeader {
			headerCount++
		}
	}
	assert.Equal(t, 3, headerCount)
}

func TestPushEncoderRejectsChecksumMismatch(t *testing.T) {
	cfg := DefaultConfig()
	enc := NewPushEncoder(cfg)
	fields := WarcFields{}
	fields.Add(WarcRecordID, "<urn:uuid:rt-3>")
	fields.Add(WarcType, "resource")
	fields.Add(WarcDate, "2020-01-01T00:00:00Z")
	fields.Add(ContentType, "text/plain")
	block := []byte("abc")
	fields.Set(ContentLength, "3")
	require.NoError(t, enc.WriteHeader(V1_1, fields))
	require.NoError(t, enc.WriteBlockChunk(block))
	err := enc.WriteBlockEnd(ChecksumSet{CRC32: 0xdeadbeef}, HasCRC32)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestPushEncoderRejectsLengthMismatch(t *testing.T) {
	cfg := DefaultConfig()
	enc := NewPushEncoder(cfg)
	fields := WarcFields{}
	fields.Add(WarcRecordID, "<urn:uuid:rt-4>")
	fields.Add(WarcType, "resource")
	fields.Add(WarcDate, "2020-01-01T00:00:00Z")
	fields.Add(ContentType, "text/plain")
	fields.Set(ContentLength, "10")
	require.NoError(t, enc.WriteHeader(V1_1, fields))
	err := enc.WriteBlockChunk([]byte("short"))
	require.NoError(t, err)
	err = enc.WriteBlockEnd(ChecksumSet{}, HasCRC32)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
