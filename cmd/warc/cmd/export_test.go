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

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlnwa/warccore"
	"github.com/nlnwa/warccore/format"
)

func TestToEnvelopeMapsMetadataEvent(t *testing.T) {
	env, ok := toEnvelope(warc.DecoderEvent{Kind: warc.EventMetadata, File: "a.warc", Position: 42})
	require.True(t, ok)
	require.NotNil(t, env.Metadata)
	assert.Equal(t, "a.warc", env.Metadata.File)
	assert.Equal(t, uint64(42), env.Metadata.Position)
}

func TestToEnvelopeMapsHeaderEventPreservingFieldOrder(t *testing.T) {
	fields := warc.WarcFields{}
	fields.Add("WARC-Type", "resource")
	fields.Add("Content-Length", "0")

	env, ok := toEnvelope(warc.DecoderEvent{Kind: warc.EventHeader, Version: warc.V1_1, Fields: fields})
	require.True(t, ok)
	require.NotNil(t, env.Header)
	assert.Equal(t, "WARC/1.1", env.Header.Version)
	require.Len(t, env.Header.Fields, 2)
	assert.Equal(t, format.FieldPair{"WARC-Type", "resource"}, env.Header.Fields[0])
	assert.Equal(t, format.FieldPair{"Content-Length", "0"}, env.Header.Fields[1])
}

func TestToEnvelopeMapsBlockChunkEvent(t *testing.T) {
	env, ok := toEnvelope(warc.DecoderEvent{Kind: warc.EventBlockChunk, Data: []byte("payload")})
	require.True(t, ok)
	require.NotNil(t, env.BlockChunk)
	assert.Equal(t, []byte("payload"), env.BlockChunk.Data)
}

func TestToEnvelopeMapsBlockEndEvent(t *testing.T) {
	sum := warc.ChecksumSet{CRC32: 1, CRC32C: 2, XXH3: 3}
	env, ok := toEnvelope(warc.DecoderEvent{Kind: warc.EventBlockEnd, Checksums: sum})
	require.True(t, ok)
	require.NotNil(t, env.BlockEnd)
	assert.Equal(t, uint32(1), *env.BlockEnd.CRC32)
	assert.Equal(t, uint32(2), *env.BlockEnd.CRC32C)
	assert.Equal(t, uint64(3), *env.BlockEnd.XXH3)
}

func TestToEnvelopeMapsEndOfFileEvent(t *testing.T) {
	env, ok := toEnvelope(warc.DecoderEvent{Kind: warc.EventEndOfFile})
	require.True(t, ok)
	assert.NotNil(t, env.EndOfFile)
}

func TestToEnvelopeRejectsUnknownKind(t *testing.T) {
	_, ok := toEnvelope(warc.DecoderEvent{Kind: warc.DecoderEventKind(255)})
	assert.False(t, ok)
}
