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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlnwa/warccore"
)

func withFlags(t *testing.T, set globalFlags) {
	t.Helper()
	saved := flags
	flags = set
	t.Cleanup(func() { flags = saved })
}

func TestDetectCompressionSniffsKnownSuffixes(t *testing.T) {
	withFlags(t, globalFlags{compression: "auto"})

	cfg := detectCompression(warc.DefaultConfig(), "archive.warc.gz")
	assert.Equal(t, warc.CompressionGzip, cfg.Compression)

	cfg = detectCompression(warc.DefaultConfig(), "archive.warc.zst")
	assert.Equal(t, warc.CompressionZstd, cfg.Compression)

	cfg = detectCompression(warc.DefaultConfig(), "archive.warc")
	assert.Equal(t, warc.CompressionNone, cfg.Compression)
}

func TestDetectCompressionFallsBackToRawOnStdio(t *testing.T) {
	withFlags(t, globalFlags{compression: "auto"})

	cfg := detectCompression(warc.DefaultConfig(), "-")
	assert.Equal(t, warc.CompressionNone, cfg.Compression)
}

func TestDetectCompressionLeavesExplicitChoiceAlone(t *testing.T) {
	withFlags(t, globalFlags{compression: "gzip"})

	cfg := detectCompression(warc.DefaultConfig(), "archive.warc.zst")
	assert.Equal(t, warc.CompressionNone, cfg.Compression, "explicit flags.compression bypasses suffix sniffing")
}

func TestBuildConfigResolvesAutoCompressionByOutputSuffix(t *testing.T) {
	withFlags(t, globalFlags{compression: "auto", compressionLevel: "balanced"})

	cfg, err := buildConfig("out.warc.gz")
	require.NoError(t, err)
	assert.Equal(t, warc.CompressionGzip, cfg.Compression)
}

func TestBuildConfigPropagatesExplicitCompressionAndLevel(t *testing.T) {
	withFlags(t, globalFlags{compression: "zstd", compressionLevel: "high"})

	cfg, err := buildConfig("ignored.warc")
	require.NoError(t, err)
	assert.Equal(t, warc.CompressionZstd, cfg.Compression)
	assert.Equal(t, warc.LevelHigh, cfg.CompressionLevel)
}

func TestBuildConfigRejectsUnknownCompressionFlag(t *testing.T) {
	withFlags(t, globalFlags{compression: "lzma"})

	_, err := buildConfig("archive.warc")
	assert.Error(t, err)
}

func TestBuildConfigRejectsUnknownCompressionLevelFlag(t *testing.T) {
	withFlags(t, globalFlags{compression: "none", compressionLevel: "ludicrous"})

	_, err := buildConfig("archive.warc")
	assert.Error(t, err)
}

func TestNewEnvelopeWriterDispatchesOnFormatFlag(t *testing.T) {
	withFlags(t, globalFlags{format: "json-seq"})
	w, err := newEnvelopeWriter(&bytes.Buffer{})
	require.NoError(t, err)
	assert.NotNil(t, w)

	withFlags(t, globalFlags{format: ""})
	w, err = newEnvelopeWriter(&bytes.Buffer{})
	require.NoError(t, err)
	assert.NotNil(t, w)

	withFlags(t, globalFlags{format: "cbor-seq"})
	w, err = newEnvelopeWriter(&bytes.Buffer{})
	require.NoError(t, err)
	assert.NotNil(t, w)

	withFlags(t, globalFlags{format: "csv"})
	_, err = newEnvelopeWriter(&bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewEnvelopeReaderDispatchesOnFormatFlag(t *testing.T) {
	withFlags(t, globalFlags{format: "jsonl"})
	r, err := newEnvelopeReader(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.NotNil(t, r)

	withFlags(t, globalFlags{format: "unknown"})
	_, err = newEnvelopeReader(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestOpenInputResolvesDashToStdin(t *testing.T) {
	rc, err := openInput("-")
	require.NoError(t, err)
	defer rc.Close()
	assert.NotNil(t, rc)
}

func TestOpenOutputResolvesDashToStdout(t *testing.T) {
	wc, err := openOutput("")
	require.NoError(t, err)
	defer wc.Close()
	assert.NotNil(t, wc)
}
