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
	"strings"

	"github.com/nlnwa/warccore/internal/wcompress"
)

// Compression selects the container framing a PushDecoder/PushEncoder
// drives, mirroring internal/wcompress.Mode without exposing that package
// from the public API.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

func (c Compression) mode() wcompress.Mode {
	switch c {
	case CompressionGzip:
		return wcompress.Gzip
	case CompressionZstd:
		return wcompress.Zstd
	default:
		return wcompress.Raw
	}
}

// ParseCompression accepts "none", "gzip", "zstd" (case-insensitive).
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, newHeaderFieldErrorf("", "unknown compression %q", s)
	}
}

// CompressionLevel maps the CLI's {low,balanced,high} family onto
// codec-specific knobs.
type CompressionLevel uint8

const (
	LevelBalanced CompressionLevel = iota
	LevelLow
	LevelHigh
)

func (l CompressionLevel) level() wcompress.Level {
	switch l {
	case LevelLow:
		return wcompress.LevelLow
	case LevelHigh:
		return wcompress.LevelHigh
	default:
		return wcompress.LevelBalanced
	}
}

// ParseCompressionLevel accepts "low", "balanced", "high".
func ParseCompressionLevel(s string) (CompressionLevel, error) {
	switch s {
	case "", "balanced":
		return LevelBalanced, nil
	case "low":
		return LevelLow, nil
	case "high":
		return LevelHigh, nil
	default:
		return LevelBalanced, newHeaderFieldErrorf("", "unknown compression level %q", s)
	}
}

// Config is the single explicit configuration value threaded through
// every operation (spec.md §9 "Global state: None"). Apart from the `now`
// clock hook in filewriter.go, this package keeps no package-level mutable
// state; every exported constructor that needs configuration takes a
// Config by value.
type Config struct {
	// Compression selects the container framing driving Write/Events.
	Compression Compression
	// CompressionLevel only matters to a PushEncoder/CompressionCodec
	// Encoder; it is ignored when decoding.
	CompressionLevel CompressionLevel
	// DigestAlgorithms lists digest algorithms. Only the first entry is
	// used: WarcFileWriter computes the WARC-Block-Digest of its automatic
	// warcinfo record with it. PushEncoder does not compute or stamp
	// WARC-Block-Digest/WARC-Payload-Digest fields.
	DigestAlgorithms []string
	// LenientTrailingBytes, when true, makes HttpPayloadExtractor treat
	// bytes beyond a declared Content-Length body as ignorable trailing
	// garbage instead of a hard error (spec.md §4.5).
	LenientTrailingBytes bool
	// RecordAtATimeCompression records whether the container holds one
	// member per record. Nothing in this module reads it: the verifier's
	// member/record alignment check runs whenever Compression is gzip or
	// zstd, whatever this field says.
	RecordAtATimeCompression bool
	// DefaultDigestEncoding is used by VerifyDigestField when a declared
	// digest's encoding can't be inferred unambiguously from its length.
	DefaultDigestEncoding DigestEncoding
}

// DefaultConfig returns the recommended configuration. Constructors use
// the Config they are given as is; a zero Config is not replaced by this
// one (only an empty DigestAlgorithms falls back to sha1).
func DefaultConfig() Config {
	return Config{
		Compression:              CompressionNone,
		CompressionLevel:         LevelBalanced,
		DigestAlgorithms:         []string{"sha1"},
		LenientTrailingBytes:     false,
		RecordAtATimeCompression: true,
		DefaultDigestEncoding:    Base32,
	}
}

func (c Config) digestAlgorithms() []string {
	if len(c.DigestAlgorithms) == 0 {
		return []string{"sha1"}
	}
	return c.DigestAlgorithms
}
