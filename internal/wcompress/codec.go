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

// Package wcompress implements the uniform push decoder/encoder for the
// three WARC container framings: raw, concatenated gzip members, and
// concatenated zstd frames with optional per-record skippable-frame
// dictionaries. See spec.md §4.1.
package wcompress

import "errors"

// Mode selects a container framing.
type Mode uint8

const (
	Raw Mode = iota
	Gzip
	Zstd
)

func (m Mode) String() string {
	switch m {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

// Level maps the CLI's {low,balanced,high} compression-level family onto
// codec-specific knobs.
type Level uint8

const (
	LevelBalanced Level = iota
	LevelLow
	LevelHigh
)

// Event is the union of values a Decoder can yield from Events.
type Event struct {
	Kind              EventKind
	CompressedOffset  int64 // MemberStart
	Data              []byte
	CompressedEnd     int64 // MemberEnd
	UncompressedLen   int64 // MemberEnd
}

type EventKind uint8

const (
	EventMemberStart EventKind = iota
	EventData
	EventMemberEnd
)

// Errors mirror spec.md §4.1 "Failure modes".
var (
	ErrTruncatedMember        = errors.New("wcompress: truncated member")
	ErrBadMagic               = errors.New("wcompress: bad magic for compression member")
	ErrDictionaryWithoutFrame = errors.New("wcompress: zstd skippable dictionary frame not followed by a data frame")
	ErrUnexpectedCompression  = errors.New("wcompress: raw stream contains bytes matching a compression magic")
)

// Decoder is a push-style decompressor: Write appends compressed bytes,
// Events drains whatever complete members can be produced from the bytes
// seen so far, and WriteEOF signals that no more input will arrive.
//
// Implementations buffer unconsumed input internally (stdlib and
// klauspost's compressors only expose blocking io.Reader decoders) but
// never perform I/O themselves and never require more buffered input than
// one member's worth plus the decompressor's own window.
type Decoder interface {
	Write(p []byte) (n int, err error)
	WriteEOF() error
	Events() ([]Event, error)
}

// Encoder is a push-style compressor: BeginMember/Write/EndMember frame
// one container member, Finish flushes any trailing state.
type Encoder interface {
	BeginMember() error
	Write(p []byte) (n int, err error)
	EndMember() error
	Finish() ([]byte, error)
	// Bytes returns (and clears) whatever framed output is ready so far.
	Bytes() []byte
}

// NewDecoder returns a Decoder for the given Mode.
func NewDecoder(mode Mode) Decoder {
	switch mode {
	case Gzip:
		return newGzipDecoder()
	case Zstd:
		return newZstdDecoder()
	default:
		return newRawDecoder()
	}
}

// NewEncoder returns an Encoder for the given Mode.
func NewEncoder(mode Mode, level Level) Encoder {
	switch mode {
	case Gzip:
		return newGzipEncoder(level)
	case Zstd:
		return newZstdEncoder(level)
	default:
		return newRawEncoder()
	}
}
