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

	"github.com/nlnwa/warccore/internal/wcompress"
)

// ChecksumPresence marks which members of a ChecksumSet a caller actually
// supplied to WriteBlockEnd; spec.md §4.4 only requires at least one of
// {crc32, crc32c, xxh3} to be present on the wire.
type ChecksumPresence uint8

const (
	HasCRC32 ChecksumPresence = 1 << iota
	HasCRC32C
	HasXXH3
)

type peState uint8

const (
	peIdle peState = iota
	peBlock
)

// PushEncoder is the inverse of PushDecoder: it accepts the same event
// vocabulary (minus Metadata/EndOfFile) and produces framed WARC bytes
// through a CompressionCodec encoder, per spec.md §4.4.
type PushEncoder struct {
	codec wcompress.Encoder
	cfg   Config

	state     peState
	remaining int64
	written   int64
	checksums *ChecksumAccumulator
}

// NewPushEncoder constructs an encoder under cfg.
func NewPushEncoder(cfg Config) *PushEncoder {
	return &PushEncoder{
		codec: wcompress.NewEncoder(cfg.Compression.mode(), cfg.CompressionLevel.level()),
		cfg:   cfg,
	}
}

// WriteHeader begins a new record: it opens a container member (in gzip or
// zstd mode) and writes the version line and header fields. Content-Length
// must be present and parse as a non-negative integer; it is the
// authoritative expected block length for the WriteBlockChunk calls that
// follow.
func (e *PushEncoder) WriteHeader(version RecordVersion, fields WarcFields) error {
	if e.state != peIdle {
		return newHeaderFieldError("", "WriteHeader called while a record is already open")
	}
	cl := fields.Get(ContentLength)
	if cl == "" {
		return newHeaderFieldError(ContentLength, "missing")
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return ErrInvalidHeader
	}

	if err := e.codec.BeginMember(); err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString(FormatVersionLine(version))
	fields.WriteTo(&sb)
	sb.WriteString(crlf)
	if _, err := e.codec.Write([]byte(sb.String())); err != nil {
		return err
	}

	e.remaining = n
	e.written = 0
	e.checksums = NewChecksumAccumulator()
	e.state = peBlock
	return nil
}

// WriteBlockChunk writes one chunk of block payload. The cumulative length
// of all chunks for this record must not exceed the Content-Length
// declared to WriteHeader.
func (e *PushEncoder) WriteBlockChunk(data []byte) error {
	if e.state != peBlock {
		return newHeaderFieldError("", "WriteBlockChunk called with no open record")
	}
	if e.written+int64(len(data)) > e.remaining {
		return ErrLengthMismatch
	}
	e.checksums.Write(data)
	e.written += int64(len(data))
	_, err := e.codec.Write(data)
	return err
}

// WriteBlockEnd closes the current record's block: it verifies that the
// sum of WriteBlockChunk lengths matches the declared Content-Length and
// that every checksum present in sum agrees with what was actually
// written, then emits the two-CRLF trailer and closes the container
// member.
func (e *PushEncoder) WriteBlockEnd(sum ChecksumSet, present ChecksumPresence) error {
	if e.state != peBlock {
		return newHeaderFieldError("", "WriteBlockEnd called with no open record")
	}
	if e.written != e.remaining {
		return ErrLengthMismatch
	}
	if present == 0 {
		return newHeaderFieldError("", "BlockEnd requires at least one checksum")
	}
	computed := e.checksums.Sum()
	e.checksums = nil
	if present&HasCRC32 != 0 && sum.CRC32 != computed.CRC32 {
		return ErrChecksumMismatch
	}
	if present&HasCRC32C != 0 && sum.CRC32C != computed.CRC32C {
		return ErrChecksumMismatch
	}
	if present&HasXXH3 != 0 && sum.XXH3 != computed.XXH3 {
		return ErrChecksumMismatch
	}

	if _, err := e.codec.Write([]byte(crlfcrlf)); err != nil {
		return err
	}
	if err := e.codec.EndMember(); err != nil {
		return err
	}
	e.state = peIdle
	return nil
}

// Bytes drains whatever framed output is ready so far, without requiring
// the in-progress record (if any) to be finished.
func (e *PushEncoder) Bytes() []byte {
	return e.codec.Bytes()
}

// Finish flushes any trailing container state (e.g. the zstd/gzip
// encoder's final bytes) and returns everything not yet drained via Bytes.
// It must only be called with no record in progress.
func (e *PushEncoder) Finish() ([]byte, error) {
	if e.state != peIdle {
		return nil, newHeaderFieldError("", "Finish called with a record still open")
	}
	return e.codec.Finish()
}
