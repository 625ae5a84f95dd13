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

package wcompress

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipDecoder decodes a stream of concatenated gzip members, one per WARC
// record ("record-at-a-time" framing, spec.md §4.1). klauspost/compress's
// gzip.Reader only exposes a blocking io.Reader, so the push Write/Events
// contract is satisfied by buffering whatever bytes have arrived and
// re-attempting the decode of the next member from the last confirmed
// offset on every Events call. A read failure that happens exactly at the
// end of the buffered bytes is treated as "not enough data yet"; any other
// failure is reported as a genuine corruption error.
type gzipDecoder struct {
	buf      []byte
	offset   int64 // compressed bytes fully consumed and confirmed so far
	eof      bool
	finished bool
}

func newGzipDecoder() *gzipDecoder {
	return &gzipDecoder{}
}

func (d *gzipDecoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

func (d *gzipDecoder) WriteEOF() error {
	d.eof = true
	return nil
}

func (d *gzipDecoder) Events() ([]Event, error) {
	var events []Event
	for {
		if d.finished || len(d.buf) == 0 {
			break
		}
		memberStart := d.offset
		r := bytes.NewReader(d.buf)
		gz, err := gzip.NewReader(r)
		if err != nil {
			if d.needMore(err, r) {
				break
			}
			return events, ErrBadMagic
		}
		gz.Multistream(false)

		var out bytes.Buffer
		_, err = io.Copy(&out, gz)
		if err != nil {
			if d.needMore(err, r) {
				break
			}
			return events, ErrTruncatedMember
		}

		consumed := int64(len(d.buf)) - int64(r.Len())
		events = append(events,
			Event{Kind: EventMemberStart, CompressedOffset: memberStart},
			Event{Kind: EventData, Data: out.Bytes()},
			Event{Kind: EventMemberEnd, CompressedEnd: memberStart + consumed, UncompressedLen: int64(out.Len())},
		)

		d.buf = d.buf[consumed:]
		d.offset += consumed
	}
	if d.eof && len(d.buf) == 0 {
		d.finished = true
	}
	return events, nil
}

// needMore reports whether err looks like the gzip reader simply ran out of
// buffered bytes (as opposed to finding corrupt data), given that r has been
// fully drained by the failed read attempt.
func (d *gzipDecoder) needMore(err error, r *bytes.Reader) bool {
	if !d.eof && errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return r.Len() == 0 && !d.eof
	}
	return false
}

// gzipEncoder frames one gzip member per record via BeginMember/EndMember.
type gzipEncoder struct {
	level int
	out   bytes.Buffer
	gz    *gzip.Writer
}

func newGzipEncoder(level Level) *gzipEncoder {
	return &gzipEncoder{level: gzipLevel(level)}
}

func gzipLevel(l Level) int {
	switch l {
	case LevelLow:
		return gzip.BestSpeed
	case LevelHigh:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func (e *gzipEncoder) BeginMember() error {
	gz, err := gzip.NewWriterLevel(&e.out, e.level)
	if err != nil {
		return err
	}
	e.gz = gz
	return nil
}

func (e *gzipEncoder) Write(p []byte) (int, error) {
	return e.gz.Write(p)
}

func (e *gzipEncoder) EndMember() error {
	if e.gz == nil {
		return nil
	}
	err := e.gz.Close()
	e.gz = nil
	return err
}

func (e *gzipEncoder) Finish() ([]byte, error) {
	return e.Bytes(), nil
}

func (e *gzipEncoder) Bytes() []byte {
	b := e.out.Bytes()
	cp := make([]byte, len(b))
	copy(cp, b)
	e.out.Reset()
	return cp
}
