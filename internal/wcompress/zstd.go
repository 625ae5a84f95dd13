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
	"encoding/binary"
	"errors"
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdSkippableMagicLo/Hi bound the skippable-frame magic range this codec
// recognizes as carrying a per-record dictionary (spec.md §4.1, Open
// Question (i)): 0x184D2A5D-0x184D2A5F. Other skippable frames in the
// broader 0x184D2A50-0x184D2A5F range are passed over without being
// interpreted as a dictionary.
const (
	zstdSkippableMagicLo uint32 = 0x184D2A5D
	zstdSkippableMagicHi uint32 = 0x184D2A5F
	zstdSkippableHdrLen          = 8 // magic(4) + frame size(4)
)

// zstdDecoder decodes one zstd data frame per WARC record, optionally
// preceded by a skippable frame carrying a dictionary scoped to exactly
// that following data frame.
type zstdDecoder struct {
	buf      []byte
	offset   int64
	eof      bool
	finished bool
}

func newZstdDecoder() *zstdDecoder {
	return &zstdDecoder{}
}

func (d *zstdDecoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

func (d *zstdDecoder) WriteEOF() error {
	d.eof = true
	return nil
}

func (d *zstdDecoder) Events() ([]Event, error) {
	var events []Event
	for {
		if d.finished || len(d.buf) == 0 {
			break
		}
		memberStart := d.offset

		var dict []byte
		cursor := d.buf
		consumedHeader := int64(0)
		if len(cursor) >= 4 {
			magic := binary.LittleEndian.Uint32(cursor[:4])
			if magic >= zstdSkippableMagicLo && magic <= zstdSkippableMagicHi {
				if len(cursor) < zstdSkippableHdrLen {
					if d.eof {
						return events, ErrTruncatedMember
					}
					break // need more bytes to read the skippable frame size
				}
				size := binary.LittleEndian.Uint32(cursor[4:8])
				total := zstdSkippableHdrLen + int(size)
				if len(cursor) < total {
					if d.eof {
						return events, ErrTruncatedMember
					}
					break // dictionary frame not fully buffered yet
				}
				dict = append([]byte(nil), cursor[zstdSkippableHdrLen:total]...)
				cursor = cursor[total:]
				consumedHeader = int64(total)
				if len(cursor) == 0 {
					if d.eof {
						return events, ErrDictionaryWithoutFrame
					}
					break // the data frame the dictionary applies to hasn't arrived
				}
			}
		}

		frameLen, complete := zstdFrameLen(cursor, d.eof)
		if !complete {
			if d.eof && len(cursor) > 0 {
				return events, ErrTruncatedMember
			}
			break // the data frame hasn't fully arrived yet
		}

		var opts []zstd.DOption
		if dict != nil {
			opts = append(opts, zstd.WithDecoderDicts(dict))
		}
		dec, err := zstd.NewReader(bytes.NewReader(cursor[:frameLen]), opts...)
		if err != nil {
			return events, ErrBadMagic
		}

		var out bytes.Buffer
		_, streamErr := io.Copy(&out, dec)
		dec.Close()

		if streamErr != nil {
			if d.needMore(streamErr) {
				break
			}
			return events, ErrTruncatedMember
		}

		totalConsumed := consumedHeader + int64(frameLen)

		events = append(events,
			Event{Kind: EventMemberStart, CompressedOffset: memberStart},
			Event{Kind: EventData, Data: out.Bytes()},
			Event{Kind: EventMemberEnd, CompressedEnd: memberStart + totalConsumed, UncompressedLen: int64(out.Len())},
		)

		d.buf = d.buf[totalConsumed:]
		d.offset += totalConsumed
	}
	if d.eof && len(d.buf) == 0 {
		d.finished = true
	}
	return events, nil
}

// zstdFrameLen reports how many leading bytes of buf make up a single zstd
// data frame. klauspost/compress does not expose frame boundary offsets
// directly, and the encoder always writes exactly one record's data per
// frame, so the boundary is recovered by scanning for the next frame or
// skippable-frame magic. If no following magic has arrived yet, the frame
// is reported complete only once the stream has reached EOF (the rest of
// buf is then the whole, final frame); otherwise complete is false and the
// caller should wait for more input.
func zstdFrameLen(buf []byte, eof bool) (length int, complete bool) {
	if len(buf) < 4 {
		return 0, false
	}
	for i := 4; i+4 <= len(buf); i++ {
		magic := binary.LittleEndian.Uint32(buf[i : i+4])
		if magic == zstdMagic || (magic >= 0x184D2A50 && magic <= 0x184D2A5F) {
			return i, true
		}
	}
	if eof {
		return len(buf), true
	}
	return 0, false
}

const zstdMagic uint32 = 0xFD2FB528

func (d *zstdDecoder) needMore(err error) bool {
	return !d.eof && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF))
}

// zstdEncoder frames one zstd data frame per record. It never emits a
// skippable dictionary frame.
type zstdEncoder struct {
	level zstd.EncoderLevel
	out   bytes.Buffer
	enc   *zstd.Encoder
	buf   bytes.Buffer
}

func newZstdEncoder(level Level) *zstdEncoder {
	return &zstdEncoder{level: zstdLevel(level)}
}

func zstdLevel(l Level) zstd.EncoderLevel {
	switch l {
	case LevelLow:
		return zstd.SpeedFastest
	case LevelHigh:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func (e *zstdEncoder) BeginMember() error {
	e.buf.Reset()
	enc, err := zstd.NewWriter(&e.buf, zstd.WithEncoderLevel(e.level))
	if err != nil {
		return err
	}
	e.enc = enc
	return nil
}

func (e *zstdEncoder) Write(p []byte) (int, error) {
	return e.enc.Write(p)
}

func (e *zstdEncoder) EndMember() error {
	if e.enc == nil {
		return nil
	}
	if err := e.enc.Close(); err != nil {
		return err
	}
	e.enc = nil
	e.out.Write(e.buf.Bytes())
	return nil
}

func (e *zstdEncoder) Finish() ([]byte, error) {
	return e.Bytes(), nil
}

func (e *zstdEncoder) Bytes() []byte {
	b := e.out.Bytes()
	cp := make([]byte, len(b))
	copy(cp, b)
	e.out.Reset()
	return cp
}
