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
	"github.com/nlnwa/warccore/internal/wcompress"
	"github.com/nlnwa/warccore/internal/wscan"
)

// DecoderEventKind identifies which member of DecoderEvent is populated.
type DecoderEventKind uint8

const (
	EventMetadata DecoderEventKind = iota
	EventHeader
	EventBlockChunk
	EventBlockEnd
	EventEndOfFile
)

// DecoderEvent is the union of values a PushDecoder can yield from Events,
// per spec.md §4.3. Within one record, events always arrive in the order
// Metadata, Header, BlockChunk* (zero or more), BlockEnd.
type DecoderEvent struct {
	Kind DecoderEventKind

	// Metadata
	File     string
	Position int64 // the record's MemberStart offset in the driver's input

	// Header
	Version    RecordVersion
	Fields     WarcFields
	RecordType RecordType
	Validation *Validation // non-nil only if non-strict validation found issues

	// BlockChunk
	Data []byte

	// BlockEnd
	Checksums ChecksumSet
	// MemberSpan is the number of container members this record's bytes
	// were drawn from (spec.md §4.7 "Record-at-a-time compression
	// check"). It is 1 for a well-formed record-at-a-time archive, 0 in
	// raw mode where the check does not apply, and >1 when the record
	// crossed into a following member.
	MemberSpan int
}

type pdState uint8

const (
	pdBoundary pdState = iota
	pdHeader
	pdBlock
	pdTrailer
)

// PushDecoder drives a CompressionCodec decoder and a header parser over a
// byte stream, yielding the event sequence described in spec.md §4.3. It
// is sans-I/O: Write appends bytes, WriteEOF signals the end of input, and
// Events drains whatever can now be produced.
type PushDecoder struct {
	codec wcompress.Decoder
	cfg   Config
	file  string

	compressed bool
	state      pdState

	buf          []byte
	memberStarts []int64
	eofWritten   bool

	pos         int64 // running synthetic offset, used only in raw mode
	curPosition int64

	remaining  int64
	checksums  *ChecksumAccumulator
	trailerAcc []byte

	done bool

	// Member-span bookkeeping (compressed mode only): bufAppended and
	// bufConsumed are cumulative byte counts in the same stream-position
	// space, memberBoundaryAt records the bufAppended value at each
	// member's first byte, and recordStartConsumed snapshots bufConsumed
	// when the current record's header begins. A boundary strictly
	// between recordStartConsumed and the record's final bufConsumed
	// means the record drew bytes from a following member.
	bufAppended         int64
	bufConsumed         int64
	memberBoundaryAt    []int64
	recordStartConsumed int64
}

// NewPushDecoder constructs a decoder for file (used only to label Metadata
// events) under cfg.
func NewPushDecoder(file string, cfg Config) *PushDecoder {
	return &PushDecoder{
		codec:      wcompress.NewDecoder(cfg.Compression.mode()),
		cfg:        cfg,
		file:       file,
		compressed: cfg.Compression != CompressionNone,
	}
}

// Write appends compressed (or raw) bytes to the decoder's input.
func (d *PushDecoder) Write(p []byte) (int, error) {
	return d.codec.Write(p)
}

// WriteEOF signals that no more input will arrive.
func (d *PushDecoder) WriteEOF() error {
	d.eofWritten = true
	return d.codec.WriteEOF()
}

// Events drains the decoder's codec and runs the record state machine as
// far as the currently buffered bytes allow, returning whatever events
// that produces. Call it again after more Write calls to continue.
func (d *PushDecoder) Events() ([]DecoderEvent, error) {
	cevents, err := d.codec.Events()
	if err != nil {
		return nil, mapContainerError(err)
	}
	for _, ce := range cevents {
		switch ce.Kind {
		case wcompress.EventMemberStart:
			if d.compressed {
				d.memberStarts = append(d.memberStarts, ce.CompressedOffset)
				d.memberBoundaryAt = append(d.memberBoundaryAt, d.bufAppended)
			}
		case wcompress.EventData:
			d.buf = append(d.buf, ce.Data...)
			d.bufAppended += int64(len(ce.Data))
		case wcompress.EventMemberEnd:
			// Member/record alignment is the verifier's concern
			// (spec.md §4.7 "Record-at-a-time compression check"),
			// not the decoder's; the decoder only needs the member
			// start offsets.
		}
	}

	var out []DecoderEvent
	for {
		progressed, events, stepErr := d.step()
		out = append(out, events...)
		if stepErr != nil {
			return out, stepErr
		}
		if !progressed {
			break
		}
	}
	return out, nil
}

func (d *PushDecoder) streamExhausted() bool {
	if !d.eofWritten || len(d.buf) != 0 {
		return false
	}
	if d.compressed {
		return len(d.memberStarts) == 0
	}
	return true
}

func (d *PushDecoder) step() (progressed bool, events []DecoderEvent, err error) {
	switch d.state {
	case pdBoundary:
		return d.stepBoundary()
	case pdHeader:
		return d.stepHeader()
	case pdBlock:
		return d.stepBlock()
	case pdTrailer:
		return d.stepTrailer()
	default:
		return false, nil, nil
	}
}

func (d *PushDecoder) stepBoundary() (bool, []DecoderEvent, error) {
	if d.done {
		return false, nil, nil
	}
	if d.compressed {
		if len(d.memberStarts) == 0 {
			if d.streamExhausted() {
				d.done = true
				return true, []DecoderEvent{{Kind: EventEndOfFile}}, nil
			}
			return false, nil, nil
		}
		d.curPosition = d.memberStarts[0]
		d.memberStarts = d.memberStarts[1:]
	} else {
		if len(d.buf) == 0 {
			if d.streamExhausted() {
				d.done = true
				return true, []DecoderEvent{{Kind: EventEndOfFile}}, nil
			}
			return false, nil, nil
		}
		d.curPosition = d.pos
	}
	d.state = pdHeader
	d.recordStartConsumed = d.bufConsumed
	return true, []DecoderEvent{{Kind: EventMetadata, File: d.file, Position: d.curPosition}}, nil
}

func (d *PushDecoder) stepHeader() (bool, []DecoderEvent, error) {
	consumed, ok := wscan.ScanHeaderBlock(d.buf)
	if !ok {
		if d.streamExhausted() {
			return false, nil, ErrTruncatedMember
		}
		return false, nil, nil
	}
	block := d.buf[:consumed]
	versionLine, lineConsumed, lok := wscan.ScanLine(block)
	if !lok {
		return false, nil, ErrInvalidVersion
	}
	version, verr := ParseVersionLine(versionLine)
	if verr != nil {
		return false, nil, verr
	}

	nvs, perr := wscan.ParseFields(block[lineConsumed:])
	if perr != nil {
		return false, nil, NewWrappedSyntaxError("invalid header", perr)
	}
	wf := WarcFields{}
	for _, nv := range nvs {
		wf.Add(nv.Name, nv.Value)
	}
	rt, validation := ValidateHeader(&wf, version, false)
	rec := Record{Version: version, Type: rt, Header: wf}
	contentLength, clerr := rec.ContentLength()
	if clerr != nil {
		return false, nil, clerr
	}

	d.buf = d.buf[consumed:]
	d.bufConsumed += int64(consumed)
	if !d.compressed {
		d.pos += int64(consumed)
	}
	d.remaining = contentLength
	d.checksums = NewChecksumAccumulator()
	d.state = pdBlock

	ev := DecoderEvent{
		Kind:       EventHeader,
		File:       d.file,
		Position:   d.curPosition,
		Version:    version,
		Fields:     wf,
		RecordType: rt,
	}
	if !validation.Valid() {
		ev.Validation = validation
	}
	return true, []DecoderEvent{ev}, nil
}

func (d *PushDecoder) stepBlock() (bool, []DecoderEvent, error) {
	if d.remaining == 0 {
		sum := d.checksums.Sum()
		d.checksums = nil
		d.state = pdTrailer
		d.trailerAcc = nil
		return true, []DecoderEvent{{Kind: EventBlockEnd, Checksums: sum, MemberSpan: d.memberSpan()}}, nil
	}
	if len(d.buf) == 0 {
		if d.streamExhausted() {
			return false, nil, ErrTruncatedMember
		}
		return false, nil, nil
	}
	n := d.remaining
	if int64(len(d.buf)) < n {
		n = int64(len(d.buf))
	}
	chunk := d.buf[:n]
	d.checksums.Write(chunk)
	data := make([]byte, len(chunk))
	copy(data, chunk)
	d.buf = d.buf[n:]
	d.bufConsumed += n
	if !d.compressed {
		d.pos += n
	}
	d.remaining -= n
	return true, []DecoderEvent{{Kind: EventBlockChunk, Data: data}}, nil
}

func (d *PushDecoder) stepTrailer() (bool, []DecoderEvent, error) {
	need := 4 - len(d.trailerAcc)
	if need > 0 {
		if len(d.buf) == 0 {
			if d.streamExhausted() {
				return false, nil, ErrMissingTrailer
			}
			return false, nil, nil
		}
		take := int64(need)
		if int64(len(d.buf)) < take {
			take = int64(len(d.buf))
		}
		d.trailerAcc = append(d.trailerAcc, d.buf[:take]...)
		d.buf = d.buf[take:]
		d.bufConsumed += take
		if !d.compressed {
			d.pos += take
		}
		if len(d.trailerAcc) < 4 {
			return true, nil, nil
		}
	}
	if string(d.trailerAcc) != crlfcrlf {
		return false, nil, ErrMissingTrailer
	}
	d.trailerAcc = nil
	d.state = pdBoundary
	return true, nil, nil
}

// memberSpan returns how many container members the current record has
// drawn bytes from so far (1 in the well-aligned case, 0 if member
// tracking does not apply in raw mode), and prunes boundary marks that no
// future record can straddle.
func (d *PushDecoder) memberSpan() int {
	if !d.compressed {
		return 0
	}
	span := 1
	kept := d.memberBoundaryAt[:0]
	for _, b := range d.memberBoundaryAt {
		if b > d.recordStartConsumed && b <= d.bufConsumed {
			span++
		}
		if b > d.bufConsumed {
			kept = append(kept, b)
		}
	}
	d.memberBoundaryAt = kept
	return span
}

func mapContainerError(err error) error {
	switch err {
	case wcompress.ErrTruncatedMember:
		return ErrTruncatedMember
	case wcompress.ErrBadMagic:
		return ErrBadMagic
	case wcompress.ErrDictionaryWithoutFrame:
		return ErrDictionaryWithoutFrame
	case wcompress.ErrUnexpectedCompression:
		return ErrUnexpectedCompression
	default:
		return err
	}
}
