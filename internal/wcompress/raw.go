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

// rawDecoder is a pass-through: the whole stream is one synthetic member,
// per spec.md §4.1 "raw: pass-through; a single synthetic member spanning
// the whole stream."
type rawDecoder struct {
	offset     int64
	started    bool
	eof        bool
	pending    []byte
}

func newRawDecoder() *rawDecoder {
	return &rawDecoder{}
}

func (d *rawDecoder) Write(p []byte) (int, error) {
	d.pending = append(d.pending, p...)
	return len(p), nil
}

func (d *rawDecoder) WriteEOF() error {
	d.eof = true
	return nil
}

func (d *rawDecoder) Events() ([]Event, error) {
	var events []Event
	if !d.started {
		events = append(events, Event{Kind: EventMemberStart, CompressedOffset: 0})
		d.started = true
	}
	if len(d.pending) > 0 {
		data := d.pending
		d.pending = nil
		d.offset += int64(len(data))
		events = append(events, Event{Kind: EventData, Data: data})
	}
	if d.eof {
		events = append(events, Event{Kind: EventMemberEnd, CompressedEnd: d.offset, UncompressedLen: d.offset})
	}
	return events, nil
}

type rawEncoder struct {
	buf []byte
}

func newRawEncoder() *rawEncoder {
	return &rawEncoder{}
}

func (e *rawEncoder) BeginMember() error { return nil }

func (e *rawEncoder) Write(p []byte) (int, error) {
	e.buf = append(e.buf, p...)
	return len(p), nil
}

func (e *rawEncoder) EndMember() error { return nil }

func (e *rawEncoder) Finish() ([]byte, error) {
	return e.Bytes(), nil
}

func (e *rawEncoder) Bytes() []byte {
	b := e.buf
	e.buf = nil
	return b
}
