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

package format

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// CBORSeqWriter implements RFC 8742's "sequence of encoded CBOR data
// items": back-to-back cbor.Encoder.Encode calls over the same stream, one
// item per record event, with no additional delimiter.
type CBORSeqWriter struct {
	enc *cbor.Encoder
}

func NewCBORSeqWriter(w io.Writer) *CBORSeqWriter {
	return &CBORSeqWriter{enc: cbor.NewEncoder(w)}
}

func (s *CBORSeqWriter) Write(e Envelope) error {
	return s.enc.Encode(e)
}

// CBORSeqReader reads back what CBORSeqWriter produces.
type CBORSeqReader struct {
	dec *cbor.Decoder
}

func NewCBORSeqReader(r io.Reader) *CBORSeqReader {
	return &CBORSeqReader{dec: cbor.NewDecoder(r)}
}

func (s *CBORSeqReader) Read() (Envelope, error) {
	var e Envelope
	err := s.dec.Decode(&e)
	return e, err
}
