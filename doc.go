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

// Package warc implements a sans-I/O codec for the WARC (ISO 28500) file
// format: a push-style decoder that turns a byte stream into a sequence of
// record events, the inverse encoder, HTTP payload extraction for
// response/request/revisit records, and the digest machinery used to
// verify block and payload integrity.
//
// No type in this package performs I/O. Callers push bytes in with Write
// and pull events out with the Events method, in a loop, wiring the
// package to files, sockets, or an in-memory buffer identically.
// Compression container framing lives in the sibling package
// internal/wcompress; cross-record verification lives in the sibling
// package verify; file-path derivation for extracted payloads lives in
// the sibling package extract.
package warc
