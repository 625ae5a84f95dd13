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
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// DigestEncoding is the textual representation of a digest value, per
// spec.md §4.6 "Digest value encoding is inferred from character set".
type DigestEncoding uint8

const (
	UnknownEncoding DigestEncoding = iota
	Base16
	Base32
	Base64
)

func (e DigestEncoding) encode(sum []byte) string {
	switch e {
	case Base16:
		return strings.ToUpper(hex.EncodeToString(sum))
	case Base32:
		return base32.StdEncoding.EncodeToString(sum)
	case Base64:
		return base64.StdEncoding.EncodeToString(sum)
	default:
		return string(sum)
	}
}

// digestSize reports the raw output length of a recognized algorithm, or 0
// if unrecognized.
func digestSize(algorithm string) int {
	switch algorithm {
	case "md5":
		return md5.Size
	case "sha1":
		return sha1.Size
	case "sha256":
		return sha256.Size
	case "sha384":
		return sha384Size
	case "sha512":
		return sha512.Size
	case "sha3-256":
		return 32
	case "sha3-512":
		return 64
	case "blake2b":
		return blake2b.Size
	case "blake3":
		return 32
	case "xxh3":
		return 8
	default:
		return 0
	}
}

const sha384Size = 48

// detectDigestEncoding infers the encoding of an encoded digest value from
// its length and character set, falling back to def when ambiguous (as
// happens for md5, whose base16 and base32 lengths coincide and must be
// distinguished by padding).
func detectDigestEncoding(algorithm, value string, def DigestEncoding) DigestEncoding {
	if value == "" {
		return def
	}
	size := digestSize(algorithm)
	if algorithm == "md5" && len(value) == 32 {
		if strings.HasSuffix(value, "=") {
			return Base32
		}
		return Base16
	}
	if size == 0 {
		return def
	}
	switch len(value) {
	case size * 2:
		return Base16
	case base32.StdEncoding.EncodedLen(size):
		return Base32
	case base64.StdEncoding.EncodedLen(size):
		return Base64
	}
	return def
}

// Digester accumulates one named digest algorithm over a stream of bytes.
type Digester struct {
	hash.Hash
	Algorithm string
	count     int64
}

func (d *Digester) Write(p []byte) (int, error) {
	d.count += int64(len(p))
	return d.Hash.Write(p)
}

// Count returns the number of octets written so far.
func (d *Digester) Count() int64 { return d.count }

// Format renders the running digest as "algorithm:ENCODED-VALUE".
func (d *Digester) Format(enc DigestEncoding) string {
	return fmt.Sprintf("%s:%s", d.Algorithm, enc.encode(d.Hash.Sum(nil)))
}

// NewDigester constructs a Digester for one of the recognized algorithms:
// md5, sha1, sha256, sha384, sha512, sha3-256, sha3-512, blake2b, blake3,
// xxh3 (spec.md §4.6).
func NewDigester(algorithm string) (*Digester, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	var h hash.Hash
	switch algorithm {
	case "", "sha1":
		algorithm = "sha1"
		h = sha1.New()
	case "md5":
		h = md5.New()
	case "sha256":
		h = sha256.New()
	case "sha384":
		h = sha512.New384()
	case "sha512":
		h = sha512.New()
	case "sha3-256":
		h = sha3.New256()
	case "sha3-512":
		h = sha3.New512()
	case "blake2b":
		b, err := blake2b.New512(nil)
		if err != nil {
			return nil, err
		}
		h = b
	case "blake3":
		h = blake3.New()
	case "xxh3":
		h = xxh3.New()
	default:
		return nil, fmt.Errorf("warc: unsupported digest algorithm %q", algorithm)
	}
	return &Digester{Hash: h, Algorithm: algorithm}, nil
}

// ParseDigestField splits a declared "algorithm:value" digest field into
// its parts. A missing algorithm defaults to sha1, matching historical
// WARC producers that wrote bare hash values.
func ParseDigestField(field string) (algorithm, value string) {
	parts := strings.SplitN(field, ":", 2)
	if len(parts) == 1 {
		return "sha1", parts[0]
	}
	algorithm = strings.ToLower(parts[0])
	if algorithm == "" {
		algorithm = "sha1"
	}
	value = parts[1]
	return algorithm, value
}

// VerifyDigestField validates that a declared digest field ("algorithm:
// value") matches what was actually computed, auto-detecting the declared
// value's encoding (falling back to def when the length is ambiguous).
func VerifyDigestField(field string, computed *Digester, def DigestEncoding) error {
	algorithm, value := ParseDigestField(field)
	if !strings.EqualFold(algorithm, computed.Algorithm) {
		return fmt.Errorf("warc: digest algorithm mismatch: declared %s, computed %s", algorithm, computed.Algorithm)
	}
	enc := detectDigestEncoding(algorithm, value, def)
	got := computed.Format(enc)
	want := fmt.Sprintf("%s:%s", algorithm, value)
	if got != want {
		return fmt.Errorf("%w: declared %s, computed %s", ErrChecksumMismatch, want, got)
	}
	return nil
}

// ChecksumSet carries the three cheap, non-cryptographic BlockEnd
// checksums (spec.md §4.3): a CRC-32 using the ITU-T V.42 polynomial (the
// same one used by gzip/zip, i.e. the stdlib IEEE table), CRC-32C
// (Castagnoli), and xxh3. These exist only to let a downstream consumer
// detect corruption of the message stream itself, never as a substitute
// for the record's declared cryptographic digests.
type ChecksumSet struct {
	CRC32  uint32
	CRC32C uint32
	XXH3   uint64
}

// String renders the set as "crc32:%08x crc32c:%08x xxh3:%016x".
func (c ChecksumSet) String() string {
	return fmt.Sprintf("crc32:%08x crc32c:%08x xxh3:%016x", c.CRC32, c.CRC32C, c.XXH3)
}

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// ChecksumAccumulator computes all three ChecksumSet members over one pass
// of a byte stream.
type ChecksumAccumulator struct {
	crc32  hash.Hash32
	crc32c hash.Hash32
	xxh3   *xxh3.Hasher
}

// NewChecksumAccumulator returns a ready-to-use accumulator.
func NewChecksumAccumulator() *ChecksumAccumulator {
	return &ChecksumAccumulator{
		crc32:  crc32.NewIEEE(),
		crc32c: crc32.New(crc32cTable),
		xxh3:   xxh3.New(),
	}
}

// Write feeds p to all three checksums. It never returns an error.
func (c *ChecksumAccumulator) Write(p []byte) (int, error) {
	c.crc32.Write(p)
	c.crc32c.Write(p)
	c.xxh3.Write(p)
	return len(p), nil
}

// Sum returns the accumulated ChecksumSet.
func (c *ChecksumAccumulator) Sum() ChecksumSet {
	return ChecksumSet{
		CRC32:  c.crc32.Sum32(),
		CRC32C: c.crc32c.Sum32(),
		XXH3:   c.xxh3.Sum64(),
	}
}

// ParseChecksumField parses one "name:hexvalue" token as found in a
// BlockEnd checksum annotation (used by the format/envelope encodings and
// by tests); it is not part of the on-disk WARC header grammar.
func ParseChecksumField(token string) (name string, value uint64, err error) {
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("warc: malformed checksum token %q", token)
	}
	v, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return "", 0, err
	}
	return strings.ToLower(parts[0]), v, nil
}
