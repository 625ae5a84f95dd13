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
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nlnwa/warccore/internal"
	"github.com/nlnwa/warccore/internal/timestamp"
)

// FileNameGenerator is the interface a WarcFileWriter consults for a new
// output file's directory and name whenever it needs to roll over (spec.md
// §5 "Container production").
type FileNameGenerator interface {
	// NewFileName returns a directory (may be "" for the current directory)
	// and a file name, excluding any compression or open-file suffix.
	NewFileName() (dir, name string)
}

const defaultFileNamePattern = "%{prefix}s%{ts}s-%05{serial}d-%{host}s.warc"

// Allow overriding of time.Now for tests.
var now = timestamp.UTCNow

// PatternNameGenerator builds file names from a named-parameter pattern,
// giving callers access to a prefix, a UTC14 timestamp, an atomically
// increasing serial number, and the host name or outbound IP.
type PatternNameGenerator struct {
	Directory string
	Prefix    string
	Serial    int32
	Pattern   string
}

// NewFileName implements FileNameGenerator.
func (g *PatternNameGenerator) NewFileName() (string, string) {
	pattern := g.Pattern
	if pattern == "" {
		pattern = defaultFileNamePattern
	}
	params := map[string]any{
		"prefix": g.Prefix,
		"ts":     now().Format("20060102150405"),
		"serial": atomic.AddInt32(&g.Serial, 1),
		"host":   internal.GetHostNameOrIP(),
	}
	return g.Directory, internal.Sprintt(pattern, params)
}

// FileWriterOptions configures a WarcFileWriter.
type FileWriterOptions struct {
	// MaxFileSize rolls the output file over once it would exceed this
	// many bytes. Zero selects the default of 1 GiB; a negative value
	// disables rollover.
	MaxFileSize int64
	// CompressedFileSuffix is appended to generated file names when
	// Config.Compression is not CompressionNone (conventionally ".gz").
	CompressedFileSuffix string
	// OpenFileSuffix is appended while a file is being written and
	// stripped on close via an atomic rename (spec.md's container is
	// only valid once finalized; a reader must never observe a partial
	// file under its final name).
	OpenFileSuffix string
	// NameGenerator supplies new output file names. Defaults to a
	// PatternNameGenerator.
	NameGenerator FileNameGenerator
	// WarcinfoFields, if non-nil, is merged into an automatically
	// generated warcinfo record written at the start of every file this
	// writer creates; every subsequent record in that file gets its
	// WARC-Warcinfo-ID set to that record's WARC-Record-ID.
	WarcinfoFields WarcFields
}

func defaultFileWriterOptions() FileWriterOptions {
	return FileWriterOptions{
		MaxFileSize:           1 << 30,
		CompressedFileSuffix:  ".gz",
		OpenFileSuffix:        ".open",
		NameGenerator:         &PatternNameGenerator{},
	}
}

// WriteResult reports where a record landed.
type WriteResult struct {
	FileName     string
	FileOffset   int64
	BytesWritten int64
}

// WarcFileWriter serializes Record values to a rotating sequence of WARC
// files through a PushEncoder, following the container production rules of
// spec.md §5: one encoder member per record, Content-Length enforced before
// the block is accepted, and a crash-safe rename from the open-file suffix
// to the final name only after the file is closed cleanly.
type WarcFileWriter struct {
	cfg  Config
	opts FileWriterOptions

	mu                sync.Mutex
	file              *os.File
	fileName          string
	fileSize          int64
	currentWarcinfoID string
}

// NewWarcFileWriter constructs a writer. opts.NameGenerator defaults to a
// bare PatternNameGenerator when nil.
func NewWarcFileWriter(cfg Config, opts FileWriterOptions) *WarcFileWriter {
	d := defaultFileWriterOptions()
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = d.MaxFileSize
	}
	if opts.CompressedFileSuffix == "" {
		opts.CompressedFileSuffix = d.CompressedFileSuffix
	}
	if opts.OpenFileSuffix == "" {
		opts.OpenFileSuffix = d.OpenFileSuffix
	}
	if opts.NameGenerator == nil {
		opts.NameGenerator = d.NameGenerator
	}
	return &WarcFileWriter{cfg: cfg, opts: opts}
}

// WriteRecord encodes version/fields/block through a fresh PushEncoder and
// appends the result to the current output file, rolling over to a new
// file first if the record would not fit within MaxFileSize.
func (w *WarcFileWriter) WriteRecord(version RecordVersion, fields WarcFields, block []byte, sum ChecksumSet, present ChecksumPresence) (WriteResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	size := int64(len(block))
	if w.file != nil && w.opts.MaxFileSize > 0 && w.fileSize > 0 && w.fileSize+size > w.opts.MaxFileSize {
		if err := w.closeLocked(); err != nil {
			return WriteResult{}, err
		}
	}
	if w.file == nil {
		if err := w.createFileLocked(); err != nil {
			return WriteResult{}, err
		}
	}

	if w.currentWarcinfoID != "" && fields.Get(WarcWarcinfoID) == "" {
		fields.Set(WarcWarcinfoID, w.currentWarcinfoID)
	}

	result := WriteResult{FileName: w.fileName, FileOffset: w.fileSize}
	n, err := w.encodeAndAppendLocked(version, fields, block, sum, present)
	if err != nil {
		return WriteResult{}, err
	}
	result.BytesWritten = n
	w.fileSize += n
	return result, nil
}

func (w *WarcFileWriter) encodeAndAppendLocked(version RecordVersion, fields WarcFields, block []byte, sum ChecksumSet, present ChecksumPresence) (int64, error) {
	enc := NewPushEncoder(w.cfg)
	if err := enc.WriteHeader(version, fields); err != nil {
		return 0, err
	}
	if len(block) > 0 {
		if err := enc.WriteBlockChunk(block); err != nil {
			return 0, err
		}
	}
	if err := enc.WriteBlockEnd(sum, present); err != nil {
		return 0, err
	}
	out, err := enc.Finish()
	if err != nil {
		return 0, err
	}
	n, err := w.file.Write(out)
	return int64(n), err
}

func (w *WarcFileWriter) createFileLocked() error {
	dir, name := w.opts.NameGenerator.NewFileName()
	if w.cfg.Compression != CompressionNone {
		name += w.opts.CompressedFileSuffix
	}
	path := name
	if dir != "" {
		path = strings.TrimSuffix(dir, "/") + "/" + name
	}
	openPath := path + w.opts.OpenFileSuffix

	f, err := os.OpenFile(openPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o666)
	if err != nil {
		return err
	}
	w.file = f
	w.fileName = name
	w.fileSize = 0
	w.currentWarcinfoID = ""

	if w.opts.WarcinfoFields != nil {
		id, err := w.writeWarcinfoLocked(name)
		if err != nil {
			return err
		}
		w.currentWarcinfoID = id
	}
	return nil
}

func (w *WarcFileWriter) writeWarcinfoLocked(fileName string) (string, error) {
	fields := WarcFields{}
	id := "<urn:uuid:" + uuid.NewString() + ">"
	fields.Add(WarcRecordID, id)
	fields.Add(WarcType, Warcinfo.String())
	fields.Add(WarcDate, timestamp.UTCNowW3cIso8601())
	fields.Add(WarcFilename, fileName)
	fields.Add(ContentType, "application/warc-fields")
	fields.AddAll(w.opts.WarcinfoFields)

	block := []byte(fields.String())
	fields.Set(ContentLength, fmt.Sprintf("%d", len(block)))

	d, err := NewDigester(w.cfg.digestAlgorithms()[0])
	if err != nil {
		return "", err
	}
	d.Write(block)
	fields.Set(WarcBlockDigest, d.Format(w.cfg.DefaultDigestEncoding))

	acc := NewChecksumAccumulator()
	acc.Write(block)
	sum := acc.Sum()

	if _, err := w.encodeAndAppendLocked(V1_1, fields, block, sum, HasCRC32|HasCRC32C|HasXXH3); err != nil {
		return "", err
	}
	return id, nil
}

// Close closes the current output file, atomically renaming it from its
// open-file name to its final name.
func (w *WarcFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *WarcFileWriter) closeLocked() error {
	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil
	openName := f.Name()
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", openName, err)
	}
	finalName := strings.TrimSuffix(openName, w.opts.OpenFileSuffix)
	if err := os.Rename(openName, finalName); err != nil {
		return fmt.Errorf("renaming %s: %w", openName, err)
	}
	return nil
}
