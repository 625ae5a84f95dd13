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

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/nlnwa/warccore"
	"github.com/nlnwa/warccore/format"
)

// openInput resolves "-" to stdin, otherwise opens path for reading.
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(bufio.NewReader(os.Stdin)), nil
	}
	return os.Open(path)
}

// openOutput resolves "-" to stdout, otherwise creates/truncates path.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// buildConfig derives a warc.Config from the common persistent flags.
// containerPath is the WARC file path whose compression is being decided
// (flags.input when reading a container, flags.output when writing one);
// it is only consulted for --compression=auto.
func buildConfig(containerPath string) (warc.Config, error) {
	cfg := warc.DefaultConfig()

	switch flags.compression {
	case "auto", "":
		cfg = detectCompression(cfg, containerPath)
	default:
		c, err := warc.ParseCompression(flags.compression)
		if err != nil {
			return cfg, err
		}
		cfg.Compression = c
	}

	lvl, err := warc.ParseCompressionLevel(flags.compressionLevel)
	if err != nil {
		return cfg, err
	}
	cfg.CompressionLevel = lvl
	return cfg, nil
}

// detectCompression implements --compression=auto: by filename suffix
// (.warc.gz -> gzip, .warc.zst -> zstd, .warc -> raw) per spec.md §6. On
// "-" (stdin/stdout) it falls back to raw and warns, since there is no
// filename to sniff.
func detectCompression(cfg warc.Config, path string) warc.Config {
	if flags.compression != "auto" && flags.compression != "" {
		return cfg
	}
	switch {
	case strings.HasSuffix(path, ".warc.gz"):
		cfg.Compression = warc.CompressionGzip
	case strings.HasSuffix(path, ".warc.zst"):
		cfg.Compression = warc.CompressionZstd
	case path == "" || path == "-":
		log.Warn("--compression=auto on stdin/stdout: assuming raw WARC")
		cfg.Compression = warc.CompressionNone
	default:
		cfg.Compression = warc.CompressionNone
	}
	return cfg
}

// newEnvelopeWriter constructs the format.* writer named by --format.
func newEnvelopeWriter(w io.Writer) (envelopeWriter, error) {
	switch flags.format {
	case "json-seq":
		return format.NewJSONSeqWriter(w), nil
	case "jsonl", "":
		return format.NewJSONLWriter(w), nil
	case "cbor-seq":
		return format.NewCBORSeqWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported --format for streaming envelopes: %s", flags.format)
	}
}

func newEnvelopeReader(r io.Reader) (envelopeReader, error) {
	switch flags.format {
	case "json-seq":
		return format.NewJSONSeqReader(r), nil
	case "jsonl", "":
		return format.NewJSONLReader(r), nil
	case "cbor-seq":
		return format.NewCBORSeqReader(r), nil
	default:
		return nil, fmt.Errorf("unsupported --format for streaming envelopes: %s", flags.format)
	}
}

type envelopeWriter interface {
	Write(format.Envelope) error
}

type envelopeReader interface {
	Read() (format.Envelope, error)
}
