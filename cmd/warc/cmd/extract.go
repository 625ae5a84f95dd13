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
	"fmt"
	"io"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nlnwa/warccore"
	"github.com/nlnwa/warccore/extract"
	"github.com/nlnwa/warccore/format"
)

type valueMatcher struct {
	name    string
	value   string // exact match; empty means "field present" only
	pattern *regexp.Regexp
}

func (m valueMatcher) matches(fields warc.WarcFields) bool {
	if !fields.Has(m.name) {
		return false
	}
	if m.pattern != nil {
		return m.pattern.MatchString(fields.Get(m.name))
	}
	if m.value != "" {
		return fields.Get(m.name) == m.value
	}
	return true
}

type extractConf struct {
	include         []string
	exclude         []string
	includePattern  []string
	excludePattern  []string
	continueOnError bool
}

func newExtractCommand() *cobra.Command {
	c := &extractConf{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Stream decoded HTTP payloads and derived file path components",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(c)
		},
	}
	cmd.Flags().StringSliceVar(&c.include, "include", nil, "NAME[:VALUE]: only records with this field (and value, if given)")
	cmd.Flags().StringSliceVar(&c.exclude, "exclude", nil, "NAME[:VALUE]: skip records with this field (and value, if given)")
	cmd.Flags().StringSliceVar(&c.includePattern, "include-pattern", nil, "NAME:REGEX")
	cmd.Flags().StringSliceVar(&c.excludePattern, "exclude-pattern", nil, "NAME:REGEX")
	cmd.Flags().BoolVar(&c.continueOnError, "continue-on-error", false, "log and skip records that fail to extract instead of aborting")
	return cmd
}

func parseMatchers(specs []string) ([]valueMatcher, error) {
	out := make([]valueMatcher, 0, len(specs))
	for _, s := range specs {
		name, value, _ := strings.Cut(s, ":")
		out = append(out, valueMatcher{name: name, value: value})
	}
	return out, nil
}

func parsePatternMatchers(specs []string) ([]valueMatcher, error) {
	out := make([]valueMatcher, 0, len(specs))
	for _, s := range specs {
		name, pat, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("malformed pattern filter %q: expected NAME:REGEX", s)
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("bad pattern for %s: %w", name, err)
		}
		out = append(out, valueMatcher{name: name, pattern: re})
	}
	return out, nil
}

func runExtract(c *extractConf) error {
	includes, err := parseMatchers(c.include)
	if err != nil {
		return err
	}
	excludes, err := parseMatchers(c.exclude)
	if err != nil {
		return err
	}
	includePatterns, err := parsePatternMatchers(c.includePattern)
	if err != nil {
		return err
	}
	excludePatterns, err := parsePatternMatchers(c.excludePattern)
	if err != nil {
		return err
	}

	in, err := openInput(flags.input)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := openOutput(flags.output)
	if err != nil {
		return err
	}
	defer out.Close()

	cfg, err := buildConfig(flags.input)
	if err != nil {
		return err
	}
	w, err := newEnvelopeWriter(out)
	if err != nil {
		return err
	}

	wanted := func(fields warc.WarcFields) bool {
		for _, m := range includes {
			if !m.matches(fields) {
				return false
			}
		}
		for _, m := range includePatterns {
			if !m.matches(fields) {
				return false
			}
		}
		for _, m := range excludes {
			if m.matches(fields) {
				return false
			}
		}
		for _, m := range excludePatterns {
			if m.matches(fields) {
				return false
			}
		}
		return true
	}

	dec := warc.NewPushDecoder(flags.input, cfg)
	buf := make([]byte, 64*1024)

	var (
		curFields   warc.WarcFields
		curType     warc.RecordType
		curBlock    []byte
		curSelected bool
	)

	flushRecord := func() error {
		if !curSelected {
			return nil
		}
		return handleExtractErr(c, writeExtractedRecord(w, curType, curFields, curBlock, cfg))
	}

	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := dec.Write(buf[:n]); werr != nil {
				return werr
			}
			events, eerr := dec.Events()
			for _, ev := range events {
				switch ev.Kind {
				case warc.EventHeader:
					curFields = ev.Fields
					curType = ev.RecordType
					curBlock = curBlock[:0]
					curSelected = wanted(curFields)
				case warc.EventBlockChunk:
					if curSelected {
						curBlock = append(curBlock, ev.Data...)
					}
				case warc.EventBlockEnd:
					if err := flushRecord(); err != nil {
						return err
					}
				}
			}
			if eerr != nil {
				return eerr
			}
		}
		if rerr == io.EOF {
			if err := dec.WriteEOF(); err != nil {
				return err
			}
			events, eerr := dec.Events()
			for _, ev := range events {
				switch ev.Kind {
				case warc.EventHeader:
					curFields = ev.Fields
					curType = ev.RecordType
					curBlock = curBlock[:0]
					curSelected = wanted(curFields)
				case warc.EventBlockChunk:
					if curSelected {
						curBlock = append(curBlock, ev.Data...)
					}
				case warc.EventBlockEnd:
					if err := flushRecord(); err != nil {
						return err
					}
				}
			}
			if eerr != nil {
				return eerr
			}
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// writeExtractedRecord runs one record's block through an
// HttpPayloadExtractor and writes its ExtractMetadata/ExtractChunk/
// ExtractEnd envelopes to w. Shared by `extract` (streaming) and `get
// extract` (single record).
func writeExtractedRecord(w envelopeWriter, recordType warc.RecordType, fields warc.WarcFields, block []byte, cfg warc.Config) error {
	meta := extract.Resource(recordType, fields.Get(warc.WarcTargetURI), fields.Get(warc.WarcTruncated), int64(len(block)))
	if err := w.Write(format.Envelope{ExtractMetadata: &format.ExtractMetadataPayload{
		HasContent:         meta.HasContent,
		FilePathComponents: meta.FilePathComponents,
		IsTruncated:        meta.IsTruncated,
	}}); err != nil {
		return err
	}
	if !meta.HasContent {
		return nil
	}
	extractor := warc.NewHttpPayloadExtractor(recordType, cfg)
	if _, err := extractor.Write(block); err != nil {
		return err
	}
	if err := extractor.WriteEOF(); err != nil {
		return err
	}
	events, eerr := extractor.Events()
	for _, ev := range events {
		switch ev.Kind {
		case warc.ExtractChunk:
			if err := w.Write(format.Envelope{ExtractChunk: &format.BlockChunkPayload{Data: ev.Data}}); err != nil {
				return err
			}
		case warc.ExtractEnd:
			crc32, crc32c, xxh3 := ev.Checksums.CRC32, ev.Checksums.CRC32C, ev.Checksums.XXH3
			if err := w.Write(format.Envelope{ExtractEnd: &format.BlockEndPayload{CRC32: &crc32, CRC32C: &crc32c, XXH3: &xxh3}}); err != nil {
				return err
			}
		}
	}
	return eerr
}

func handleExtractErr(c *extractConf, err error) error {
	if err == nil {
		return nil
	}
	if c.continueOnError {
		log.Warnf("skipping record after extract error: %v", err)
		return nil
	}
	return err
}
