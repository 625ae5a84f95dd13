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
	"io"

	"github.com/spf13/cobra"

	"github.com/nlnwa/warccore"
	"github.com/nlnwa/warccore/format"
)

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Re-render a WARC container's event stream as a multiplexed envelope",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport()
		},
	}
}

func runExport() error {
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

	dec := warc.NewPushDecoder(flags.input, cfg)
	buf := make([]byte, 64*1024)

	emit := func(events []warc.DecoderEvent) error {
		for _, ev := range events {
			env, ok := toEnvelope(ev)
			if !ok {
				continue
			}
			if err := w.Write(env); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := dec.Write(buf[:n]); werr != nil {
				return werr
			}
			events, eerr := dec.Events()
			if err := emit(events); err != nil {
				return err
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
			if err := emit(events); err != nil {
				return err
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

func toEnvelope(ev warc.DecoderEvent) (format.Envelope, bool) {
	switch ev.Kind {
	case warc.EventMetadata:
		return format.Envelope{Metadata: &format.MetadataPayload{File: ev.File, Position: uint64(ev.Position)}}, true
	case warc.EventHeader:
		pairs := make([]format.FieldPair, 0, len(ev.Fields))
		for _, nv := range ev.Fields {
			pairs = append(pairs, format.FieldPair{nv.Name, nv.Value})
		}
		return format.Envelope{Header: &format.HeaderPayload{Version: ev.Version.String(), Fields: pairs}}, true
	case warc.EventBlockChunk:
		return format.Envelope{BlockChunk: &format.BlockChunkPayload{Data: ev.Data}}, true
	case warc.EventBlockEnd:
		crc32, crc32c, xxh3 := ev.Checksums.CRC32, ev.Checksums.CRC32C, ev.Checksums.XXH3
		return format.Envelope{BlockEnd: &format.BlockEndPayload{CRC32: &crc32, CRC32C: &crc32c, XXH3: &xxh3}}, true
	case warc.EventEndOfFile:
		return format.Envelope{EndOfFile: &format.EndOfFilePayload{}}, true
	default:
		return format.Envelope{}, false
	}
}
