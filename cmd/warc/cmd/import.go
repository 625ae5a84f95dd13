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
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/nlnwa/warccore"
	"github.com/nlnwa/warccore/format"
)

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Replay a multiplexed envelope stream back into WARC container bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport()
		},
	}
}

func runImport() error {
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

	cfg, err := buildConfig(flags.output)
	if err != nil {
		return err
	}

	r, err := newEnvelopeReader(in)
	if err != nil {
		return err
	}

	enc := warc.NewPushEncoder(cfg)
	var version warc.RecordVersion
	var fields warc.WarcFields
	recordOpen := false

	for {
		env, rerr := r.Read()
		if rerr != nil && rerr != io.EOF {
			return rerr
		}
		switch {
		case env.Header != nil:
			v, verr := warc.ParseVersionLine([]byte(env.Header.Version))
			if verr != nil {
				return verr
			}
			version = v
			fields = warc.WarcFields{}
			for _, p := range env.Header.Fields {
				fields.Add(p[0], p[1])
			}
			if err := enc.WriteHeader(version, fields); err != nil {
				return err
			}
			recordOpen = true
		case env.BlockChunk != nil:
			if !recordOpen {
				return errors.New("warc import: BlockChunk with no open record")
			}
			if err := enc.WriteBlockChunk(env.BlockChunk.Data); err != nil {
				return err
			}
		case env.BlockEnd != nil:
			if !recordOpen {
				return errors.New("warc import: BlockEnd with no open record")
			}
			sum, present := fromBlockEnd(env.BlockEnd)
			if err := enc.WriteBlockEnd(sum, present); err != nil {
				return err
			}
			recordOpen = false
			if _, werr := out.Write(enc.Bytes()); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			break
		}
	}

	final, err := enc.Finish()
	if err != nil {
		return err
	}
	_, err = out.Write(final)
	return err
}

func fromBlockEnd(p *format.BlockEndPayload) (warc.ChecksumSet, warc.ChecksumPresence) {
	var sum warc.ChecksumSet
	var present warc.ChecksumPresence
	if p.CRC32 != nil {
		sum.CRC32 = *p.CRC32
		present |= warc.HasCRC32
	}
	if p.CRC32C != nil {
		sum.CRC32C = *p.CRC32C
		present |= warc.HasCRC32C
	}
	if p.XXH3 != nil {
		sum.XXH3 = *p.XXH3
		present |= warc.HasXXH3
	}
	return sum, present
}
