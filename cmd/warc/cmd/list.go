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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nlnwa/warccore"
)

type listConf struct {
	fields []string
}

func newListCommand() *cobra.Command {
	c := &listConf{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List WARC records with selected fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(c)
		},
	}
	cmd.Flags().StringSliceVar(&c.fields, "field", []string{":position", "WARC-Type", "WARC-Target-URI"}, "header name, or pseudo-field :position/:file")
	return cmd
}

func runList(c *listConf) error {
	in, err := openInput(flags.input)
	if err != nil {
		return err
	}
	defer in.Close()

	cfg, err := buildConfig(flags.input)
	if err != nil {
		return err
	}

	dec := warc.NewPushDecoder(flags.input, cfg)
	buf := make([]byte, 64*1024)

	var curFile string
	var curPos int64
	var curFields warc.WarcFields

	printRow := func() {
		row := make([]string, 0, len(c.fields))
		for _, f := range c.fields {
			switch f {
			case ":position":
				row = append(row, strconv.FormatInt(curPos, 10))
			case ":file":
				row = append(row, curFile)
			default:
				row = append(row, curFields.Get(f))
			}
		}
		fmt.Println(strings.Join(row, "\t"))
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
				case warc.EventMetadata:
					curFile, curPos = ev.File, ev.Position
				case warc.EventHeader:
					curFields = ev.Fields
					printRow()
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
				case warc.EventMetadata:
					curFile, curPos = ev.File, ev.Position
				case warc.EventHeader:
					curFields = ev.Fields
					printRow()
				}
			}
			return eerr
		}
		if rerr != nil {
			return rerr
		}
	}
}
