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
	"os"

	"github.com/spf13/cobra"

	"github.com/nlnwa/warccore/kv"
	"github.com/nlnwa/warccore/verify"
)

type verifyConf struct {
	excludeChecks []string
}

func newVerifyCommand() *cobra.Command {
	c := &verifyConf{}
	cmd := &cobra.Command{
		Use:   "verify [DATABASE]",
		Short: "Two-pass cross-reference verification of a WARC container",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbDir := ""
			if len(args) == 1 {
				dbDir = args[0]
			} else {
				dir, err := os.MkdirTemp("", "warc-verify-*")
				if err != nil {
					return err
				}
				defer os.RemoveAll(dir)
				dbDir = dir
			}
			return runVerify(c, dbDir)
		},
	}
	cmd.Flags().StringSliceVar(&c.excludeChecks, "exclude-check", nil, "verify.Check name to skip (repeatable)")
	return cmd
}

func runVerify(c *verifyConf, dbDir string) error {
	excluded := make([]verify.Check, 0, len(c.excludeChecks))
	for _, s := range c.excludeChecks {
		excluded = append(excluded, verify.Check(s))
	}

	store, err := kv.OpenBadgerStore(dbDir)
	if err != nil {
		return err
	}
	defer store.Close()

	cfg, err := buildConfig(flags.input)
	if err != nil {
		return err
	}
	v := verify.New(cfg, store, excluded)

	in1, err := openInput(flags.input)
	if err != nil {
		return err
	}
	problems, err := v.Pass1(flags.input, in1)
	in1.Close()
	if err != nil {
		return err
	}

	in2, err := openInput(flags.input)
	if err != nil {
		return err
	}
	pass2, err := v.Pass2(flags.input, in2)
	in2.Close()
	if err != nil {
		return err
	}
	problems = append(problems, pass2...)

	for _, p := range problems {
		fmt.Println(p.String())
	}
	if len(problems) > 0 {
		os.Exit(3)
	}
	return nil
}
