/*
Copyright © 2019 National Library of Norway

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// globalFlags holds the options common to every subcommand (spec.md §6
// "Common options").
type globalFlags struct {
	cfgFile          string
	input            string
	output           string
	compression      string
	format           string
	compressionLevel string
	logLevel         string
	logFile          string
	logJSON          bool
	quiet            bool
}

var flags globalFlags

// NewCommand returns the root cobra.Command for the warc CLI.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warc",
		Short: "Stream, verify, and extract ISO 28500 WARC containers",
		Long: `warc implements the sans-I/O WARC codec, cross-reference verifier, and
resource extractor as a set of pipeable subcommands: export, import, list,
get, extract, verify, and self.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging()
		},
	}

	cobra.OnInitialize(initConfig)

	cmd.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "config file (default is $HOME/.warc.yaml)")
	cmd.PersistentFlags().StringVar(&flags.input, "input", "-", "input path, or - for stdin")
	cmd.PersistentFlags().StringVar(&flags.output, "output", "-", "output path, or - for stdout")
	cmd.PersistentFlags().StringVar(&flags.compression, "compression", "auto", "container compression: auto, none, gzip, zstd")
	cmd.PersistentFlags().StringVar(&flags.format, "format", "jsonl", "message format: json-seq, jsonl, cbor-seq (csv is not accepted)")
	cmd.PersistentFlags().StringVar(&flags.compressionLevel, "compression-level", "balanced", "compression level: low, balanced, high")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "log file path (default stderr)")
	cmd.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "emit structured JSON logs")
	cmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress non-error output")

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newExportCommand())
	cmd.AddCommand(newImportCommand())
	cmd.AddCommand(newExtractCommand())
	cmd.AddCommand(newVerifyCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newSelfCommand())

	return cmd
}

func configureLogging() {
	level, err := log.ParseLevel(flags.logLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if flags.logJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	if flags.logFile != "" {
		f, err := os.OpenFile(flags.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			log.SetOutput(f)
		} else {
			log.Warnf("could not open log file %s: %v", flags.logFile, err)
		}
	}
	if flags.quiet {
		log.SetLevel(log.ErrorLevel)
	}
}

func initConfig() {
	if flags.cfgFile != "" {
		viper.SetConfigFile(flags.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".warc")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("using config file: %s", viper.ConfigFileUsed())
	}
}
