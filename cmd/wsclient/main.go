// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// This is the main entry of the wsclient CLI tool. There isn't actually much
// here to do except for running the wsclient "root" command which will parse
// the CLI args and then invoke the correct command.

package main

import (
	"os"

	// Pull in all command packages which define sub-commands: they register
	// themselves, but we need the packages to get included.
	"github.com/siemens/wsclient/cli/command"
	_ "github.com/siemens/wsclient/cli/command/session"

	_ "github.com/siemens/wsclient/cli/endpoint" // ws:// and wss:// endpoints

	log "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

func main() {
	f := new(prefixed.TextFormatter)
	f.DisableColors = true
	f.ForceFormatting = true
	f.FullTimestamp = true
	f.TimestampFormat = "15:04:05"
	log.SetFormatter(f)

	// Cobra already reports the error, so don't print it twice, see also:
	// https://github.com/spf13/cobra/issues/304
	if err := command.SetupCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
