// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package command

import (
	"fmt"
	"strings"

	"github.com/siemens/wsclient"
	"github.com/siemens/wsclient/cli"
	"github.com/spf13/cobra"
	"github.com/thediveo/go-plugger/v3"
)

// Provides the “wsclient version” command. The semantic version is the one
// defined for the main wsclient package, so there's no separate version number
// for the wsclient CLI command. In addition, the version command lists the
// included endpoint client factories.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version (with integrated endpoint clients).",
	Run: func(cmd *cobra.Command, args []string) {
		semver := wsclient.SemVersion
		for _, pluginsemver := range plugger.Group[cli.SemVer]().Symbols() {
			semver = pluginsemver()
			break
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (endpoint clients: %s)\n",
			cmd.Parent().Name(),
			semver,
			strings.Join(plugger.Group[cli.NewClient]().Plugins(), ", "))
	},
}

func init() {
	plugger.Group[cli.SetupCLI]().Register(
		VersionSetupCLI, plugger.WithPlugin("version"))
}

// VersionSetupCLI adds the “version” command.
func VersionSetupCLI(cmd *cobra.Command) {
	cmd.AddCommand(versionCmd)
}
