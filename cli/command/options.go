// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package command

import (
	"github.com/siemens/wsclient"
	"github.com/siemens/wsclient/cli"
	"github.com/spf13/cobra"
	"github.com/thediveo/go-plugger/v3"
	"gopkg.in/yaml.v3"
)

// Provides the "wsclient options" command which gives information about the
// available global CLI flags/options. This is modelled after what kubectl, etc.
// have on offer. With "--defaults" it instead shows the default client options
// in the YAML format of "--config" files.
var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List of global command-line options which apply to all commands.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if defaults, _ := cmd.Flags().GetBool("defaults"); defaults {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(wsclient.DefaultOptions())
		}
		return cmd.Usage()
	},
}

// optionsUsageTemplate replaces cobra's builtin usage template which
// doesn't quite fit in this special usecase for listing only the global
// options.
var optionsUsageTemplate = `{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}
`

func init() {
	plugger.Group[cli.SetupCLI]().Register(OptionsSetupCLI, plugger.WithPlugin("options"))
}

// OptionsSetupCLI adds the "option" command.
func OptionsSetupCLI(cmd *cobra.Command) {
	cmd.AddCommand(optionsCmd)
	optionsCmd.SetUsageTemplate(optionsUsageTemplate)
	optionsCmd.Flags().Bool("defaults", false,
		"Show the default client options in options file format instead")
}
