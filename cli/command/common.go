// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Implements the wsclient "root" command with its global CLI flags.
// Additionally runs some checks on some of those global CLI flags, where
// necessary, so individual commands do not need to check them themselves.

package command

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/siemens/wsclient/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/go-plugger/v3"
	"golang.org/x/exp/slices"
)

// Flag annotation for grouping mutually exclusive flags. Due to the open-ended
// plugin architecture of wsclient we cannot directly use cobra's
// MarkFlagsMutuallyExclusive in plugins, but instead plugin need to annotate
// their flags and we then gather the groups with their flag members in order to
// issue MarkFlagsMutuallyExclusive as necessary.
const MutualFlagGroupAnnotation = "mutually-exclusive-group"

// TokenGroup is the name of an annotation value for flags that should be
// mutually exclusive for specifying the bearer token.
const TokenGroup = "token"

// BearerToken specifies an optional user-supplied bearer token for
// authentication, sent in the opening handshake.
var BearerToken string

// bearerTokenFile optionally names a file to read the bearer token from.
var bearerTokenFile string

// ConnectTimeout specifies the length of time to wait for connecting and the
// opening handshake to complete.
var ConnectTimeout time.Duration

// rootCmd represents the Cobra "root" command thus the wsclient CLI itself.
var rootCmd = &cobra.Command{
	Use:   "wsclient",
	Short: "Talk to websocket servers",
	Long: `wsclient is a CLI tool for probing websocket servers and for running
interactive text sessions with them.`,
	// See: https://github.com/spf13/cobra/issues/340
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bearerTokenFile != "" {
			token, err := os.ReadFile(bearerTokenFile)
			if err != nil {
				return fmt.Errorf("cannot read bearer token: %w", err)
			}
			BearerToken = strings.TrimSpace(string(token))
		}
		// Run the registered before-the-command plugins
		for _, beforeCmd := range plugger.Group[cli.BeforeCommand]().Symbols() {
			if err := beforeCmd(cmd); err != nil {
				return err
			}
		}
		return nil
	},
}

// SetupCLI registers the global ("persistent") CLI flags, as well as the
// (sub)commands. The individual commands are registered via a plugin-mechanism.
func SetupCLI() *cobra.Command {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&BearerToken, "token", "",
		"Bearer token for authentication to the websocket server")
	Annotate(pf, "token", MutualFlagGroupAnnotation, TokenGroup)
	pf.StringVar(&bearerTokenFile, "token-file", "",
		"Read the bearer token for authentication from this file")
	Annotate(pf, "token-file", MutualFlagGroupAnnotation, TokenGroup)
	pf.DurationVar(&ConnectTimeout, "connect-timeout", 0,
		`The length of time to wait before giving up connecting to a websocket server.
Non-zero values should contain a corresponding time unit (e.g. 1s, 2m, 3h).
A value of zero means the default of 10s.`)

	// Call registered plugins in order to add further CLI args as well as
	// commands to the root command (or below).
	for _, setupCLI := range plugger.Group[cli.SetupCLI]().Symbols() {
		setupCLI(rootCmd)
	}
	// Set groups of mutually exclusive flags as annotated.
	mutuallyExclusives(rootCmd)
	// Fill in/expand command example sections, where additional command
	// examples are available.
	for _, cmd := range rootCmd.Commands() {
		examples := cli.Examples(cmd.Name())
		if examples == "" {
			continue
		}
		cmd.Example = examples
	}

	return rootCmd
}

// Annotate annotates the flag identified by name with the key=ann.
func Annotate(fs *pflag.FlagSet, flagname, key, ann string) {
	_ = fs.SetAnnotation(flagname, key, []string{ann})
}

// exclusivesMap maps an "exclusive" group (name) to its mutually exclusive
// flags (names).
type exclusivesMap map[string][]string

// mutuallyExclusives starts with the specified command and collects mutually
// exclusive flags as identified by their annotations. It then configures them
// into their groups. This process then recursively repeats with each child
// command.
func mutuallyExclusives(cmd *cobra.Command) {
	exclusives := exclusivesMap{}
	cmd.MarkFlagsMutuallyExclusive() // hack: trigger merging if not already happened
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		group := flag.Annotations[MutualFlagGroupAnnotation]
		if len(group) != 1 {
			return
		}
		name := flag.Name
		members := exclusives[group[0]]
		if slices.Contains(members, name) {
			return
		}
		exclusives[group[0]] = append(exclusives[group[0]], name)
	})
	for _, members := range exclusives {
		cmd.MarkFlagsMutuallyExclusive(members...)
	}
	for _, subcmd := range cmd.Commands() {
		mutuallyExclusives(subcmd)
	}
}
