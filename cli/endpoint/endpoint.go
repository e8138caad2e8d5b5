// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package endpoint

import (
	"fmt"
	"strings"

	"github.com/siemens/wsclient"
	"github.com/siemens/wsclient/cli"
	"github.com/siemens/wsclient/cli/command"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thediveo/go-plugger/v3"
)

// ConfigFile optionally names a YAML file with client options.
var ConfigFile string

// Origin optionally specifies the origin to announce.
var Origin string

// SubProtocols to request, in order of preference.
var SubProtocols []string

// ProtocolVersion to request in the opening handshake.
var ProtocolVersion string

// Headers are additional “Name: value” header fields for the opening
// handshake.
var Headers []string

// Insecure skips invalid server certificates.
var Insecure bool

// fileOptions are the options loaded from ConfigFile, if any.
var fileOptions *wsclient.Options

func init() {
	plugger.Group[cli.SetupCLI]().Register(
		EndpointSetupCLI, plugger.WithPlugin("endpoint"))
	plugger.Group[cli.BeforeCommand]().Register(
		EndpointBeforeCommand, plugger.WithPlugin("endpoint"))
	plugger.Group[cli.NewClient]().Register(
		NewEndpointClient, plugger.WithPlugin("endpoint"))
	plugger.Group[cli.CommandExamples]().Register(
		func() map[string]string {
			return map[string]string{
				"probe": `# Probe a local websocket server, requesting the "chat" subprotocol.
wsclient --subprotocol chat probe ws://localhost:8080/chat

# Probe several websocket servers strictly implementing RFC6455, wide output.
wsclient --protocol-version 13 probe -o wide wss://example.org:443/ ws://localhost:8080/`,
				"session": `# Send lines from a file to a websocket server, at most 10 per second, and
# record the server's messages.
wsclient --protocol-version 13 session --rate 10 -w replies.txt ws://localhost:8080/echo < lines.txt`,
			}
		},
		plugger.WithPlugin("endpoint"), plugger.WithPlacement("<"))
}

// EndpointSetupCLI registers the CLI flags controlling how to connect to
// websocket endpoints.
func EndpointSetupCLI(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&ConfigFile, "config", "",
		"YAML file with client options; CLI flags take precedence")
	pf.StringVar(&Origin, "origin", "",
		"Origin to announce in the opening handshake")
	pf.StringArrayVar(&SubProtocols, "subprotocol", nil,
		"Subprotocol to request; can be specified multiple times in order of preference")
	pf.StringVar(&ProtocolVersion, "protocol-version", "",
		`Websocket protocol version to request (default "8"); use "13" for servers
only accepting the final RFC6455`)
	pf.StringArrayVarP(&Headers, "header", "H", nil,
		`Additional "Name: value" header field for the opening handshake; can be
specified multiple times`)
	pf.BoolVarP(&Insecure, "insecure", "k", false,
		"Danger: skip invalid server certificates when connecting to wss:// endpoints")
}

// EndpointBeforeCommand loads the client options file, if specified, so that
// invalid options get reported before any command starts to run.
func EndpointBeforeCommand(*cobra.Command) error {
	fileOptions = nil
	if ConfigFile == "" {
		return nil
	}
	opts, err := wsclient.LoadOptionsFile(ConfigFile)
	if err != nil {
		return err
	}
	fileOptions = opts
	return nil
}

// NewEndpointClient returns a new client for ws:// and wss:// URIs, with the
// options taken from the options file and CLI flags.
func NewEndpointClient(uri string, handlers wsclient.Handlers) (*wsclient.Client, error) {
	if !strings.HasPrefix(uri, "ws://") && !strings.HasPrefix(uri, "wss://") {
		return nil, nil
	}
	opts, err := Options()
	if err != nil {
		return nil, err
	}
	opts.Handlers = handlers
	return wsclient.New(uri, opts)
}

// Options returns the client options from the options file, overridden by any
// CLI flags given.
func Options() (*wsclient.Options, error) {
	opts := &wsclient.Options{}
	if fileOptions != nil {
		*opts = *fileOptions
	}
	if command.ConnectTimeout > 0 {
		opts.ConnectTimeout = command.ConnectTimeout
	}
	if Origin != "" {
		opts.Origin = Origin
	}
	if len(SubProtocols) > 0 {
		opts.SubProtocols = SubProtocols
	}
	if ProtocolVersion != "" {
		opts.ProtocolVersion = ProtocolVersion
	}
	if Insecure {
		opts.InsecureSkipVerify = true
	}
	header := map[string]string{}
	for k, v := range opts.Header {
		header[k] = v
	}
	for _, field := range Headers {
		name, value, ok := strings.Cut(field, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header field %q, expected \"Name: value\"", field)
		}
		header[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	if command.BearerToken != "" {
		header["Authorization"] = "Bearer " + command.BearerToken
	}
	if len(header) > 0 {
		opts.Header = header
	}
	log.Debugf("client options: origin %q, subprotocols %q, protocol version %q, %d extra header fields",
		opts.Origin, opts.SubProtocols, opts.ProtocolVersion, len(opts.Header))
	return opts, nil
}
