// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package command

import (
	"fmt"
	"strings"

	"github.com/siemens/wsclient"
	"github.com/siemens/wsclient/cli"
	"github.com/thediveo/go-plugger/v3"
)

// NewClient returns a suitable websocket client for the specified target URI
// by asking the registered client factories one after another until the first
// one returns a client or an error.
func NewClient(uri string, handlers wsclient.Handlers) (*wsclient.Client, error) {
	for _, newClient := range plugger.Group[cli.NewClient]().Symbols() {
		c, err := newClient(uri, handlers)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}
	plugins := strings.Join(plugger.Group[cli.NewClient]().Plugins(), ", ")
	if plugins == "" {
		plugins = "(none)"
	}
	return nil, fmt.Errorf("no suitable client for %q; available endpoint clients: %s", uri, plugins)
}
