// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Provides the "wsclient probe" command for checking that websocket servers
// accept connections and agree on a subprotocol.

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/siemens/wsclient"
	"github.com/siemens/wsclient/api"
	"github.com/siemens/wsclient/cli"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thediveo/go-plugger/v3"
	"github.com/thediveo/klo"
	"golang.org/x/exp/slices"
)

// Builtin custom-columns templates
const (
	// ProbeListTemplate defines the custom columns when listing probe results.
	ProbeListTemplate = "URI:{.URI},STATE:{.State},PROTOCOL:{.Protocol}"
	// ProbeWideListTemplate is like ProbeListTemplate, but additionally tacks
	// on the handshake and timing details as well as failure reasons.
	ProbeWideListTemplate = "URI:{.URI},STATE:{.State},PROTOCOL:{.Protocol},AUTHENTICATED:{.Authenticated},LATENCY:{.Latency},ERROR:{.Error}"

	// NameListTemplate for handling "-o name" and only showing the URIs; this
	// template should be used with no headers shown, as kubectl and others do.
	NameListTemplate = "URI:{.URI}"
)

// probeCmd defines the "wsclient probe" command.
var probeCmd = &cobra.Command{
	Use:   "probe [flags] URI...",
	Short: "Probe websocket servers by connecting and running the opening handshake",
	Args:  cobra.MinimumNArgs(1),
	RunE:  probe,
}

func init() {
	plugger.Group[cli.SetupCLI]().Register(ProbeSetupCLI, plugger.WithPlugin("probe"))
}

// ProbeSetupCLI adds the “probe” command.
func ProbeSetupCLI(cmd *cobra.Command) {
	cmd.AddCommand(probeCmd)
	probeCmd.Flags().StringP("output", "o", "",
		"Output format. One of: json|yaml|wide|name|custom-columns=...|custom-columns-file=...|jsonpath=...|jsonpath-file=...")
	probeCmd.Flags().Bool("no-headers", false, "When using the default or custom-column output format, don't print headers (default print headers).")
	probeCmd.Flags().String("sort-by", "{.URI}",
		"If non-empty, sort custom-columns using this field specification. The field specification is expressed as a JSONPath expression (e.g. '{.URI}'). Other output formats are always sorted by URI.")
}

// probe connects to each of the specified websocket URIs in turn, and then
// prints the outcomes.
func probe(cmd *cobra.Command, uris []string) error {
	prn, err := getPrinter(cmd)
	if err != nil {
		return err
	}
	// ...throwing in sorting, if not explicitly forbidden. The sorting
	// printer hands reflect.Values to the printer it wraps, which only the
	// custom-columns printer understands.
	_, columns := prn.(*klo.CustomColumnsPrinter)
	sortby, _ := cmd.LocalFlags().GetString("sort-by")
	if columns && sortby != "" {
		prn, err = klo.NewSortingPrinter(sortby, prn)
		if err != nil {
			return err
		}
	}
	probes := make(api.Probes, 0, len(uris))
	failed := 0
	for _, uri := range uris {
		p := probeOne(cmd.Context(), uri)
		if !p.Authenticated {
			failed++
		}
		probes = append(probes, p)
	}
	if !columns {
		slices.SortStableFunc(probes, func(a, b *api.Probe) bool { return a.URI < b.URI })
	}
	prn.Fprint(cmd.OutOrStdout(), probes)
	if failed > 0 {
		return fmt.Errorf("%d of %d websocket probes failed", failed, len(uris))
	}
	return nil
}

// probeOne connects to the specified websocket URI, records the outcome, and
// then disconnects again.
func probeOne(ctx context.Context, uri string) *api.Probe {
	if ctx == nil {
		ctx = context.Background()
	}
	p := &api.Probe{URI: uri, State: wsclient.Closed.String()}
	c, err := NewClient(uri, wsclient.Handlers{})
	if err != nil {
		p.Error = err.Error()
		return p
	}
	p.URI = c.Target().String()
	start := time.Now()
	err = c.Connect(ctx)
	p.Latency = time.Since(start).Round(time.Microsecond).String()
	p.State = c.State().String()
	p.Authenticated = c.IsAuthenticated()
	p.Protocol = c.Protocol()
	if err != nil {
		p.Error = err.Error()
	}
	c.Disconnect()
	log.Debugf("probed %s: %+v", uri, *p)
	return p
}

// getPrinter returns a value printer configured according to the output format
// chosen by the user, and some more optional output configuration flags.
func getPrinter(cmd *cobra.Command) (prn klo.ValuePrinter, err error) {
	outfmt, err := cmd.LocalFlags().GetString("output")
	if err != nil {
		return
	}
	if outfmt == "name" {
		prn, err = klo.PrinterFromFlag("custom-columns="+NameListTemplate, nil)
		if err != nil {
			panic(err)
		}
		prn.(*klo.CustomColumnsPrinter).HideHeaders = true
		return
	}
	prn, err = klo.PrinterFromFlag(outfmt, &klo.Specs{
		DefaultColumnSpec: ProbeListTemplate,
		WideColumnSpec:    ProbeWideListTemplate,
	})
	if err != nil {
		return
	}
	if ccprn, ok := prn.(*klo.CustomColumnsPrinter); ok {
		ccprn.Padding = 3
		if noheaders, err := cmd.LocalFlags().GetBool("no-headers"); err == nil {
			ccprn.HideHeaders = noheaders
		}
	}
	return
}
