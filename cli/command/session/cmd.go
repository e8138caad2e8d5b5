// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/siemens/wsclient"
	"github.com/siemens/wsclient/cli"
	"github.com/siemens/wsclient/cli/command"
	"github.com/siemens/wsclient/websock"
	"github.com/thediveo/go-plugger/v3"
	"golang.org/x/time/rate"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// maxLineSize limits the size of individual input lines, and thus of the
// messages sent.
const maxLineSize = 1 << 20

// sessionCmd defines the "wsclient session" command.
var sessionCmd = &cobra.Command{
	Use:   "session [flags] URI",
	Short: "Send input lines as messages and output the messages received.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session(cmd, args[0])
	},
}

func init() {
	plugger.Group[cli.SetupCLI]().Register(SessionSetupCLI, plugger.WithPlugin("session"))
}

// SessionSetupCLI adds the "session" command.
func SessionSetupCLI(cmd *cobra.Command) {
	cmd.AddCommand(sessionCmd)
	f := sessionCmd.Flags()
	f.StringP("write", "w", "-",
		"Write received messages to file. Use \"-\" for stdout.")
	f.Float64("rate", 0,
		"Send at most this many messages per second. Zero means no limit.")
	f.Int("burst", 1,
		"Maximum number of messages sent in a burst when rate limiting.")
	f.Bool("binary", false,
		"Send input lines as binary instead of text messages.")
	f.Duration("linger", time.Second,
		"Time to keep receiving after the end of input.")
}

// session connects to the websocket server at the specified URI and then sends
// each input line as a message, until either the input ends, this CLI tool
// gets SIGINT'ed or SIGTERM'ed, or the server closes the websocket.
func session(cmd *cobra.Command, uri string) error {
	// Open a new output file to dump the received messages into, or use
	// stdout, if "-" was specified.
	out := cmd.OutOrStdout()
	if wname, _ := cmd.Flags().GetString("write"); wname != "-" {
		f, err := os.OpenFile(wname, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
		if err != nil {
			return fmt.Errorf("cannot create message output file: %s", err.Error())
		}
		defer f.Close()
		out = f
	}
	limiter, err := newLimiter(cmd)
	if err != nil {
		return err
	}
	binary, _ := cmd.Flags().GetBool("binary")
	linger, _ := cmd.Flags().GetDuration("linger")

	var outm sync.Mutex
	closed := make(chan struct{})
	var closeOnce sync.Once
	c, err := command.NewClient(uri, wsclient.Handlers{
		OnReceive: func(_ *wsclient.Client, m websock.Message) {
			outm.Lock()
			defer outm.Unlock()
			fmt.Fprintln(out, m.Text())
		},
		OnDisconnect: func(*wsclient.Client) {
			closeOnce.Do(func() { close(closed) })
		},
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("cannot connect: %w", err)
	}
	defer c.Disconnect()
	log.Debugf("session with %s started, subprotocol %q", c.Target(), c.Protocol())

	lines := readLines(ctx, cmd.InOrStdin())
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				log.Debugf("end of input, lingering for %s", linger)
				select {
				case <-time.After(linger):
				case <-ctx.Done():
				case <-closed:
				}
				return nil
			}
			if err := limiter.Wait(ctx); err != nil {
				return nil // ...interrupted while waiting.
			}
			if binary {
				err = c.Send([]byte(line))
			} else {
				err = c.SendText(line)
			}
			if err != nil {
				return fmt.Errorf("cannot send message: %w", err)
			}
		case <-ctx.Done():
			log.Debugf("session with %s interrupted", c.Target())
			return nil
		case <-closed:
			log.Debugf("session with %s closed", c.Target())
			return nil
		}
	}
}

// newLimiter returns a rate limiter for sending messages, as configured by the
// "--rate" and "--burst" flags.
func newLimiter(cmd *cobra.Command) (*rate.Limiter, error) {
	r, _ := cmd.Flags().GetFloat64("rate")
	burst, _ := cmd.Flags().GetInt("burst")
	if r < 0 {
		return nil, fmt.Errorf("invalid negative --rate %v", r)
	}
	if burst < 1 {
		return nil, fmt.Errorf("invalid --burst %d, must be at least 1", burst)
	}
	if r == 0 {
		return rate.NewLimiter(rate.Inf, burst), nil
	}
	return rate.NewLimiter(rate.Limit(r), burst), nil
}

// readLines returns a channel delivering the lines read from r; the channel
// gets closed at the end of input.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Errorf("reading input failed: %s", err.Error())
		}
	}()
	return lines
}
