// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wsclient

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// LoadOptions reads client options from a YAML document, such as:
//
//	connect-timeout: 5s
//	origin: http://localhost
//	subprotocols: [chat.v2, chat]
//	protocol-version: "13"
//
// Unknown fields are rejected. Handlers and Transport cannot be set this way.
func LoadOptions(r io.Reader) (*Options, error) {
	opts := &Options{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && err != io.EOF {
		return nil, fmt.Errorf("invalid client options: %w", err)
	}
	return opts, nil
}

// LoadOptionsFile reads client options from the YAML file at path.
func LoadOptionsFile(path string) (*Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open client options file: %w", err)
	}
	defer f.Close()
	log.Debugf("loading client options from %q", path)
	return LoadOptions(f)
}
