// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package cli

import (
	"strings"

	"github.com/thediveo/go-plugger/v3"
)

// Examples collects the examples for the specified command from all registered
// plugins, separated by empty lines. There isn't any trailing newline.
func Examples(command string) string {
	sections := []string{}
	for _, example := range plugger.Group[CommandExamples]().Symbols() {
		if text := strings.TrimSuffix(example()[command], "\n"); text != "" {
			sections = append(sections, text)
		}
	}
	return strings.Join(sections, "\n\n")
}
