// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wsclient

// SemVersion is the semantic version of the wsclient package and CLI.
const SemVersion = "0.9.2"
