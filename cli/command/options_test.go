// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package command_test

import (
	"bytes"
	"io"

	"github.com/siemens/wsclient"
	"gopkg.in/yaml.v3"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("options command", func() {

	It("shows the default client options", func() {
		root := cliRoot()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(io.Discard)
		root.SetArgs([]string{"options", "--defaults"})
		Expect(root.Execute()).To(Succeed())

		Expect(out.String()).To(ContainSubstring("protocol-version: \"8\""))
		var opts wsclient.Options
		Expect(yaml.Unmarshal(out.Bytes(), &opts)).To(Succeed())
		Expect(opts.ConnectTimeout).To(Equal(wsclient.DefaultConnectTimeout))
		Expect(opts.ProtocolVersion).To(Equal(wsclient.DefaultProtocolVersion))
		Expect(opts.ReceiveBufferSize).To(Equal(wsclient.DefaultReceiveBufferSize))
	})

})
