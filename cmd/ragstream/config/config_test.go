package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/ragstream/cmd/ragstream/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	execute := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "ragstream-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// A local .ragstream dir keeps the manager away from the home dir.
		err = os.MkdirAll(filepath.Join(tmpDir, ".ragstream"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(execute("set", "upstream.collection", "docs-rag")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".ragstream", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`collection = "docs-rag"`))
			Expect(out.String()).To(ContainSubstring("docs-rag"))
		})

		It("does not echo the api token", func() {
			Expect(execute("set", "upstream.api_token", "super-secret")).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("super-secret"))
		})

		It("rejects unknown keys", func() {
			Expect(execute("set", "invalid_key", "value")).To(MatchError(ContainSubstring(`unknown config key: "invalid_key"`)))
		})

		It("requires exactly two arguments", func() {
			Expect(execute("set", "upstream.collection")).NotTo(Succeed())
		})

		It("rejects zero arguments", func() {
			Expect(execute("set")).NotTo(Succeed())
		})

		It("rejects invalid int values", func() {
			Expect(execute("set", "upstream.max_results", "not-a-number")).NotTo(Succeed())
		})

		It("rejects invalid durations", func() {
			Expect(execute("set", "relay.timeout", "soon")).NotTo(Succeed())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(execute("set", "upstream.model", "@cf/meta/llama-3.3-70b-instruct-fp8-fast")).To(Succeed())

			out.Reset()
			Expect(execute("get", "upstream.model")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("@cf/meta/llama-3.3-70b-instruct-fp8-fast"))
		})

		It("shows defaults for unset keys", func() {
			Expect(execute("get", "relay.timeout")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("5m"))
		})

		It("rejects unknown keys", func() {
			Expect(execute("get", "invalid_key")).NotTo(Succeed())
		})

		It("requires exactly one argument", func() {
			Expect(execute("get")).NotTo(Succeed())
		})
	})

	Describe("list subcommand", func() {
		It("runs without error when no config exists", func() {
			Expect(execute("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("relay.listen"))
			Expect(out.String()).To(ContainSubstring("client.target"))
		})

		It("redacts the api token", func() {
			Expect(execute("set", "upstream.api_token", "super-secret")).To(Succeed())

			out.Reset()
			Expect(execute("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<redacted>"))
			Expect(out.String()).NotTo(ContainSubstring("super-secret"))
		})

		It("rejects any arguments", func() {
			Expect(execute("list", "extra")).NotTo(Succeed())
		})
	})
})
