package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragstream/pkg/config"
)

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })
	})

	writeConfig := func(data string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
	}

	It("returns defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v)).To(Equal(config.NewDefaultConfig()))
	})

	It("prefers the config file over defaults", func() {
		writeConfig("[relay]\nlisten = \":9090\"\n")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("relay.listen")).To(Equal(":9090"))
		Expect(v.GetString("relay.format")).To(Equal("text"))
	})

	It("prefers environment variables over the config file", func() {
		writeConfig("[upstream]\ncollection = \"from-file\"\n")
		GinkgoT().Setenv("RAGSTREAM_UPSTREAM_COLLECTION", "from-env")
		GinkgoT().Setenv("RAGSTREAM_UPSTREAM_API_TOKEN", "token")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Upstream.Collection).To(Equal("from-env"))
		Expect(cfg.Upstream.APIToken).To(Equal("token"))
	})

	It("prefers changed flags over environment variables", func() {
		GinkgoT().Setenv("RAGSTREAM_RELAY_FORMAT", "raw")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		var format string
		var retries int
		cmd := &cobra.Command{Use: "test"}
		config.AddStringFlag(cmd, config.RelayFlags, config.FlagFormat, &format)
		config.AddIntFlag(cmd, config.RelayFlags, config.FlagRetries, &retries)
		config.BindRegisteredFlags(v, cmd, config.RelayFlags, config.RelayFlags.Keys())

		Expect(v.GetString("relay.format")).To(Equal("raw"))

		Expect(cmd.Flags().Set("format", "events")).To(Succeed())
		Expect(v.GetString("relay.format")).To(Equal("events"))
		Expect(v.GetInt("upstream.retries")).To(Equal(0))
	})

	It("surfaces malformed config files", func() {
		writeConfig("[[[broken")

		_, err := config.InitViper(tmpDir)
		Expect(err).To(MatchError(ContainSubstring("reading config")))
	})
})

var _ = Describe("flag registry", func() {
	It("registers flags with registry defaults and shorthands", func() {
		var listen string
		var threshold float64
		cmd := &cobra.Command{Use: "test"}
		config.AddStringFlag(cmd, config.RelayFlags, config.FlagListen, &listen)
		config.AddFloat64Flag(cmd, config.RelayFlags, config.FlagScoreThreshold, &threshold)

		f := cmd.Flags().Lookup("listen")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("l"))
		Expect(f.DefValue).To(Equal(":8080"))
		Expect(threshold).To(Equal(0.3))
	})

	It("ignores unknown registry keys", func() {
		var s string
		cmd := &cobra.Command{Use: "test"}
		config.AddStringFlag(cmd, config.RelayFlags, "nope", &s)
		Expect(cmd.Flags().HasFlags()).To(BeFalse())
	})
})
