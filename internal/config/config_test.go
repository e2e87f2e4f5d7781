package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/utkarsh5026/batchrun/internal/config"
	"github.com/utkarsh5026/batchrun/pool"
)

var _ = Describe("Config", func() {
	Context("Default", func() {
		// Given no configuration source
		// When we build the defaults
		// Then every documented default should be applied
		It("should apply struct defaults", func() {
			cfg := config.Default()

			Expect(cfg.Width).To(Equal(0))
			Expect(cfg.Policy).To(Equal("abort"))
			Expect(cfg.Output).To(Equal("table"))
			Expect(cfg.Burst).To(Equal(1))
			Expect(cfg.MaxValueWidth).To(Equal(60))
			Expect(cfg.LogLevel).To(Equal("info"))
			Expect(cfg.LogFormat).To(Equal("console"))
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Context("Load", func() {
		var v *viper.Viper

		BeforeEach(func() {
			v = viper.New()
			v.SetEnvPrefix(config.EnvPrefix)
			v.AutomaticEnv()
		})

		// Given an empty viper instance
		// When we load the configuration
		// Then width and policy should not count as explicitly set
		It("should fall back to defaults", func() {
			// Act
			cfg, err := config.Load(v)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Policy).To(Equal("abort"))
			Expect(cfg.FailurePolicy()).To(Equal(pool.Abort))
			Expect(cfg.IsSet(config.KeyWidth)).To(BeFalse())
			Expect(cfg.IsSet(config.KeyPolicy)).To(BeFalse())
		})

		// Given a changed command-line flag
		// When we load the configuration
		// Then the flag value should win and be marked explicit
		It("should honor bound flags", func() {
			// Arrange
			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			flags.Int("width", 0, "")
			flags.String("policy", "abort", "")
			Expect(v.BindPFlag(config.KeyWidth, flags.Lookup("width"))).To(Succeed())
			Expect(v.BindPFlag(config.KeyPolicy, flags.Lookup("policy"))).To(Succeed())
			Expect(flags.Parse([]string{"--width", "6"})).To(Succeed())

			// Act
			cfg, err := config.Load(v)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Width).To(Equal(6))
			Expect(cfg.IsSet(config.KeyWidth)).To(BeTrue())
			Expect(cfg.IsSet(config.KeyPolicy)).To(BeFalse())
		})

		// Given BATCHRUN_* environment variables
		// When we load the configuration
		// Then they should override the defaults
		It("should read environment variables", func() {
			// Arrange
			GinkgoT().Setenv("BATCHRUN_POLICY", "skip")
			GinkgoT().Setenv("BATCHRUN_RATE", "2.5")

			// Act
			cfg, err := config.Load(v)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.FailurePolicy()).To(Equal(pool.Skip))
			Expect(cfg.Rate).To(Equal(2.5))
			Expect(cfg.IsSet(config.KeyPolicy)).To(BeTrue())
		})

		// Given an invalid value
		// When we load the configuration
		// Then loading should fail validation
		It("should reject invalid values", func() {
			v.Set(config.KeyOutput, "csv")

			_, err := config.Load(v)

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown output"))
		})
	})

	Context("NewViper", func() {
		// Given a config file passed explicitly
		// When we create the viper instance and load
		// Then the file values should be applied
		It("should read the given config file", func() {
			// Arrange
			path := filepath.Join(GinkgoT().TempDir(), "batchrun.yaml")
			Expect(os.WriteFile(path, []byte("width: 3\noutput: json\nlog_format: json\n"), 0o600)).To(Succeed())

			// Act
			v, err := config.NewViper(path)
			Expect(err).NotTo(HaveOccurred())
			cfg, err := config.Load(v)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Width).To(Equal(3))
			Expect(cfg.Output).To(Equal("json"))
			Expect(cfg.LogFormat).To(Equal("json"))
			Expect(cfg.IsSet(config.KeyWidth)).To(BeTrue())
		})

		// Given an explicit config file that does not exist
		// When we create the viper instance
		// Then it should fail
		It("should fail on a missing explicit file", func() {
			_, err := config.NewViper(filepath.Join(GinkgoT().TempDir(), "nope.yaml"))

			Expect(err).To(HaveOccurred())
		})
	})

	Context("Validate", func() {
		DescribeTable("should reject bad values",
			func(mutate func(*config.Config), fragment string) {
				cfg := config.Default()
				mutate(cfg)

				err := cfg.Validate()

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(fragment))
			},
			Entry("negative width", func(c *config.Config) { c.Width = -1 }, "width"),
			Entry("unknown policy", func(c *config.Config) { c.Policy = "retry" }, "failure policy"),
			Entry("xlsx without file", func(c *config.Config) { c.Output = "xlsx" }, "out-file"),
			Entry("negative value width", func(c *config.Config) { c.MaxValueWidth = -1 }, "max value width"),
			Entry("negative rate", func(c *config.Config) { c.Rate = -1 }, "rate"),
			Entry("rate without burst", func(c *config.Config) { c.Rate = 1; c.Burst = 0 }, "burst"),
			Entry("bad log level", func(c *config.Config) { c.LogLevel = "loud" }, "log level"),
			Entry("bad log format", func(c *config.Config) { c.LogFormat = "xml" }, "log format"),
		)
	})
})
