package main

import (
	"strings"

	"github.com/entrhq/livecontrol/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "LIVECONTROL"

// options are the global flags, also settable as LIVECONTROL_* variables.
type options struct {
	v *viper.Viper
}

func (o *options) configPath() string { return o.v.GetString("config") }

// load reads the config file and applies flag and environment overrides.
func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath())
	if err != nil {
		return nil, err
	}
	if o.v.IsSet("chrome-path") {
		cfg.Browser.ChromePath = o.v.GetString("chrome-path")
	}
	if o.v.IsSet("headless") {
		cfg.Browser.Headless = o.v.GetBool("headless")
	}
	if key := o.v.GetString("openai-api-key"); key != "" && cfg.AutoReply.AI.APIKey == "" {
		cfg.AutoReply.AI.APIKey = key
	}
	return cfg, nil
}

func newOptions() *options {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &options{v: v}
}

func newRootCmd() *cobra.Command {
	opts := newOptions()

	rootCmd := &cobra.Command{
		Use:           "livecontrol",
		Short:         "Multi-account live-commerce console automation",
		Long:          "livecontrol connects several live-commerce accounts through their web control consoles, tracks whether each is live, and runs auto reply, auto speak and auto popup for them.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ~/.livecontrol/config.yaml)")
	flags.String("chrome-path", "", "Chrome or Edge executable, overrides the config file")
	flags.Bool("headless", false, "run browsers without a window")
	flags.String("openai-api-key", "", "API key for AI replies when the config has none")

	_ = opts.v.BindPFlags(flags)

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(opts),
		newPlatformsCmd(),
		newRunCmd(opts),
	)

	return rootCmd
}
