package cmd

import (
	"github.com/encodeous/rpl/core"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates the root config and prints it with defaults applied",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := core.ReadConfig(configPath)
		if err != nil {
			panic(err)
		}

		cfgYaml, err := yaml.Marshal(cfg)
		if err != nil {
			panic(err)
		}

		println("Config is valid")
		println(string(cfgYaml))
	},
	GroupID: "tools",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
