package cmd

import (
	"log/slog"
	"os"

	"github.com/encodeous/rpl/core"
	"github.com/spf13/cobra"
)

var (
	scenarioPath string
	traceSim     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a scenario of DAOs and ticks against the root",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := core.ReadConfig(configPath)
		if err != nil {
			panic(err)
		}
		sc, err := core.ReadScenario(scenarioPath)
		if err != nil {
			panic(err)
		}
		level := slog.LevelWarn
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		logger, err := core.NewLogger(cfg, level)
		if err != nil {
			panic(err)
		}
		err = core.Simulate(*cfg, sc, os.Stdout, logger, traceSim)
		if err != nil {
			panic(err)
		}
	},
	GroupID: "tools",
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	simulateCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "scenario.yaml", "Path to scenario file")
	simulateCmd.Flags().BoolVarP(&traceSim, "trace", "t", false, "Print topology events between step outputs")
}
