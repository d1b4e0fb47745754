package cmd

import (
	"github.com/encodeous/rpl/core"
	"github.com/spf13/cobra"
)

var (
	logPath   string
	debugAddr string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the DAG root",
	Long:  `This will run the DAG root on the current host until it receives SIGINT or SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		err := core.Bootstrap(configPath, logPath, debugAddr, verbose)
		if err != nil {
			panic(err)
		}
	},
	GroupID: "root",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringVarP(&logPath, "log", "l", "", "Also write logs to this file")
	runCmd.Flags().StringVar(&debugAddr, "debug", "", "Serve metrics, pprof and the topology table on this address, e.g. 0.0.0.0:6060")
}
