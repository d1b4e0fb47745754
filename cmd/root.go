package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath = "rpl.yaml"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rpl",
	Short: "RPL non-storing root",
	Long: `rpl maintains the downward topology of an RPL DAG in non-storing mode.
The root learns parent links from DAOs and computes source routes to every node it can reach.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "root",
		Title: "Root Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "tools",
		Title: "Tools",
	})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "root config")
}
