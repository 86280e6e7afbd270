package cmd

import (
	"fmt"
	"github.com/ValentinKolb/fanout/cmd/blast"
	"github.com/ValentinKolb/fanout/cmd/sink"
	"github.com/ValentinKolb/fanout/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "fanout",
		Short: "fan-out connection pool",
		Long: fmt.Sprintf(`fanout (v%s)

Opens many TCP or TLS connections to a single endpoint concurrently and
spreads payloads over them, one write per connection.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of fanout",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fanout v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(blast.BlastCmd)
	RootCmd.AddCommand(sink.SinkCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupRootFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
