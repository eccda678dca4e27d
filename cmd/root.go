package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dCoord/cmd/account"
	"github.com/ValentinKolb/dCoord/cmd/cell"
	"github.com/ValentinKolb/dCoord/cmd/kv"
	"github.com/ValentinKolb/dCoord/cmd/lock"
	"github.com/ValentinKolb/dCoord/cmd/progress"
	"github.com/ValentinKolb/dCoord/cmd/serve"
	"github.com/ValentinKolb/dCoord/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dcoord",
		Short: "distributed coordination service",
		Long: fmt.Sprintf(`dCoord (v%s)

Locks, reference counters, login lockout and job progress for
multi-tenant services, on an in-process store, a dcoord server,
etcd or memcached.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dCoord",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dCoord v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(cell.CellCommands)
	RootCmd.AddCommand(account.AccountCommands)
	RootCmd.AddCommand(progress.ProgressCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
