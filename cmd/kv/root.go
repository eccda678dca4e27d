package kv

import (
	"fmt"

	"github.com/ValentinKolb/dCoord/cmd/util"
	"github.com/ValentinKolb/dCoord/lib/coord"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	coordinator *coord.Coordinator
	kvStore     store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform raw coordination store operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add backend flags to the KV command
	util.SetupCoordFlags(KeyValueCommands)

	KeyValueCommands.PersistentFlags().String("store", "lock", util.WrapString("Which store of the backend to use (lock, cache)"))

	// Add subcommands
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(putIfAbsentCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(incrCmd)
	KeyValueCommands.AddCommand(decrCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient opens the backend and selects the store
func setupKVClient(cmd *cobra.Command, _ []string) (err error) {
	coordinator, err = util.OpenCoordinator(cmd)
	if err != nil {
		return err
	}

	switch viper.GetString("store") {
	case "lock":
		kvStore = coordinator.LockStore()
	case "cache":
		kvStore = coordinator.CacheStore()
	default:
		return fmt.Errorf("invalid store %s (lock, cache)", viper.GetString("store"))
	}
	return nil
}

func closeKVClient(_ *cobra.Command, _ []string) error {
	return coordinator.Close()
}
