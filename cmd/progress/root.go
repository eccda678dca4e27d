package progress

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dCoord/cmd/util"
	"github.com/ValentinKolb/dCoord/lib/coord"
	libprogress "github.com/ValentinKolb/dCoord/lib/progress"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	coordinator *coord.Coordinator
	putKey      string
	putBox      string

	// ProgressCommands represents the progress command group
	ProgressCommands = &cobra.Command{
		Use:                "progress",
		Short:              "Store and read job progress records",
		PersistentPreRunE:  setupProgressClient,
		PersistentPostRunE: closeProgressClient,
	}

	putCmd = &cobra.Command{
		Use:   "put [value]",
		Short: "Stores a progress record",
		Long:  "Stores a progress record under --key, the progress key of --box or a new random key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := putKey
			switch {
			case key != "" && putBox != "":
				return fmt.Errorf("--key and --box are mutually exclusive")
			case putBox != "":
				key = libprogress.BoxKey(putBox)
			case key == "":
				key = uuid.NewString()
			}

			p, err := coordinator.Progress.PutProgress(key, args[0])
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Prints a progress record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok, err := coordinator.Progress.GetProgress(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("key=%s, found=false\n", args[0])
				return nil
			}
			return printJSON(p)
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a progress record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := coordinator.Progress.DeleteProgress(args[0]); err != nil {
				return err
			}
			fmt.Println("deleted successfully")
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes all progress records",
		Long:  "Deletes every record of the progress store. Locks and counters are kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := coordinator.Progress.DeleteAllProgress(); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
)

func init() {
	// Add backend flags to the progress command
	util.SetupCoordFlags(ProgressCommands)

	// Add subcommands
	ProgressCommands.AddCommand(putCmd)
	ProgressCommands.AddCommand(getCmd)
	ProgressCommands.AddCommand(delCmd)
	ProgressCommands.AddCommand(clearCmd)

	putCmd.Flags().StringVar(&putKey, "key", "", util.WrapString("Key of the record"))
	putCmd.Flags().StringVar(&putBox, "box", "", util.WrapString("Box id, the record is stored under the progress key of the box install"))
}

func printJSON(p *libprogress.Progress) error {
	out, err := json.Marshal(p)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func setupProgressClient(cmd *cobra.Command, _ []string) (err error) {
	coordinator, err = util.OpenCoordinator(cmd)
	return err
}

func closeProgressClient(_ *cobra.Command, _ []string) error {
	return coordinator.Close()
}
