package cell

import (
	"fmt"

	"github.com/ValentinKolb/dCoord/cmd/util"
	"github.com/ValentinKolb/dCoord/lib/coord"
	"github.com/spf13/cobra"
)

var (
	coordinator *coord.Coordinator

	// CellCommands represents the cell command group
	CellCommands = &cobra.Command{
		Use:                "cell",
		Short:              "Inspect and change the reference count and status of cells",
		PersistentPreRunE:  setupCellClient,
		PersistentPostRunE: closeCellClient,
	}

	incrCmd = &cobra.Command{
		Use:   "incr [cell]",
		Short: "Increments the reference count of a cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := coordinator.Cells.IncrementReferenceCount(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("cell=%s, count=%d\n", args[0], n)
			return nil
		},
	}
	decrCmd = &cobra.Command{
		Use:   "decr [cell]",
		Short: "Decrements the reference count of a cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := coordinator.Cells.DecrementReferenceCount(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("cell=%s, count=%d\n", args[0], n)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [cell]",
		Short: "Prints the reference count of a cell (-1 if unset)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := coordinator.Cells.GetReferenceCount(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("cell=%s, count=%d\n", args[0], n)
			return nil
		},
	}
	statusCmd = &cobra.Command{
		Use:   "status [cell]",
		Short: "Prints the status of a cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := coordinator.Cells.GetCellStatus(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("cell=%s, status=%s\n", args[0], status)
			return nil
		},
	}
	setBulkDeletionCmd = &cobra.Command{
		Use:   "set-bulk-deletion [cell]",
		Short: "Marks a cell as being bulk deleted, new requests to it are rejected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := coordinator.Cells.SetBulkDeletionStatus(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("cell=%s, set=%v\n", args[0], ok)
			return nil
		},
	}
	resetBulkDeletionCmd = &cobra.Command{
		Use:   "reset-bulk-deletion [cell]",
		Short: "Sets the status of a cell back to normal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := coordinator.Cells.ResetBulkDeletionStatus(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("cell=%s, reset=%v\n", args[0], ok)
			return nil
		},
	}
	waitCmd = &cobra.Command{
		Use:   "wait [cell]",
		Short: "Waits until no other request uses the cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := coordinator.Cells.WaitCellAccessible(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("cell=%s, accessible=true\n", args[0])
			return nil
		},
	}
)

func init() {
	// Add backend flags to the cell command
	util.SetupCoordFlags(CellCommands)

	// Add subcommands
	CellCommands.AddCommand(incrCmd)
	CellCommands.AddCommand(decrCmd)
	CellCommands.AddCommand(getCmd)
	CellCommands.AddCommand(statusCmd)
	CellCommands.AddCommand(setBulkDeletionCmd)
	CellCommands.AddCommand(resetBulkDeletionCmd)
	CellCommands.AddCommand(waitCmd)
}

func setupCellClient(cmd *cobra.Command, _ []string) (err error) {
	coordinator, err = util.OpenCoordinator(cmd)
	return err
}

func closeCellClient(_ *cobra.Command, _ []string) error {
	return coordinator.Close()
}
