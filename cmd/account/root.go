package account

import (
	"fmt"

	"github.com/ValentinKolb/dCoord/cmd/util"
	"github.com/ValentinKolb/dCoord/lib/coord"
	"github.com/spf13/cobra"
)

var (
	coordinator *coord.Coordinator

	// AccountCommands represents the account lockout command group
	AccountCommands = &cobra.Command{
		Use:                "account",
		Short:              "Track failed logins and lock accounts",
		PersistentPreRunE:  setupAccountClient,
		PersistentPostRunE: closeAccountClient,
	}

	failCmd = &cobra.Command{
		Use:   "fail [account]",
		Short: "Records a failed login of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := coordinator.Lockout.CountupFailedCount(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("account=%s, failed=%d\n", args[0], n)
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [account]",
		Short: "Prints the failed logins of an account (-1 if none are recorded)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := coordinator.Lockout.GetFailedCount(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("account=%s, failed=%d\n", args[0], n)
			return nil
		},
	}
	lockedCmd = &cobra.Command{
		Use:   "locked [account]",
		Short: "Prints whether an account is locked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locked, err := coordinator.Lockout.IsLockedAccount(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("account=%s, locked=%v\n", args[0], locked)
			return nil
		},
	}
	releaseCmd = &cobra.Command{
		Use:   "release [account]",
		Short: "Forgets the failed logins of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := coordinator.Lockout.ReleaseAccountLock(args[0]); err != nil {
				return err
			}
			fmt.Printf("account=%s, released\n", args[0])
			return nil
		},
	}
)

func init() {
	// Add backend flags to the account command
	util.SetupCoordFlags(AccountCommands)

	// Add subcommands
	AccountCommands.AddCommand(failCmd)
	AccountCommands.AddCommand(countCmd)
	AccountCommands.AddCommand(lockedCmd)
	AccountCommands.AddCommand(releaseCmd)
}

func setupAccountClient(cmd *cobra.Command, _ []string) (err error) {
	coordinator, err = util.OpenCoordinator(cmd)
	return err
}

func closeAccountClient(_ *cobra.Command, _ []string) error {
	return coordinator.Close()
}
