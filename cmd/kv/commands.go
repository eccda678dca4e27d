package kv

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	putTTL uint64
	incTTL uint64

	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if resp, ok, err := kvStore.Get(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			}
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Put(args[0], []byte(args[1]), putTTL); err != nil {
				return err
			}
			fmt.Println("put successfully")
			return nil
		},
	}
	putIfAbsentCmd = &cobra.Command{
		Use:   "put-if-absent [key] [value]",
		Short: "Sets the value for a key if the key does not exist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := kvStore.PutIfAbsent(args[0], []byte(args[1]), putTTL)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, stored=%v\n", args[0], stored)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [key]",
		Short: "Increments the counter of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := kvStore.Increment(args[0], incTTL)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, value=%d\n", args[0], n)
			return nil
		},
	}
	decrCmd = &cobra.Command{
		Use:   "decr [key]",
		Short: "Decrements the counter of a key, the key is deleted at 0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := kvStore.Decrement(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, value=%d\n", args[0], n)
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes every key of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Clear(); err != nil {
				return err
			}
			fmt.Println("clear successfully")
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the database behind the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := kvStore.GetDBInfo()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	putCmd.Flags().Uint64Var(&putTTL, "ttl", 0, "Time to live in seconds (0 for no expiry)")
	putIfAbsentCmd.Flags().Uint64Var(&putTTL, "ttl", 0, "Time to live in seconds (0 for no expiry)")
	incrCmd.Flags().Uint64Var(&incTTL, "ttl", 0, "Reset the time to live of the counter to this many seconds (0 keeps it)")
}
