package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ruslano69/eavsql/pkg/store"
)

// DefaultMapName - словарь kv без --map
const DefaultMapName = "default"

func newKVCommand(opts *RootOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Work with a key-value map with expiry",
	}
	cmd.PersistentFlags().StringVar(&name, "map", DefaultMapName, "map name (table KV_<name>)")

	openMap := func(s *session) (*store.KeyValueMap, error) {
		return store.NewKeyValueMap(s.conn, name, store.WithLogger(s.logger))
	}

	var ttl time.Duration
	put := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Set a value, creating the map table when needed",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			m, err := openMap(s)
			if err != nil {
				return err
			}
			if err := m.SystemSetup(cmd.Context()); err != nil {
				return err
			}

			var expireAt int64
			if ttl > 0 {
				expireAt = time.Now().Add(ttl).Unix()
			}
			return m.Put(cmd.Context(), args[0], args[1], expireAt)
		}),
	}
	put.Flags().DurationVar(&ttl, "ttl", 0, "time to live, 0 - never expires")

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a value",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			m, err := openMap(s)
			if err != nil {
				return err
			}
			v, ok, err := m.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key %s not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <key>...",
		Short: "Remove keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			m, err := openMap(s)
			if err != nil {
				return err
			}
			for _, k := range args {
				if err := m.Remove(cmd.Context(), k); err != nil {
					return err
				}
			}
			return nil
		}),
	}

	var byValue string
	keys := &cobra.Command{
		Use:   "keys",
		Short: "List live keys",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			m, err := openMap(s)
			if err != nil {
				return err
			}
			var filter *string
			if cmd.Flags().Changed("value") {
				filter = &byValue
			}
			list, err := m.Keys(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), list)
		}),
	}
	keys.Flags().StringVar(&byValue, "value", "", "only keys holding this value")

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired entries",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			m, err := openMap(s)
			if err != nil {
				return err
			}
			n, err := m.Maintenance(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}),
	}

	cmd.AddCommand(put, get, remove, keys, sweep)
	return cmd
}
