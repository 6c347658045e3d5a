package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ruslano69/eavsql/pkg/config"
	"github.com/ruslano69/eavsql/pkg/core/value"
	"github.com/ruslano69/eavsql/pkg/export"
	"github.com/ruslano69/eavsql/pkg/store"
)

func newInitConfigCommand(opts *RootOptions) *cobra.Command {
	var dbType string
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a sample config for a database type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.ConfigPath
			if path == "" {
				path = DefaultConfigFile
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.Save(path, config.Sample(dbType)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created sample %s config: %s\n", dbType, path)
			fmt.Fprintf(cmd.OutOrStdout(), "Edit the credentials and run:\n  eavctl setup --config %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbType, "type", "sqlite", "database type: sqlite, postgres, mysql, mssql, oracle")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newSetupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the collection tables and indexes",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			if err := s.store.SystemSetup(cmd.Context()); err != nil {
				return err
			}
			s.logger.Info().Str("base", s.store.BaseTable()).Str("data", s.store.DataTable()).Msg("collection ready")
			return nil
		}),
	}
}

func newDestroyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Drop the collection tables",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			return s.store.SystemDestroy(cmd.Context())
		}),
	}
}

func newClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every object of the collection",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			return s.store.Clear(cmd.Context())
		}),
	}
}

func newPutCommand(opts *RootOptions) *cobra.Command {
	var id string
	var sets []string
	var delta bool

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Save an object and print its id",
		Long: `Save an object from key=value pairs. Values are literals: 42 is an integer,
4.2 a float, null removes the key, a JSON-quoted "42" is the string 42 and
anything else is a string as written. Without --delta keys not listed are removed.`,
		Args: cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			attrs, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			var changed []string
			if delta {
				changed = attrs.Keys()
			}

			oid, err := s.store.Put(cmd.Context(), id, attrs, changed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), oid)
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "object id (a new GUID when empty)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "key=value, repeatable")
	cmd.Flags().BoolVar(&delta, "delta", false, "write only the listed keys")
	return cmd
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print an object as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			obj, ok, err := s.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("object %s not found", args[0])
			}
			return writeRecord(cmd.OutOrStdout(), args[0], obj)
		}),
	}
}

func newRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove objects",
		Args:  cobra.MinimumNArgs(1),
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			for _, id := range args {
				if err := s.store.Remove(cmd.Context(), id); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

func newKeysCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List key names used by the collection",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			keys, err := s.store.KeyNames(cmd.Context(), 0)
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), keys)
		}),
	}
}

func newIDsCommand(opts *RootOptions) *cobra.Command {
	var random bool

	cmd := &cobra.Command{
		Use:   "ids",
		Short: "List object ids in ascending order",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if random {
				id, err := s.store.RandomObjectID(ctx)
				if err != nil {
					return err
				}
				if id != "" {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			for id := ""; ; {
				next, err := s.store.LooselyIterateObjectID(ctx, id)
				if err != nil {
					return err
				}
				if next == "" {
					return nil
				}
				fmt.Fprintln(out, next)
				id = next
			}
		}),
	}
	cmd.Flags().BoolVar(&random, "random", false, "print one random id")
	return cmd
}

// queryFlags - общие флаги query и count
type queryFlags struct {
	where  string
	args   []string
	order  string
	offset int
	limit  int
}

func (q *queryFlags) bind(cmd *cobra.Command, paging bool) {
	cmd.Flags().StringVar(&q.where, "where", "", `condition, e.g. "age > ? AND role IN ('admin', 'owner')"`)
	cmd.Flags().StringArrayVar(&q.args, "arg", nil, "placeholder value, repeatable, parsed as a literal")
	if paging {
		cmd.Flags().StringVar(&q.order, "order", "", `ordering, e.g. "age DESC, name"`)
		cmd.Flags().IntVar(&q.offset, "offset", 0, "skip this many objects")
		cmd.Flags().IntVar(&q.limit, "limit", 0, "return at most this many objects (0 - all)")
	}
}

func (q *queryFlags) literalArgs() []any {
	args := make([]any, len(q.args))
	for i, a := range q.args {
		args[i] = value.ParseLiteral(a)
	}
	return args
}

func newQueryCommand(opts *RootOptions) *cobra.Command {
	var q queryFlags
	var idsOnly bool

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print matching objects as JSON lines",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			ctx := cmd.Context()
			if idsOnly {
				ids, err := s.store.QueryKeys(ctx, q.where, q.literalArgs(), q.order, q.offset, q.limit)
				if err != nil {
					return err
				}
				return writeLines(cmd.OutOrStdout(), ids)
			}

			records, err := s.store.Query(ctx, q.where, q.literalArgs(), q.order, q.offset, q.limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, rec := range records {
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	q.bind(cmd, true)
	cmd.Flags().BoolVar(&idsOnly, "ids-only", false, "print ids only")
	return cmd
}

func newCountCommand(opts *RootOptions) *cobra.Command {
	var q queryFlags

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count matching objects",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			n, err := s.store.Count(cmd.Context(), q.where, q.literalArgs())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}),
	}
	q.bind(cmd, false)
	return cmd
}

func newIterateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "iterate",
		Short: "Print every object as JSON lines in id order",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			return export.New(s.store, export.WithLogger(s.logger)).Walk(cmd.Context(), func(id string, obj store.Object) error {
				return enc.Encode(export.Record{OID: id, Attrs: obj})
			})
		}),
	}
}

// parseAssignments разбирает key=value в объект
func parseAssignments(sets []string) (store.Object, error) {
	obj := make(store.Object, len(sets))
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", kv)
		}
		obj[k] = value.ParseLiteral(v)
	}
	if len(obj) == 0 {
		return nil, errors.New("at least one --set is required")
	}
	return obj, nil
}

func writeRecord(w io.Writer, id string, obj store.Object) error {
	data, err := json.MarshalIndent(export.Record{OID: id, Attrs: obj}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
