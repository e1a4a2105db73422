package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrydb/quarry/pkg/kv"
)

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <key>",
		Short: "Read the value stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			table, err := kv.OpenTable(ctx, store, args[0], kv.String())
			if err != nil {
				return err
			}
			value, err := table.Get(ctx, args[1])
			if err != nil {
				if kv.IsMissingKey(err) {
					return fmt.Errorf("key %q not found in table %q", args[1], args[0])
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newPutCommand() *cobra.Command {
	var ifAbsent bool
	cmd := &cobra.Command{
		Use:   "put <table> <key> <value>",
		Short: "Store a value under a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			table, err := kv.OpenTable(ctx, store, args[0], kv.String())
			if err != nil {
				return err
			}
			if ifAbsent {
				return table.PutIfAbsent(ctx, args[1], args[2])
			}
			return table.Put(ctx, args[1], args[2])
		},
	}
	cmd.Flags().BoolVar(&ifAbsent, "if-absent", false, "leave an existing value untouched")
	return cmd
}

func newDelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "del <table> <key>",
		Short: "Delete the row under a key (no-op when absent)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			table, err := kv.OpenTable(ctx, store, args[0], kv.String())
			if err != nil {
				return err
			}
			return table.Remove(ctx, args[1])
		},
	}
}

func newKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <table>",
		Short: "Stream every key in a table (unspecified order)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			table, err := kv.OpenTable(ctx, store, args[0], kv.Bytes())
			if err != nil {
				return err
			}
			cur, err := table.Cursor(ctx)
			if err != nil {
				return err
			}
			defer cur.Close()
			for cur.Next() {
				key, _ := cur.Row()
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return cur.Err()
		},
	}
}

func newCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count <table>",
		Short: "Count the rows in a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			table, err := kv.OpenTable(ctx, store, args[0], kv.Bytes())
			if err != nil {
				return err
			}
			n, err := table.Size(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newFoldCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fold <table>",
		Short: "Fold over a table, reporting row and byte totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			table, err := kv.OpenTable(ctx, store, args[0], kv.Bytes())
			if err != nil {
				return err
			}
			type totals struct{ rows, bytes int64 }
			sum, err := kv.Fold(ctx, table, totals{},
				func(_ context.Context, _ string, value []byte, acc totals) (totals, error) {
					acc.rows++
					acc.bytes += int64(len(value))
					return acc, nil
				})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows, %d bytes\n", sum.rows, sum.bytes)
			return nil
		},
	}
}

func newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Verify the backing database is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.HealthCheck(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
