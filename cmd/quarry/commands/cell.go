package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrydb/quarry/pkg/kv"
)

func newCellCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cell",
		Short: "Operate on lazily initialized persistent cells",
	}
	cmd.AddCommand(newCellGetCommand())
	cmd.AddCommand(newCellSetCommand())
	return cmd
}

func newCellGetCommand() *cobra.Command {
	var defaultValue string
	cmd := &cobra.Command{
		Use:   "get <store> <name>",
		Short: "Read a cell, initializing it with the default when absent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			cell, err := kv.OpenCell(ctx, store, args[0], args[1], kv.String(),
				func() (string, error) { return defaultValue, nil })
			if err != nil {
				return err
			}
			value, err := cell.Get(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
	cmd.Flags().StringVar(&defaultValue, "default", "", "value persisted on first access")
	return cmd
}

func newCellSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <store> <name> <value>",
		Short: "Overwrite a cell's value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			cell, err := kv.OpenCell(ctx, store, args[0], args[1], kv.String(),
				func() (string, error) { return args[2], nil })
			if err != nil {
				return err
			}
			return cell.Set(ctx, args[2])
		},
	}
}
