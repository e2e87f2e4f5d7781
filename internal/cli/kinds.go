package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/batchrun/internal/tasks"
	"github.com/utkarsh5026/batchrun/pool"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the task kinds a job file can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := pool.NewRegistry()
			if err := tasks.Register(reg); err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Kind", "Description")
			for _, kind := range reg.Kinds() {
				if err := table.Append(kind, tasks.Description(kind)); err != nil {
					return fmt.Errorf("append kind %s: %w", kind, err)
				}
			}
			return table.Render()
		},
	}
}
