package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/moneymap/internal/workspace"
)

// NewSandboxCommand creates the sandbox command group.
func NewSandboxCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Reset, apply and inspect a household's sandbox",
	}
	cmd.AddCommand(newSandboxOpCommand(rootOpts, "reset",
		"Overwrite the sandbox with the live graph",
		"failed to reset sandbox",
		func(svc service, cmd *cobra.Command, householdID string) (workspace.Result, error) {
			return svc.ResetSandbox(cmd.Context(), householdID)
		}))
	cmd.AddCommand(newSandboxOpCommand(rootOpts, "apply",
		"Promote the sandbox graph to live",
		"failed to apply sandbox",
		func(svc service, cmd *cobra.Command, householdID string) (workspace.Result, error) {
			return svc.ApplySandbox(cmd.Context(), householdID)
		}))
	cmd.AddCommand(newSandboxDiffsCommand(rootOpts))
	return cmd
}

type sandboxOp func(svc service, cmd *cobra.Command, householdID string) (workspace.Result, error)

func newSandboxOpCommand(rootOpts *RootOptions, name, short, failMsg string, op sandboxOp) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <household>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withService(rootOpts, func(svc service) error {
				res, err := op(svc, cmd, args[0])
				if err != nil {
					return f.Report(failMsg, err)
				}
				if f.Format == "json" {
					return f.Success(res)
				}
				f.Pass("Sandbox %s for %s at %s", res.Status, args[0], res.At.Format("2006-01-02 15:04:05Z07:00"))
				return nil
			})
		},
	}
}

func newSandboxDiffsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diffs <household>",
		Short: "List change requests recorded against the sandbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withService(rootOpts, func(svc service) error {
				diffs, err := svc.Diffs(cmd.Context(), args[0])
				if err != nil {
					return f.Report("failed to list diffs", err)
				}
				if f.Format == "json" {
					return f.Success(diffs)
				}
				if len(diffs) == 0 {
					return f.Success("No pending diffs")
				}
				for _, d := range diffs {
					f.Pass("%s request %s: %d nodes", d.CreatedAt.Format("2006-01-02 15:04:05"), d.RequestID, len(d.Payload.Nodes))
				}
				return nil
			})
		},
	}
}
