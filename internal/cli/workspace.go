package cli

import (
	"github.com/spf13/cobra"
)

// NewWorkspaceCommand creates the workspace command group.
func NewWorkspaceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Delete workspaces",
	}
	cmd.AddCommand(newWorkspaceDeleteCommand(rootOpts))
	cmd.AddCommand(newHouseholdDeleteCommand(rootOpts))
	return cmd
}

func newWorkspaceDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var variant string

	cmd := &cobra.Command{
		Use:   "delete <household>",
		Short: "Delete a household's sandbox",
		Long: `Delete one workspace of a household. The live workspace is never deleted,
and a sandbox holding a pending change request is kept until the request
is applied or the sandbox is reset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseVariant(variant)
			if err != nil {
				return err
			}
			f := rootOpts.formatter(cmd)
			return withService(rootOpts, func(svc service) error {
				if err := svc.DeleteWorkspace(cmd.Context(), args[0], v); err != nil {
					return f.Report("failed to delete workspace", err)
				}
				if f.Format == "json" {
					return f.Success(map[string]string{"household": args[0], "variant": string(v)})
				}
				f.Pass("Deleted %s workspace of %s", v, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "sandbox", "workspace variant (live|sandbox)")
	return cmd
}

func newHouseholdDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-household <household>",
		Short: "Delete both workspaces of a household",
		Long:  "Delete the live workspace and sandbox of a household. The audit log is kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withService(rootOpts, func(svc service) error {
				n, err := svc.DeleteHousehold(cmd.Context(), args[0])
				if err != nil {
					return f.Report("failed to delete household", err)
				}
				if f.Format == "json" {
					return f.Success(map[string]int{"deleted": n})
				}
				f.Pass("Deleted %d workspaces of %s", n, args[0])
				return nil
			})
		},
	}
}
