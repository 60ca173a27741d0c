package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit <household>",
		Short: "Print a household's audit log",
		Long: `Print the audit log of a household in order. Each line shows the
sequence number, time, actor, action and the detail recorded with it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withService(rootOpts, func(svc service) error {
				evs, err := svc.AuditEvents(cmd.Context(), args[0])
				if err != nil {
					return f.Report("failed to read audit log", err)
				}
				if limit > 0 && len(evs) > limit {
					evs = evs[len(evs)-limit:]
				}
				if f.Format == "json" {
					return f.Success(evs)
				}
				if len(evs) == 0 {
					return f.Success("No audit events")
				}
				for _, ev := range evs {
					fmt.Fprintf(f.Writer, "%4d  %s  %-10s %-8s %s\n",
						ev.Seq, ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.ActorID, ev.Action, formatDetail(ev.Detail))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the last n events")
	return cmd
}

// formatDetail renders detail as sorted key=value pairs.
func formatDetail(detail map[string]any) string {
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, detail[k])
	}
	return strings.Join(parts, " ")
}
