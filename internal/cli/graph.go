package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/moneymap/internal/api"
	"github.com/roach88/moneymap/internal/graph"
)

// GraphOptions holds flags for the graph subcommands.
type GraphOptions struct {
	*RootOptions
	Variant string
	Request bool
}

// NewGraphCommand creates the graph command group.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show and publish household graphs",
	}
	cmd.AddCommand(newGraphShowCommand(rootOpts))
	cmd.AddCommand(newGraphPublishCommand(rootOpts))
	return cmd
}

func newGraphShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <household>",
		Short: "Print one variant's graph",
		Long: `Print the graph of a household's live workspace or sandbox.

The household's workspace pair is created on first use, so an unknown
household shows an empty graph.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphShow(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Variant, "variant", "live", "workspace variant (live|sandbox)")
	return cmd
}

func runGraphShow(cmd *cobra.Command, opts *GraphOptions, householdID string) error {
	v, err := parseVariant(opts.Variant)
	if err != nil {
		return err
	}
	f := opts.formatter(cmd)

	return withService(opts.RootOptions, func(svc service) error {
		resp, err := svc.Graph(cmd.Context(), householdID, v)
		if err != nil {
			return f.Report("failed to load graph", err)
		}
		if f.Format == "json" {
			return f.Success(resp)
		}
		fmt.Fprintf(f.Writer, "%s (%s)\n", resp.Workspace.Slug, resp.Workspace.Variant)
		printGraph(f.Writer, resp.Graph)
		return nil
	})
}

func newGraphPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish <household> <graph.json>",
		Short: "Replace one variant's graph",
		Long: `Replace a workspace's graph with the snapshot in a JSON file ("-" reads
stdin). The graph is validated first and rejected whole on any violation.

With --request the graph is written to the sandbox as a change request
and recorded as a diff.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphPublish(cmd, opts, args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&opts.Variant, "variant", "live", "workspace variant (live|sandbox)")
	cmd.Flags().BoolVar(&opts.Request, "request", false, "submit as a sandbox change request")
	return cmd
}

func runGraphPublish(cmd *cobra.Command, opts *GraphOptions, householdID, path string) error {
	v, err := parseVariant(opts.Variant)
	if err != nil {
		return err
	}
	if opts.Request && cmd.Flags().Changed("variant") {
		return NewExitError(ExitCommandError, "--request always targets the sandbox; drop --variant")
	}
	snap, err := readSnapshot(cmd.InOrStdin(), path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read graph", err)
	}
	f := opts.formatter(cmd)
	f.VerboseLog("Read %d nodes, %d flows, %d rules from %s", len(snap.Nodes), len(snap.Flows), len(snap.Rules), path)

	return withService(opts.RootOptions, func(svc service) error {
		var (
			resp api.PublishResponse
			err  error
		)
		if opts.Request {
			resp, err = svc.SubmitChangeRequest(cmd.Context(), householdID, snap)
		} else {
			resp, err = svc.Publish(cmd.Context(), householdID, v, snap)
		}
		if err != nil {
			return f.Report("failed to publish graph", err)
		}
		if f.Format == "json" {
			return f.Success(resp)
		}

		if resp.RequestID != "" {
			f.Pass("Change request %s recorded", resp.RequestID)
		} else {
			f.Pass("Published %d nodes to %s", len(resp.Graph.Nodes), v)
		}
		if resp.Skipped > 0 {
			f.Warn("%d flows skipped (endpoint not in graph)", resp.Skipped)
		}
		for clientID, serverID := range resp.IDMaps.Nodes {
			f.VerboseLog("  node %s -> %s", clientID, serverID)
		}
		return nil
	})
}

// readSnapshot decodes a graph snapshot from path, or from stdin when path
// is "-". Unknown fields are rejected.
func readSnapshot(stdin io.Reader, path string) (graph.Snapshot, error) {
	r := stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return graph.Snapshot{}, err
		}
		defer file.Close()
		r = file
	}

	var snap graph.Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return graph.Snapshot{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return snap, nil
}

// printGraph writes a plain listing of s.
func printGraph(w io.Writer, s graph.Snapshot) {
	fmt.Fprintf(w, "%d nodes, %d flows, %d rules\n", len(s.Nodes), len(s.Flows), len(s.Rules))

	labels := make(map[string]string, len(s.Nodes))
	for _, n := range s.Nodes {
		labels[n.ID] = n.Label
	}
	name := func(id string) string {
		if l := labels[id]; l != "" {
			return l
		}
		return id
	}

	for _, n := range s.Nodes {
		line := fmt.Sprintf("  %-9s %s", n.Kind, name(n.ID))
		if n.ParentID != "" {
			line += " in " + name(n.ParentID)
		}
		if n.Balance != nil {
			line += " balance " + money(*n.Balance)
		}
		if n.Inflow != nil {
			line += fmt.Sprintf(" inflow %s %s", money(n.Inflow.Amount), n.Inflow.Cadence)
		}
		if rate := graph.EffectiveReturnRate(n); rate != 0 {
			line += " return " + decimal.NewFromFloat(rate).Shift(2).String() + "%"
		}
		fmt.Fprintln(w, line)
	}
	for _, fl := range s.Flows {
		owner := "manual"
		if fl.RuleOwned() {
			owner = "rule"
		}
		fmt.Fprintf(w, "  flow      %s -> %s (%s)\n", name(fl.SourceID), name(fl.TargetID), owner)
	}
	for _, r := range s.Rules {
		parts := make([]string, len(r.Allocations))
		for i, a := range r.Allocations {
			parts[i] = fmt.Sprintf("%s %s%%", name(a.TargetNodeID), decimal.NewFromFloat(a.Percentage).String())
		}
		fmt.Fprintf(w, "  rule      %s on %s: %s\n", name(r.SourceNodeID), r.Trigger, strings.Join(parts, ", "))
	}
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
