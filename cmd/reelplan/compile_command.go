package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelbot/compositor"
	"reelbot/reel"
	"reelbot/renderplan"
)

func newCompileCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "compile <request.json>",
		Short: "Compile a reel request and print its render plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0])
			if err != nil {
				return err
			}
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}

			// Planning never draws cards or runs the compositor.
			gen := reel.NewGenerator(settings, ctx.log(), compositor.NewProber(), nil, nil)
			compiled, err := gen.Plan(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writePlan(cmd.OutOrStdout(), compiled, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or table")
	return cmd
}

func readRequest(path string) (reel.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return reel.Request{}, fmt.Errorf("read request: %w", err)
	}
	var req reel.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return reel.Request{}, fmt.Errorf("parse request %s: %w", path, err)
	}
	return req, nil
}

func writePlan(w io.Writer, compiled *reel.Compiled, format string) error {
	switch strings.ToLower(format) {
	case "text", "":
		_, err := fmt.Fprint(w, compiled.Plan.String())
		return err
	case "json":
		data, err := compiled.Plan.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "table":
		tl := compiled.Timeline
		fmt.Fprintf(w, "reel %s: %d segments, %.2fs each, outro at %.2fs, total %.2fs\n",
			compiled.Request.ID, tl.ContentCount(), tl.PerSegmentDuration, tl.OutroOffset, tl.TotalDuration())
		fmt.Fprintln(w, renderTable(
			[]string{"Label", "Op", "Inputs", "Style", "Params", "Enable"},
			nodeRows(compiled.Plan),
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json or table)", format)
	}
}

func nodeRows(plan *renderplan.Plan) [][]string {
	rows := make([][]string, 0, len(plan.Nodes))
	for _, n := range plan.Nodes {
		enable := ""
		if n.Enable != nil {
			enable = fmt.Sprintf("%.2f-%.2f", n.Enable.Start, n.Enable.End)
		}
		rows = append(rows, []string{
			n.Label,
			string(n.Op),
			strings.Join(n.Inputs, ", "),
			n.Style,
			formatParams(n.Params),
			enable,
		})
	}
	return rows
}

func formatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.FormatFloat(params[k], 'f', -1, 64))
	}
	return strings.Join(parts, " ")
}
