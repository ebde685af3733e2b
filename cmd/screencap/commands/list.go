package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go2tv.app/screencap/targets"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List capturable displays and windows",
	Example: `  # List targets in table format (default)
  screencap list

  # List only windows, as JSON
  screencap list --windows --format json`,
	RunE: runList,
}

var (
	listFormat   string
	listDisplays bool
	listWindows  bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
	listCmd.Flags().BoolVar(&listDisplays, "displays", false, "show only displays")
	listCmd.Flags().BoolVar(&listWindows, "windows", false, "show only windows")
}

type targetInfo struct {
	Kind   string  `json:"kind"`
	ID     uint32  `json:"id"`
	Title  string  `json:"title"`
	Width  uint64  `json:"width,omitempty"`
	Height uint64  `json:"height,omitempty"`
	Scale  float64 `json:"scale,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	all, err := targets.GetAllTargets()
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	infos := make([]targetInfo, 0, len(all))
	for _, t := range all {
		info := targetInfo{ID: t.TargetID(), Title: t.TargetTitle()}
		switch t.(type) {
		case targets.Display:
			if listWindows && !listDisplays {
				continue
			}
			info.Kind = "display"
		case targets.Window:
			if listDisplays && !listWindows {
				continue
			}
			info.Kind = "window"
		}
		// Windows can close between listing and sizing; keep them with no size.
		if w, h, err := targets.GetTargetDimensions(t); err == nil {
			info.Width, info.Height = w, h
		}
		if s, err := targets.GetScaleFactor(t); err == nil {
			info.Scale = s
		}
		infos = append(infos, info)
	}

	switch listFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	case "table":
		return printTargetsTable(infos)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printTargetsTable(infos []targetInfo) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "KIND\tID\tSIZE\tSCALE\tTITLE")
	fmt.Fprintln(w, "----\t--\t----\t-----\t-----")
	for _, t := range infos {
		size := "-"
		if t.Width > 0 {
			size = fmt.Sprintf("%dx%d", t.Width, t.Height)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%g\t%s\n", t.Kind, t.ID, size, t.Scale, t.Title)
	}
	return nil
}
