package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"

	"github.com/KiaraAya/aws-audit-tool/internal/runner"
	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
)

// printSummary writes the completion line and one line per scope that
// recorded errors.
func printSummary(w io.Writer, res *runner.Result) {
	fmt.Fprintf(w, "Run completed. Outputs at: %s\n", res.RunDir)
	if res.Webserver != nil {
		fmt.Fprintf(w, "CloudMapper webserver on port %d (pid %d)\n", res.Webserver.Port, res.Webserver.PID())
	}
	if res.Uploaded > 0 {
		fmt.Fprintf(w, "Uploaded %d files\n", res.Uploaded)
	}

	if res.Inventory == nil || res.Inventory.Snapshot == nil {
		return
	}
	snap := res.Inventory.Snapshot
	if snap.ErrorCount() == 0 {
		fmt.Fprintln(w, green("No collection errors"))
		return
	}

	fmt.Fprintf(w, "%s\n", yellow(fmt.Sprintf("%d collection errors", snap.ErrorCount())))
	if snap.Global.Failure != nil {
		fmt.Fprintf(w, "  global: %s\n", red(snap.Global.Failure.Code))
	} else if n := len(snap.Global.Errors); n > 0 {
		fmt.Fprintf(w, "  global: %s\n", categoryList(snap.Global.Errors))
	}
	for _, item := range snap.Items {
		switch {
		case item.Failed():
			fmt.Fprintf(w, "  %s: %s\n", item.Region, red(item.Failure.Code))
		case len(item.Errors) > 0 || len(item.DescribeErrors) > 0:
			line := categoryList(item.Errors)
			if n := len(item.DescribeErrors); n > 0 {
				if line != "" {
					line += ", "
				}
				line += fmt.Sprintf("%d table describe errors", n)
			}
			fmt.Fprintf(w, "  %s: %s\n", item.Region, line)
		}
	}
}

func categoryList(errs map[resource.Category]*resource.CallError) string {
	cats := make([]string, 0, len(errs))
	for c, e := range errs {
		cats = append(cats, fmt.Sprintf("%s (%s)", c, red(e.Code)))
	}
	slices.Sort(cats)
	return strings.Join(cats, ", ")
}
