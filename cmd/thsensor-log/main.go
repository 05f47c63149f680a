// Command thsensor-log reads the event logs written by thsensor-sim.
//
// Usage:
//
//	thsensor-log <command> [flags] <file.zlog>
//
// Examples:
//
//	# Show only sleep entries
//	thsensor-log view -category sleep device.zlog
//
//	# Follow one boot across the commissioning layer
//	thsensor-log view -layer commissioning -boot 0b7d0d2c device.zlog
//
//	# Export to CSV for plotting duty cycle
//	thsensor-log export -format csv -o sleeps.csv device.zlog
//
//	# Sleep, join and frame counter summary
//	thsensor-log stats device.zlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/thsensor/thsensor-go/cmd/thsensor-log/commands"
)

const usage = `thsensor-log - Sensor Event Log Analyzer

Usage:
  thsensor-log <command> [flags] <file.zlog>

Commands:
  view     Print events in human-readable form
  export   Export events as JSONL or CSV
  filter   Write matching events to a new log file
  stats    Summarize sleeps, joins and frame counter activity

Use "thsensor-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "thsensor-log %s - %s\n\nUsage:\n  thsensor-log %s [flags] <file.zlog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

// parsePath parses args and returns the single log file argument.
func parsePath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := newFlagSet("view", "Print events in human-readable form")
	layer := fs.String("layer", "", "Filter by layer (power, timer, commissioning)")
	category := fs.String("category", "", "Filter by category (sleep, wake, state, timer, persist, error)")
	boot := fs.String("boot", "", "Filter by boot ID")
	path := parsePath(fs, args)

	filter := commands.ViewFilter{BootID: *boot}
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export events as JSONL or CSV")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parsePath(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Write matching events to a new log file")
	output := fs.String("o", "", "Output file (required)")
	bootID := fs.String("boot-id", "", "Filter by boot ID")
	deviceID := fs.String("device-id", "", "Filter by device ID")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	layer := fs.String("layer", "", "Filter by layer (power, timer, commissioning)")
	category := fs.String("category", "", "Filter by category (sleep, wake, state, timer, persist, error)")
	path := parsePath(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, commands.FilterOptions{
		Output:    *output,
		BootID:    *bootID,
		DeviceID:  *deviceID,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Layer:     *layer,
		Category:  *category,
	})
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Summarize sleeps, joins and frame counter activity")
	path := parsePath(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
