package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/killallgit/loom/pkg/conversation"
	"github.com/killallgit/loom/pkg/events"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <events.jsonl>",
	Short: "Show how each recorded event classifies and tracks",
	Long: `Print a per-event table of classification, lifecycle phase and item
identity for a recorded event log, followed by the tracker state the log
produces. Useful for working out why a session renders the way it does.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspect(os.Stdout, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error inspecting log: %v\n", err)
			os.Exit(1)
		}
	},
}

func runInspect(out io.Writer, logPath string) error {
	evs, err := readEventLog(logPath)
	if err != nil {
		return err
	}

	if len(evs) == 0 {
		fmt.Fprintln(out, "No events found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTYPE\tKIND\tPHASE\tITEM\tDETAIL")

	for _, ev := range evs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			ev.SequenceNumber,
			ev.Type,
			events.Classify(ev.Type),
			phaseLabel(ev),
			itemLabel(ev),
			eventDetail(ev))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	tracker := conversation.NewTracker()
	tracker.Apply(evs)
	stats := tracker.Stats()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "events: %d  items: %d  in-flight: %d  terminal: %d  buffered fragments: %d\n",
		stats.ProcessedEvents, stats.Items, stats.InFlight, stats.Terminal, stats.BufferedFragments)

	return nil
}

func phaseLabel(ev events.RawEvent) string {
	if p := ev.Phase(); p != events.PhaseUnknown {
		return string(p)
	}
	return "-"
}

func itemLabel(ev events.RawEvent) string {
	if id := ev.ResolveItemID(); id != "" {
		return id
	}
	return "-"
}

func eventDetail(ev events.RawEvent) string {
	switch {
	case ev.IsError():
		if detail := ev.ErrorInfo(); detail != nil {
			return snippet(detail.Message)
		}
		return ""
	case ev.IsDelta():
		return snippet(ev.Delta)
	default:
		return snippet(ev.FinalText())
	}
}

// snippet flattens and truncates free text so table rows stay on one line
func snippet(s string) string {
	const max = 40

	runes := []rune(s)
	for i, r := range runes {
		if r == '\n' || r == '\t' {
			runes[i] = ' '
		}
	}
	if len(runes) > max {
		return string(runes[:max-3]) + "..."
	}
	return string(runes)
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
