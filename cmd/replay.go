package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/killallgit/loom/pkg/config"
	"github.com/killallgit/loom/pkg/conversation"
	"github.com/killallgit/loom/pkg/events"
	"github.com/killallgit/loom/pkg/logger"
	"github.com/killallgit/loom/pkg/transcript"
	"github.com/spf13/cobra"
)

var (
	replaySnapshotPath string
	replayHistoryPath  string
	replayJSON         bool
	replayStep         bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Replay a recorded event log and print the merged conversation",
	Long: `Feed a recorded live-event log through the merge engine and print the
conversation a viewer would see. A durable snapshot can be merged underneath
the live feed with --snapshot, and --history supplies the fallback shown when
no other source has data.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := replayOptions{
			snapshotPath: replaySnapshotPath,
			historyPath:  replayHistoryPath,
			asJSON:       replayJSON,
			step:         replayStep,
		}
		if err := runReplay(os.Stdout, args[0], opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error replaying session: %v\n", err)
			os.Exit(1)
		}
	},
}

type replayOptions struct {
	snapshotPath string
	historyPath  string
	asJSON       bool
	step         bool
}

func runReplay(out io.Writer, logPath string, opts replayOptions) error {
	log := logger.WithComponent("replay")

	evs, err := readEventLog(logPath)
	if err != nil {
		return err
	}

	session := "replay"
	var durable []events.RawEvent
	if opts.snapshotPath != "" {
		snap, err := readSnapshotFile(opts.snapshotPath)
		if err != nil {
			return err
		}
		durable = snap.Events
		if sid, ok := snap.Metadata["session_id"].(string); ok && sid != "" {
			session = sid
		}
	}

	store := conversation.NewStore(session)
	defer store.Close()

	if opts.historyPath != "" {
		snap, err := readSnapshotFile(opts.historyPath)
		if err != nil {
			return err
		}
		store.SetHistorySnapshot(conversation.ItemsFromEvents(snap.Events))
	}

	if len(durable) > 0 {
		store.SetDurableEvents(durable)
	}

	renderer := newConfiguredRenderer()

	if opts.step {
		for i, ev := range evs {
			store.AppendLiveEvents(ev)
			fmt.Fprintf(out, "=== event %d/%d  seq=%d  type=%s\n", i+1, len(evs), ev.SequenceNumber, ev.Type)
			if err := writeConversation(out, renderer, store.Conversation(), opts.asJSON); err != nil {
				return err
			}
			fmt.Fprintln(out)
		}
		log.Debug("Stepped replay complete", "events", len(evs))
		return nil
	}

	store.SetLiveEvents(evs)
	items := store.Conversation()
	log.Debug("Replay complete", "events", len(evs), "items", len(items))
	return writeConversation(out, renderer, items, opts.asJSON)
}

func writeConversation(out io.Writer, renderer *transcript.Renderer, items []conversation.ConversationItem, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode conversation: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No conversation items")
		return nil
	}

	fmt.Fprintln(out, renderer.Render(items))
	return nil
}

func newConfiguredRenderer() *transcript.Renderer {
	settings := config.Get()
	return transcript.NewRenderer(transcript.Options{
		Theme:          settings.Transcript.Theme,
		Width:          settings.Transcript.Width,
		Color:          settings.Transcript.Color,
		ShowTimestamps: settings.Transcript.ShowTimestamps,
		ShowReasoning:  settings.Transcript.ShowReasoning,
	})
}

func readEventLog(path string) ([]events.RawEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	return events.ReadLog(f)
}

func readSnapshotFile(path string) (events.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return events.Snapshot{}, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	return events.ReadSnapshot(f)
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVar(&replaySnapshotPath, "snapshot", "", "durable snapshot JSON merged underneath the live feed")
	replayCmd.Flags().StringVar(&replayHistoryPath, "history", "", "history snapshot JSON shown when no other source has data")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print merged items as JSON instead of a transcript")
	replayCmd.Flags().BoolVar(&replayStep, "step", false, "print the conversation after every applied event")
}
