package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/keshav-github-123/GraphMind/internal/store"
	"github.com/keshav-github-123/GraphMind/internal/types"
)

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadListCmd, threadHistoryCmd, threadDeleteCmd)
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage conversation threads",
}

func openDB() (*store.DB, error) {
	cfg := loadConfig()
	return store.Open(filepath.Join(cfg.DataDir, "graphmind.db"))
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		summaries, err := store.NewSummaryStore(db).List(context.Background())
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}
		if len(summaries) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "THREAD\tSUMMARY\tCREATED")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				s.ThreadID,
				s.Summary,
				s.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var threadHistoryCmd = &cobra.Command{
	Use:   "history <thread-id>",
	Short: "Print a thread's turn sequence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		cp, err := store.NewCheckpointStore(db).Load(context.Background(), types.ThreadID(args[0]))
		if err != nil {
			return fmt.Errorf("load thread: %w", err)
		}
		if cp == nil {
			fmt.Println("Thread not found.")
			return nil
		}

		for _, turn := range cp.Turns {
			label := string(turn.Role)
			if turn.Role == types.RoleTool {
				label = fmt.Sprintf("tool(%s)", turn.ToolName)
			}
			content := turn.Content
			if content == "" && len(turn.ToolCalls) > 0 {
				content = fmt.Sprintf("[%d tool call(s)]", len(turn.ToolCalls))
			}
			fmt.Printf("%s: %s\n", label, content)
		}
		return nil
	},
}

var threadDeleteCmd = &cobra.Command{
	Use:   "delete <thread-id>",
	Short: "Delete a thread's checkpoints and summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		id := types.ThreadID(args[0])
		if err := store.NewCheckpointStore(db).Delete(ctx, id); err != nil {
			return fmt.Errorf("delete checkpoints: %w", err)
		}
		if err := store.NewSummaryStore(db).Delete(ctx, id); err != nil {
			return fmt.Errorf("delete summary: %w", err)
		}
		fmt.Printf("Thread %s deleted.\n", id)
		return nil
	},
}
