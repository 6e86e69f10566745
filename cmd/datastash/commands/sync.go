package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/datastash/datastash/internal/cli/output"
	"github.com/datastash/datastash/internal/cli/timeutil"
	"github.com/datastash/datastash/pkg/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manage background synchronization",
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run a cache revalidation and wait for it to finish",
	RunE:  runSyncNow,
}

var syncTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List sync tasks",
	RunE:  runSyncTasks,
}

var syncClearCompletedCmd = &cobra.Command{
	Use:   "clear-completed",
	Short: "Drop completed and failed tasks from the history",
	RunE:  runSyncClearCompleted,
}

var syncRefreshCmd = &cobra.Command{
	Use:   "refresh <dataset>",
	Short: "Queue a dataset refresh from the origin",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncRefresh,
}

var syncWaitTimeout time.Duration

func init() {
	syncNowCmd.Flags().DurationVar(&syncWaitTimeout, "timeout", 2*time.Minute, "how long to wait for the revalidation to finish")

	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncTasksCmd)
	syncCmd.AddCommand(syncRefreshCmd)
	syncCmd.AddCommand(syncClearCompletedCmd)
}

func runSyncRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, _, cleanup, err := openStash(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	task, err := s.Syncer().Enqueue(syncer.KindRefreshDataset, args[0])
	if err != nil {
		return fmt.Errorf("enqueue refresh: %w", err)
	}

	deadline := time.Now().Add(syncWaitTimeout)
	for time.Now().Before(deadline) {
		current, ok := findTask(s.Syncer().Tasks(), task.ID)
		if ok && current.Status.Terminal() {
			if current.Status == syncer.StatusFailed {
				return fmt.Errorf("refresh failed: %s", current.Error)
			}
			fmt.Printf("Dataset %s refreshed.\n", args[0])
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("refresh did not finish within %s", syncWaitTimeout)
}

func runSyncNow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, _, cleanup, err := openStash(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	task, err := s.Syncer().SyncNow()
	if err != nil {
		return fmt.Errorf("enqueue revalidation: %w", err)
	}

	deadline := time.Now().Add(syncWaitTimeout)
	for time.Now().Before(deadline) {
		current, ok := findTask(s.Syncer().Tasks(), task.ID)
		if ok && current.Status.Terminal() {
			if current.Status == syncer.StatusFailed {
				return fmt.Errorf("revalidation failed: %s", current.Error)
			}
			fmt.Println("Revalidation completed.")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("revalidation did not finish within %s", syncWaitTimeout)
}

func findTask(tasks []syncer.Task, id uint64) (syncer.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return syncer.Task{}, false
}

func runSyncTasks(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, _, cleanup, err := openStash(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	tasks := s.Syncer().Tasks()
	if len(tasks) == 0 && format == output.FormatTable {
		fmt.Println("No sync tasks.")
		return nil
	}

	now := time.Now()
	table := output.NewTableData("ID", "KIND", "DATASET", "STATUS", "CREATED", "ERROR")
	for _, t := range tasks {
		table.AddRow(
			strconv.FormatUint(t.ID, 10),
			string(t.Kind),
			t.Dataset,
			string(t.Status),
			timeutil.FormatAge(t.CreatedAt, now),
			t.Error,
		)
	}
	return output.Print(os.Stdout, format, tasks, table)
}

func runSyncClearCompleted(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, _, cleanup, err := openStash(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	removed := s.Syncer().ClearCompleted()
	fmt.Printf("Removed %d finished tasks.\n", removed)
	return nil
}
