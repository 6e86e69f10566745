package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datastash/datastash/internal/cli/prompt"
	"github.com/datastash/datastash/pkg/store"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached and stored data",
}

var clearExpiredCmd = &cobra.Command{
	Use:   "expired",
	Short: "Remove entries whose TTL has elapsed",
	RunE:  runClearExpired,
}

var clearCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Empty the cache partition",
	Long: `Empty the cache partition. Datasets and temporary files are not
touched; cached query results are rebuilt on demand.`,
	RunE: runClearCache,
}

var clearAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Empty every partition, including downloaded datasets",
	RunE:  runClearAll,
}

func init() {
	clearCmd.PersistentFlags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")

	clearCmd.AddCommand(clearExpiredCmd)
	clearCmd.AddCommand(clearCacheCmd)
	clearCmd.AddCommand(clearAllCmd)
}

func confirmClear(label string) (bool, error) {
	if clearYes {
		return true, nil
	}
	ok, err := prompt.Confirm(label, false)
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func runClearExpired(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, _, cleanup, err := openStash(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	removed, err := s.Cache().ClearExpired(ctx)
	if err != nil {
		return fmt.Errorf("clear expired entries: %w", err)
	}
	fmt.Printf("Removed %d expired entries.\n", removed)
	return nil
}

func runClearCache(cmd *cobra.Command, args []string) error {
	ok, err := confirmClear("Empty the cache partition?")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	ctx := context.Background()
	s, _, cleanup, err := openStash(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := s.Cache().ClearAll(ctx, store.PartitionCache); err != nil {
		return fmt.Errorf("clear cache partition: %w", err)
	}
	s.Cache().ResetCounters()
	fmt.Println("Cache partition cleared.")
	return nil
}

func runClearAll(cmd *cobra.Command, args []string) error {
	// Destructive across all partitions; require the word to be typed.
	if !clearYes {
		ok, err := prompt.ConfirmDanger("Remove ALL stored data, including downloaded datasets", "clear")
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	ctx := context.Background()
	s, _, cleanup, err := openStash(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, partition := range store.Partitions() {
		if err := s.Cache().ClearAll(ctx, partition); err != nil {
			return fmt.Errorf("clear %s partition: %w", partition, err)
		}
	}
	s.Cache().ResetCounters()
	fmt.Println("All partitions cleared.")
	return nil
}
