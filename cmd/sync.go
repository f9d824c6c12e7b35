package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/edge-shortlister/internal/logger"
	"github.com/spigell/edge-shortlister/internal/store"
	"github.com/spigell/edge-shortlister/internal/talent"
)

var syncCmd = &cobra.Command{
	Use:   "sync EXPORT.csv [EXPORT.csv...]",
	Short: "Merge daily candidate exports into the master table",
	Args:  cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}

		if err := runSync(ctx, logger, args); err != nil {
			logger.Fatal("sync failed", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().String("key-column", "", "column used to de-duplicate rows (default store.key-column)")
	viper.BindPFlag("store.key-column", syncCmd.Flags().Lookup("key-column"))
}

func runSync(ctx context.Context, logger *zap.Logger, paths []string) error {
	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	// Read every file before touching the store so a bad export leaves the master table alone.
	incoming := make([]*talent.Table, 0, len(paths))
	for _, path := range paths {
		t, err := talent.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading export %s: %w", path, err)
		}
		renamed := talent.NormalizeColumns(t, config.Columns.Aliases)
		logger.Info("export loaded",
			zap.String("path", path),
			zap.Int("rows", t.Len()),
			zap.Strings("renamed_columns", renamed),
		)
		incoming = append(incoming, t)
	}

	st, err := store.Open(ctx, config.Store, logger)
	if err != nil {
		return fmt.Errorf("opening master store: %w", err)
	}

	summary, err := st.Sync(ctx, incoming...)
	if err != nil {
		return err
	}

	fmt.Printf("master table %s: %d rows before, %d incoming, %d after (%d duplicates replaced, key %q)\n",
		summary.Location, summary.Before, summary.Incoming, summary.After, summary.Duplicates, summary.KeyColumn)
	return nil
}
