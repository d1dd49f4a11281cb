package cmd

import (
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jsvoboda/memorymap/internal/config"
	"github.com/jsvoboda/memorymap/internal/gallery"
	"github.com/jsvoboda/memorymap/internal/match"
	"github.com/jsvoboda/memorymap/internal/store/postgres"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the face index and repair photo tags",
	Long: `Rebuild the in-memory face index from stored detections and recompute
every photo's face tags from its confirmed assignments. Tags whose member no
longer exists are dropped; tags missing for a confirmed assignment are added.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	photoRepo := postgres.NewPhotoRepository(pool)
	faceRepo := postgres.NewFaceRepository(pool)
	memberRepo := postgres.NewMemberRepository(pool)

	// Indexing and reconciliation never touch the blob store or the
	// detection service.
	svc := gallery.NewService(
		photoRepo, faceRepo, memberRepo,
		nil, nil,
		match.NewIndex(), cfg.FaceAPI.MatchThreshold,
		zap.NewNop(),
	)

	ctx := cmd.Context()

	n, err := svc.WarmIndex(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding face index: %w", err)
	}
	fmt.Printf("Face index rebuilt with %d faces\n", n)

	photos, err := photoRepo.ListPhotos(ctx)
	if err != nil {
		return fmt.Errorf("listing photos: %w", err)
	}
	if len(photos) == 0 {
		fmt.Println("No photos to reconcile")
		return nil
	}

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Reconciling tags"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var failed int
	for _, photo := range photos {
		if err := svc.ReconcilePhotoTags(ctx, photo.ID); err != nil {
			failed++
			fmt.Printf("\nWarning: failed to reconcile photo %s: %v\n", photo.ID, err)
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	if failed > 0 {
		return fmt.Errorf("%d of %d photos failed to reconcile", failed, len(photos))
	}
	fmt.Printf("Reconciled %d photos\n", len(photos))
	return nil
}
