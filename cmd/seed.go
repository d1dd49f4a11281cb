package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsvoboda/memorymap/internal/config"
	"github.com/jsvoboda/memorymap/internal/seed"
	"github.com/jsvoboda/memorymap/internal/store/postgres"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the profile with the bundled starter document",
	Long: `Seed the trips profile from the bundled starter document.
The seed is applied only when no profile exists yet; an already configured
map is never overwritten.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	applied, err := seed.Apply(cmd.Context(), postgres.NewProfileRepository(pool))
	if err != nil {
		return fmt.Errorf("seeding profile: %w", err)
	}
	if applied {
		fmt.Println("Seed profile stored")
	} else {
		fmt.Println("Profile already exists, nothing to do")
	}
	return nil
}
