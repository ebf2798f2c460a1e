package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/multistream/internal/logging"
	"github.com/smazurov/multistream/internal/updater"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var checkOnly bool
	var prerelease bool
	var devBuild bool
	var repository string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the multistream binary",
		Long: `Checks GitHub releases for a newer build and replaces the current binary in place. ` +
			`A backup of the running version is kept for rollback.`,
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			svc, err := updater.NewService(&updater.Options{
				Repository: repository,
				Prerelease: prerelease,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to initialize updater: %v\n", err)
				os.Exit(1)
			}
			if !svc.IsEnabled() {
				fmt.Fprintf(os.Stderr, "Updates disabled: %s\n", svc.DisabledReason())
				os.Exit(1)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if devBuild {
				fmt.Println("Applying rolling dev build...")
				if err := svc.ApplyDevBuild(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "Dev build failed: %v\n", err)
					os.Exit(1)
				}
				fmt.Println("Dev build applied")
				// Exit before the deferred restart signal fires; the binary
				// is already swapped.
				os.Exit(0)
			}

			info, err := svc.CheckForUpdate(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Update check failed: %v\n", err)
				os.Exit(1)
			}

			if !info.UpdateAvailable {
				fmt.Printf("Already up to date (%s)\n", info.CurrentVersion)
				return
			}

			fmt.Printf("Update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			if info.ReleaseURL != "" {
				fmt.Printf("  Release: %s\n", info.ReleaseURL)
			}
			if checkOnly {
				return
			}

			fmt.Println("Downloading and applying...")
			if err := svc.ApplyUpdate(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("Updated to %s\n", info.LatestVersion)
			os.Exit(0)
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check for updates, do not apply")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().BoolVar(&devBuild, "dev", false, "Apply the rolling dev build")
	cmd.Flags().StringVar(&repository, "repository", "smazurov/multistream", "GitHub repository to update from")

	return cmd
}
