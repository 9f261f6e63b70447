package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"agriassist/internal/classifier"
	"agriassist/internal/config"
	"agriassist/internal/narrator"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your Agri-Assistant setup",
		Long: `Verifies that configuration, credentials, and the two remote services
are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("Agri-Assistant Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists (defaults are fine, so only a warning)
			var cfg *config.Config
			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s, using env defaults (run 'agriassist init')", cfgPath))
				warned++
				cfg = config.Defaults()
			} else {
				printPass("Config file", cfgPath)
				passed++

				cfg, err = config.Load(cfgPath)
				if err != nil {
					printFail("Config validation", err.Error())
					failed++
					fmt.Printf("\n%d passed, %d failed, %d warnings\n", passed, failed, warned)
					return nil
				}
				printPass("Config validation", "valid")
				passed++
			}

			// 2. Narrator credential
			narratorName, _ := cfg.Narrator.Active()
			if !cfg.Narrator.Configured() {
				printFail("Narrator credential", fmt.Sprintf("no API key for provider %q", narratorName))
				failed++
			} else {
				printPass("Narrator credential", narratorName)
				passed++
			}

			// 3. Classifier credential
			if !cfg.Classifier.Configured() {
				printFail("Classifier credential", "no Plant.id API key (image path disabled)")
				failed++
			} else {
				printPass("Classifier credential", "plant.id")
				passed++
			}

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			// 4. Narrator reachable
			if cfg.Narrator.Configured() {
				narr, err := narrator.New(cfg, logger)
				if err != nil {
					printFail("Narrator reachable", err.Error())
					failed++
				} else if err := narr.Healthy(ctx); err != nil {
					printFail("Narrator reachable", err.Error())
					failed++
				} else {
					printPass("Narrator reachable", narr.Name())
					passed++
				}
			}

			// 5. Classifier configured check (Plant.id has no free health endpoint)
			if cfg.Classifier.Configured() {
				clf := classifier.NewPlantID(classifier.Config{
					APIKey:  cfg.Classifier.APIKey,
					APIBase: cfg.Classifier.APIBase,
					Logger:  logger,
				})
				if err := clf.Healthy(ctx); err != nil {
					printFail("Classifier client", err.Error())
					failed++
				} else {
					printPass("Classifier client", clf.Name())
					passed++
				}
			}

			// 6. Channel sanity
			if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
				printFail("Telegram channel", "enabled but no token configured")
				failed++
			} else if cfg.Channels.Telegram.Enabled {
				printPass("Telegram channel", "token configured")
				passed++
			}
			if cfg.Channels.Web.Enabled {
				printPass("Web channel", fmt.Sprintf("%s:%d", cfg.Channels.Web.Host, cfg.Channels.Web.Port))
				passed++
			}

			fmt.Printf("\n%d passed, %d failed, %d warnings\n", passed, failed, warned)
			return nil
		},
	}
}

func printPass(check, detail string) {
	fmt.Printf("  ✅ %-22s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  ❌ %-22s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  ⚠️  %-22s %s\n", check, detail)
}
