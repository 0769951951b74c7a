// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"
	"time"

	"github.com/LeeDigitalWorks/ensure-buckets/pkg/utils"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ensure-buckets",
	Short: "Create any missing storage buckets",
	Long: `ensure-buckets lists the storage buckets of a project and creates the
ones the app expects but the project does not have yet.

It needs the service-role key, because creating buckets requires elevated
privileges:

  SUPABASE_URL=https://your-project.supabase.co \
  SUPABASE_SERVICE_ROLE_KEY=... \
  ensure-buckets

Buckets that already exist are left alone, so running it again is safe.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runEnsure,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}
