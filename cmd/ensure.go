// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	zctx "github.com/LeeDigitalWorks/ensure-buckets/pkg/context"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/debug"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/logger"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/reconcile"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/storage/backend"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/types"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Environment variables, read through viper so a config file may also set them.
const (
	EnvURL          = "SUPABASE_URL"
	EnvServiceKey   = "SUPABASE_SERVICE_ROLE_KEY"
	EnvS3AccessKey  = "SUPABASE_S3_ACCESS_KEY_ID"
	EnvS3SecretKey  = "SUPABASE_S3_SECRET_ACCESS_KEY"
	bucketsConfig   = "buckets"
	bucketsKey      = "buckets"
	defaultS3Region = "us-east-1"
)

// EnsureOpts holds configuration for one ensure-buckets run.
type EnsureOpts struct {
	URL        string
	ServiceKey string

	Backend     types.StorageType
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	LogLevel    string
	LogFormat   string
	Timeout     time.Duration // 0 means no deadline
	MetricsFile string
	FailOnError bool
	DryRun      bool
}

// MissingEnvError reports a required environment variable that is unset.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return "missing environment variable " + e.Name
}

func init() {
	f := rootCmd.Flags()
	f.String("log_level", "info", "Log level (debug, info, warn, error)")
	f.String("log_format", logger.FormatConsole, "Log format (console, json)")
	f.String("backend", string(types.StorageTypeREST), "Storage backend (rest, s3)")
	f.String("s3_region", defaultS3Region, "Region for the S3-compatible endpoint")
	f.Duration("timeout", 0, "Deadline for the whole run (0 = none)")
	f.String("metrics_file", "", "Write Prometheus metrics to this file after the run")
	f.Bool("fail_on_error", false, "Exit non-zero if any bucket could not be created")
	f.Bool("dry_run", false, "List and compare only, create nothing")

	bindConfig()
}

// bindConfig wires the root flags and the environment into the global viper.
func bindConfig() {
	viper.BindPFlags(rootCmd.Flags())
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

func runEnsure(cmd *cobra.Command, args []string) error {
	// Flags and env first so the config file lookup logs in the chosen format,
	// then again because the file may set log_level or log_format itself.
	opts := loadEnsureOpts(cmd)
	logger.Configure(cmd.ErrOrStderr(), opts.LogFormat, opts.LogLevel)
	if utils.LoadConfiguration(bucketsConfig, false) {
		opts = loadEnsureOpts(cmd)
		logger.Configure(cmd.ErrOrStderr(), opts.LogFormat, opts.LogLevel)
	}

	logger.Debug().Fields(VersionInfo()).Msg("ensure-buckets starting")

	if err := opts.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return err
	}

	desired, err := loadDesiredBuckets(viper.GetViper())
	if err != nil {
		logger.Error().Err(err).Msg("Invalid bucket configuration")
		return err
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	_, err = ensureBuckets(ctx, opts, desired)
	return err
}

func loadEnsureOpts(cmd *cobra.Command) EnsureOpts {
	f := NewFlagLoader(cmd)
	opts := EnsureOpts{
		URL:         strings.TrimSuffix(viper.GetString(EnvURL), "/"),
		ServiceKey:  viper.GetString(EnvServiceKey),
		Backend:     types.StorageType(f.String("backend")),
		S3Region:    f.String("s3_region"),
		S3AccessKey: viper.GetString(EnvS3AccessKey),
		S3SecretKey: viper.GetString(EnvS3SecretKey),
		LogLevel:    f.String("log_level"),
		LogFormat:   f.String("log_format"),
		Timeout:     f.Duration("timeout"),
		MetricsFile: f.String("metrics_file"),
		FailOnError: f.Bool("fail_on_error"),
		DryRun:      f.Bool("dry_run"),
	}

	if opts.Backend == "" {
		opts.Backend = types.StorageTypeREST
	}

	return opts
}

// Validate checks required settings, in the order they are documented.
func (o EnsureOpts) Validate() error {
	if o.URL == "" {
		return &MissingEnvError{Name: EnvURL}
	}
	if o.ServiceKey == "" {
		return &MissingEnvError{Name: EnvServiceKey}
	}
	if o.Backend == types.StorageTypeS3 {
		if o.S3AccessKey == "" {
			return &MissingEnvError{Name: EnvS3AccessKey}
		}
		if o.S3SecretKey == "" {
			return &MissingEnvError{Name: EnvS3SecretKey}
		}
	}
	if o.MetricsFile != "" {
		if err := utils.CheckWritableDir(filepath.Dir(o.MetricsFile)); err != nil {
			return fmt.Errorf("metrics_file %s: %w", o.MetricsFile, err)
		}
	}
	return nil
}

func (o EnsureOpts) backendConfig() types.BackendConfig {
	return types.BackendConfig{
		Type:       o.Backend,
		URL:        o.URL,
		ServiceKey: o.ServiceKey,
		Region:     o.S3Region,
		AccessKey:  o.S3AccessKey,
		SecretKey:  o.S3SecretKey,
	}
}

// loadDesiredBuckets reads the "buckets" key, falling back to the buckets the
// app ships with.
func loadDesiredBuckets(v *viper.Viper) ([]types.Bucket, error) {
	if !v.IsSet(bucketsKey) {
		return types.DefaultBuckets(), nil
	}

	var specs []types.BucketSpec
	if err := v.UnmarshalKey(bucketsKey, &specs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", bucketsKey, err)
	}

	buckets, err := types.LoadBucketSpecs(specs)
	if err != nil {
		return nil, err
	}
	for _, w := range types.ValidateBuckets(buckets).Warnings {
		logger.Warn().Msg(w)
	}
	return buckets, nil
}

// ensureBuckets runs one reconciliation pass. It fails on invalid options,
// on a listing error, and, with FailOnError, when any creation failed.
func ensureBuckets(ctx context.Context, opts EnsureOpts, desired []types.Bucket) (*reconcile.Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	store, err := backend.New(opts.backendConfig())
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", opts.Backend, err)
	}
	defer store.Close()

	if opts.MetricsFile != "" {
		defer func() {
			if err := debug.WriteMetricsFile(opts.MetricsFile); err != nil {
				logger.Warn().Err(err).Msg("Failed to write metrics file")
			}
		}()
	}

	ctx, runID := zctx.WithUUID(ctx)
	log := logger.Global().With().Str("run_id", runID).Logger()
	r := reconcile.NewReconciler(reconcile.Config{DryRun: opts.DryRun}, store, &log)

	report, err := r.Run(ctx, desired)
	if err != nil {
		log.Error().Err(err).Msg("Error while ensuring buckets")
		return nil, err
	}

	if opts.FailOnError {
		if err := report.Err(); err != nil {
			return report, fmt.Errorf("%d bucket(s) could not be created: %w", len(report.Failed()), err)
		}
	}
	return report, nil
}
