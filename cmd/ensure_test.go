// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/LeeDigitalWorks/ensure-buckets/pkg/logger"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/reconcile"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/storage/backend"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/types"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform is a minimal storage API that records every request.
type fakePlatform struct {
	mu       sync.Mutex
	buckets  []string
	listCode int
	failing  map[string]int
	requests []string
}

func newFakePlatform(t *testing.T, existing ...string) (*fakePlatform, *httptest.Server) {
	t.Helper()

	p := &fakePlatform{
		buckets:  existing,
		listCode: http.StatusOK,
		failing:  make(map[string]int),
	}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, r.Method)
	if r.URL.Path != backend.BucketsPath {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if p.listCode != http.StatusOK {
			w.WriteHeader(p.listCode)
			io.WriteString(w, `{"error":"Internal","message":"listing failed"}`)
			return
		}
		out := make([]types.Bucket, 0, len(p.buckets))
		for _, name := range p.buckets {
			out = append(out, types.Bucket{ID: name, Name: name, Public: true})
		}
		json.NewEncoder(w).Encode(out)
	case http.MethodPost:
		var body types.Bucket
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if code, ok := p.failing[body.Name]; ok {
			w.WriteHeader(code)
			io.WriteString(w, `{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`)
			return
		}
		p.buckets = append(p.buckets, body.Name)
		json.NewEncoder(w).Encode(map[string]string{"name": body.Name})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (p *fakePlatform) setListCode(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCode = code
}

func (p *fakePlatform) fail(name string, code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing[name] = code
}

func (p *fakePlatform) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.buckets))
	copy(out, p.buckets)
	return out
}

func (p *fakePlatform) count(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.requests {
		if m == method {
			n++
		}
	}
	return n
}

func testOpts(url string) EnsureOpts {
	return EnsureOpts{
		URL:        url,
		ServiceKey: "service-role-key",
		Backend:    types.StorageTypeREST,
	}
}

func desiredABC() []types.Bucket {
	return []types.Bucket{
		{Name: "A", Public: true},
		{Name: "B", Public: true},
		{Name: "C", Public: true},
	}
}

func TestEnsureBuckets_Scenario(t *testing.T) {
	platform, srv := newFakePlatform(t, "B")

	report, err := ensureBuckets(context.Background(), testOpts(srv.URL), desiredABC())
	require.NoError(t, err)

	assert.Equal(t, 1, platform.count(http.MethodGet))
	assert.Equal(t, 2, platform.count(http.MethodPost))
	assert.Equal(t, reconcile.OutcomeCreated, report.Results[0].Outcome)
	assert.Equal(t, reconcile.OutcomeExists, report.Results[1].Outcome)
	assert.Equal(t, reconcile.OutcomeCreated, report.Results[2].Outcome)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, platform.names())

	// A second run finds everything and creates nothing.
	report, err = ensureBuckets(context.Background(), testOpts(srv.URL), desiredABC())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(reconcile.OutcomeExists))
	assert.Equal(t, 2, platform.count(http.MethodPost))
}

func TestEnsureBuckets_MissingConfigMakesNoRequests(t *testing.T) {
	platform, srv := newFakePlatform(t)

	noURL := testOpts("")
	_, err := ensureBuckets(context.Background(), noURL, desiredABC())
	var missing *MissingEnvError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, EnvURL, missing.Name)

	noKey := testOpts(srv.URL)
	noKey.ServiceKey = ""
	_, err = ensureBuckets(context.Background(), noKey, desiredABC())
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, EnvServiceKey, missing.Name)

	assert.Zero(t, platform.count(http.MethodGet))
	assert.Zero(t, platform.count(http.MethodPost))
}

func TestEnsureBuckets_ListFailureIsFatal(t *testing.T) {
	platform, srv := newFakePlatform(t)
	platform.setListCode(http.StatusInternalServerError)

	report, err := ensureBuckets(context.Background(), testOpts(srv.URL), desiredABC())
	require.Error(t, err)
	assert.Nil(t, report)

	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "listing failed", apiErr.Message())
	assert.Zero(t, platform.count(http.MethodPost))
}

func TestEnsureBuckets_CreateFailureContinues(t *testing.T) {
	platform, srv := newFakePlatform(t)
	platform.fail("A", http.StatusConflict)

	report, err := ensureBuckets(context.Background(), testOpts(srv.URL), desiredABC())
	require.NoError(t, err)

	assert.Equal(t, 3, platform.count(http.MethodPost))
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "A", report.Failed()[0].Bucket.Name)
	assert.Equal(t, 2, report.Count(reconcile.OutcomeCreated))
}

func TestEnsureBuckets_FailOnError(t *testing.T) {
	platform, srv := newFakePlatform(t)
	platform.fail("B", http.StatusConflict)

	opts := testOpts(srv.URL)
	opts.FailOnError = true

	report, err := ensureBuckets(context.Background(), opts, desiredABC())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 bucket(s) could not be created")
	require.NotNil(t, report)
	assert.Equal(t, 3, platform.count(http.MethodPost))
}

func TestEnsureBuckets_DryRun(t *testing.T) {
	platform, srv := newFakePlatform(t, "A")

	opts := testOpts(srv.URL)
	opts.DryRun = true

	report, err := ensureBuckets(context.Background(), opts, desiredABC())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(reconcile.OutcomePlanned))
	assert.Zero(t, platform.count(http.MethodPost))
}

func TestEnsureBuckets_WritesMetricsFile(t *testing.T) {
	_, srv := newFakePlatform(t)

	opts := testOpts(srv.URL)
	opts.MetricsFile = filepath.Join(t.TempDir(), "ensure_buckets.prom")

	_, err := ensureBuckets(context.Background(), opts, desiredABC())
	require.NoError(t, err)

	data, err := os.ReadFile(opts.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ensure_buckets_results_total")
	assert.Contains(t, string(data), `outcome="created"`)
}

func TestEnsureBuckets_UnknownBackend(t *testing.T) {
	opts := testOpts("http://localhost")
	opts.Backend = "ftp"

	_, err := ensureBuckets(context.Background(), opts, desiredABC())
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestValidate_S3NeedsKeys(t *testing.T) {
	opts := testOpts("http://localhost")
	opts.Backend = types.StorageTypeS3

	var missing *MissingEnvError
	require.True(t, errors.As(opts.Validate(), &missing))
	assert.Equal(t, EnvS3AccessKey, missing.Name)

	opts.S3AccessKey = "a"
	require.True(t, errors.As(opts.Validate(), &missing))
	assert.Equal(t, EnvS3SecretKey, missing.Name)

	opts.S3SecretKey = "b"
	assert.NoError(t, opts.Validate())
}

func TestLoadEnsureOpts_FromEnv(t *testing.T) {
	t.Setenv(EnvURL, "https://project.supabase.co/")
	t.Setenv(EnvServiceKey, "secret")

	opts := loadEnsureOpts(rootCmd)
	assert.Equal(t, "https://project.supabase.co", opts.URL)
	assert.Equal(t, "secret", opts.ServiceKey)
	assert.Equal(t, types.StorageTypeREST, opts.Backend)
	assert.False(t, opts.DryRun)
	assert.Zero(t, opts.Timeout)
	assert.NoError(t, opts.Validate())
}

func TestLoadEnsureOpts_MissingEnv(t *testing.T) {
	t.Setenv(EnvURL, "")
	t.Setenv(EnvServiceKey, "secret")

	opts := loadEnsureOpts(rootCmd)
	err := opts.Validate()
	require.Error(t, err)
	assert.Equal(t, "missing environment variable SUPABASE_URL", err.Error())
}

func TestLoadDesiredBuckets_Default(t *testing.T) {
	buckets, err := loadDesiredBuckets(viper.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"message_attachments", "post_attachments", "ncd-app-media"}, types.BucketNames(buckets))
	for _, b := range buckets {
		assert.True(t, b.Public, b.Name)
	}
}

func TestLoadDesiredBuckets_FromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
buckets:
  - name: avatars
    public: true
    file_size_limit: 5MB
    allowed_mime_types: [image/png, image/jpeg]
  - name: exports
`)))

	buckets, err := loadDesiredBuckets(v)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, types.Bucket{
		Name:             "avatars",
		Public:           true,
		FileSizeLimit:    5_000_000,
		AllowedMimeTypes: []string{"image/png", "image/jpeg"},
	}, buckets[0])
	assert.Equal(t, types.Bucket{Name: "exports"}, buckets[1])
}

func TestLoadDesiredBuckets_Invalid(t *testing.T) {
	v := viper.New()
	v.Set("buckets", []map[string]any{{"name": "a"}, {"name": "a"}})

	_, err := loadDesiredBuckets(v)
	assert.ErrorContains(t, err, `duplicate bucket name "a"`)
}

func TestVersionCommand(t *testing.T) {
	var out strings.Builder
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "ensure-buckets "+Version)
}

// executeRoot runs the root command with args and returns its log output.
// Flag, viper and logger state is restored afterwards.
func executeRoot(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()

	t.Cleanup(func() {
		reset := func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
		rootCmd.Flags().VisitAll(reset)
		rootCmd.PersistentFlags().VisitAll(reset)
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
		viper.Reset()
		bindConfig()
		logger.Configure(os.Stderr, logger.FormatConsole, "info")
	})

	var buf bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetErr(&buf)
	return &buf, rootCmd.Execute()
}

func writeBucketsFile(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "buckets.yaml"), []byte(content), 0o600))
	return dir
}

// jsonMessages decodes every log line, failing on any line that is not JSON.
func jsonMessages(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()

	var msgs []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry struct {
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line %q", line)
		msgs = append(msgs, entry.Message)
	}
	return msgs
}

func TestRootCommand_ConfigDir(t *testing.T) {
	platform, srv := newFakePlatform(t, "exports")
	t.Setenv(EnvURL, srv.URL+"/")
	t.Setenv(EnvServiceKey, "service-role-key")

	dir := writeBucketsFile(t, `
buckets:
  - name: avatars
    public: true
  - name: exports
`)

	buf, err := executeRoot(t, "--config_dir", dir, "--log_format", "json")
	require.NoError(t, err)

	assert.Equal(t, []string{"exports", "avatars"}, platform.names())
	assert.Equal(t, 1, platform.count(http.MethodGet))
	assert.Equal(t, 1, platform.count(http.MethodPost))

	msgs := jsonMessages(t, buf)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Loaded config file: "+filepath.Join(dir, "buckets.yaml"), msgs[0])
	assert.Contains(t, msgs, "Bucket exists: exports")
	assert.Contains(t, msgs, "Created bucket avatars")
	assert.Equal(t, "Done.", msgs[len(msgs)-1])
}

func TestRootCommand_ValidatesBeforeAnything(t *testing.T) {
	platform, srv := newFakePlatform(t)
	t.Setenv(EnvURL, srv.URL)
	t.Setenv(EnvServiceKey, "")

	// An invalid bucket file must not be reached before the missing key is reported.
	dir := writeBucketsFile(t, `
buckets:
  - name: dup
  - name: dup
`)

	buf, err := executeRoot(t, "--config_dir", dir, "--log_format", "json")
	require.Error(t, err)

	var missing *MissingEnvError
	require.True(t, errors.As(err, &missing), err.Error())
	assert.Equal(t, EnvServiceKey, missing.Name)
	assert.Zero(t, platform.count(http.MethodGet))
	assert.Zero(t, platform.count(http.MethodPost))
	assert.Contains(t, jsonMessages(t, buf), "Invalid configuration")
}
