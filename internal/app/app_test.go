package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"AccidentLoader/internal/config"
	"AccidentLoader/internal/domain"
)

const ariaExport = `preamble 1
preamble 2
Numéro ARIA;Titre;Date;Départment;Commune;Pays;Matières
1001;Fuite d'ammoniac;12/03/2021;69;Lyon;FRANCE;ammoniac
1002;Incendie d'entrepôt;01/07/2022;13;Marseille;FRANCE;
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "aria.csv")
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(ariaExport))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(csvPath, encoded, 0o644))

	epiceaDir := filepath.Join(dir, "epicea")
	require.NoError(t, os.Mkdir(epiceaDir, 0o755))

	return config.Config{
		Scheduler: config.SchedulerConfig{CronExpression: "0 6 * * *"},
		Cache:     config.CacheConfig{Path: filepath.Join(dir, "cache.json")},
		Identity:  config.IdentityConfig{Namespace: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		ARIA:      config.ARIAConfig{CSVPath: csvPath, SkipLines: 2},
		EPICEA:    config.EPICEAConfig{HTMLDir: epiceaDir, Extension: ".html"},
		Logging:   config.LoggingConfig{Level: "error"},
	}
}

func TestNewRejectsMissingNamespace(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Identity.Namespace = ""
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestNewRejectsCorruptCache(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Cache.Path, []byte("{not json"), 0o644))
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestRunAriaWithoutDatabase(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	report, err := application.Run(context.Background(), domain.SourceARIA, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceARIA, report.Source)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.Normalized)
	assert.Zero(t, report.Saved)
	assert.True(t, report.DryRun)

	report, err = application.Run(context.Background(), domain.SourceARIA, RunOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Normalized)
}

func TestRunEpiceaEmptyDirectory(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	report, err := application.Run(context.Background(), domain.SourceEPICEA, RunOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.Zero(t, report.Fetched)
	assert.Zero(t, report.Saved)
}

func TestRunUnknownSource(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	_, err = application.Run(context.Background(), "BARPI", RunOptions{})
	require.Error(t, err)
}

func TestMigrateNeedsDatabase(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	require.Error(t, application.Migrate(context.Background()))
}

func TestScheduleRejectsInvalidCron(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Scheduler.CronExpression = "whenever"
	application, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	require.Error(t, application.Schedule(context.Background()))
}

func TestScheduleStopsOnCancel(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, application.Schedule(ctx))
}
