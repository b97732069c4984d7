package e2e

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/client"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/export"
	"github.com/hyperjump/ruiji/internal/job"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/server"
	"github.com/hyperjump/ruiji/internal/storage"
)

const (
	e2eFamilies  = 4
	e2eSingles   = 3
	e2eThreshold = 0.9
)

type e2eEnv struct {
	root   string
	corpus *Corpus
	api    *client.Client
}

func setup(t *testing.T) *e2eEnv {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "photos")
	corpus := BuildCorpus(e2eFamilies, e2eSingles)
	require.NoError(t, corpus.WriteTo(root))

	cfg := &config.Config{}
	cfg.Storage.HistoryPath = filepath.Join(dir, "history.db")
	config.ApplyDefaults(cfg)

	history, err := storage.NewSQLiteStorage(cfg.Storage.HistoryPath)
	require.NoError(t, err)
	embedder := embedding.NewCachedEmbedder(embedding.NewThumbnailEmbedder(cfg.Embedding.ThumbnailGrid), cfg.Embedding.CacheSize)
	session := job.NewSession(embedder,
		job.WithRecorder(history),
		job.WithDefaultExtensions(cfg.Job.Extensions),
	)
	srv := server.NewServer(session, export.New(export.WithWorkers(2)), history, nil, cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		_ = session.Close()
		_ = history.Close()
	})
	return &e2eEnv{root: root, corpus: corpus, api: client.New(ts.URL)}
}

func (e *e2eEnv) runJob(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	resp, err := e.api.StartJob(ctx, e.root, []string{".tif"})
	require.NoError(t, err)
	assert.Equal(t, e.root, resp.Root)

	deadline := time.Now().Add(30 * time.Second)
	for {
		p, err := e.api.Progress(ctx)
		require.NoError(t, err)
		if p.State == "completed" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish: %+v", p)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func relPaths(refs []models.ImageRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.RelPath
	}
	return out
}

func TestE2E_FindsNearDuplicateFamilies(t *testing.T) {
	env := setup(t)
	env.runJob(t)
	ctx := context.Background()

	p, err := env.api.Progress(ctx)
	require.NoError(t, err)
	total := e2eFamilies*4 + e2eSingles + len(env.corpus.Broken())
	assert.Equal(t, total, p.Total)
	assert.Equal(t, total, p.Processed)
	assert.Equal(t, 100, p.Progress)
	assert.Equal(t, len(env.corpus.Broken()), p.Failed)

	th := e2eThreshold
	clusters, err := env.api.Clusters(ctx, &th)
	require.NoError(t, err)
	require.Equal(t, e2eFamilies, clusters.Count)

	var got [][]string
	for _, c := range clusters.Clusters {
		paths := relPaths(c)
		sort.Strings(paths)
		got = append(got, paths)
	}
	sort.Slice(got, func(i, j int) bool { return got[i][0] < got[j][0] })
	assert.Equal(t, env.corpus.ExpectedClusters(), got)

	rest, err := env.api.Unclustered(ctx, &th, "name")
	require.NoError(t, err)
	assert.Equal(t, env.corpus.Singletons(), relPaths(rest.Images))

	failures, err := env.api.Failures(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, failures.Count)
	assert.Equal(t, filepath.Join(env.root, "broken.jpg"), failures.Failures[0].Path)
}

func TestE2E_ThresholdRefines(t *testing.T) {
	env := setup(t)
	env.runJob(t)
	ctx := context.Background()

	zero := 0.0
	all, err := env.api.Clusters(ctx, &zero)
	require.NoError(t, err)
	require.Equal(t, 1, all.Count, "threshold 0 puts every image in one cluster")
	assert.Len(t, all.Clusters[0], e2eFamilies*4+e2eSingles)

	rest, err := env.api.Unclustered(ctx, &zero, "date_of_creation")
	require.NoError(t, err)
	assert.Empty(t, rest.Images)

	prev := 0
	for _, th := range []float64{0.9, 0.99, 1} {
		th := th
		resp, err := env.api.Clusters(ctx, &th)
		require.NoError(t, err)
		members := 0
		for _, c := range resp.Clusters {
			members += len(c)
		}
		if prev > 0 {
			assert.LessOrEqual(t, members, prev, "raising the threshold cannot add members")
		}
		prev = members
	}
}

func TestE2E_ExportCluster(t *testing.T) {
	env := setup(t)
	env.runJob(t)
	ctx := context.Background()

	th := e2eThreshold
	clusters, err := env.api.Clusters(ctx, &th)
	require.NoError(t, err)
	require.NotEmpty(t, clusters.Clusters)
	selected := relPaths(clusters.Clusters[0])

	resp, err := env.api.Export(ctx, append(selected, "missing.png"))
	require.NoError(t, err)
	assert.Equal(t, "Export completed.", resp.Status)
	assert.Equal(t, env.root+"_copy", resp.ExportFolder)
	assert.Equal(t, len(selected), resp.Copied)
	require.Len(t, resp.Failed, 1)

	for _, rel := range selected {
		want, err := os.ReadFile(filepath.Join(env.root, rel))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(resp.ExportFolder, rel))
		require.NoError(t, err)
		assert.Equal(t, want, got, rel)
	}
}

func TestE2E_HistoryRecordsRuns(t *testing.T) {
	env := setup(t)
	env.runJob(t)
	env.runJob(t)

	hist, err := env.api.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hist.TotalRuns)
	require.Len(t, hist.Runs, 2)
	for _, run := range hist.Runs {
		assert.Equal(t, models.RunCompleted, run.Status)
		assert.Equal(t, env.root, run.Root)
		assert.Contains(t, run.Extensions, ".tif")
	}
}
