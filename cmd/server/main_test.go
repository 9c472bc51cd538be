package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpcdash/internal/pkg/model"
)

type fakeSource struct {
	status      model.StatusSnapshot
	statusErr   error
	fallbackErr error
	clusters    model.Clusters
	clusterErr  error
}

func (s *fakeSource) FetchStatus(context.Context) (model.StatusSnapshot, error) {
	return s.status, s.statusErr
}

func (s *fakeSource) FetchFallbackStatus(context.Context) (model.StatusSnapshot, error) {
	if s.fallbackErr != nil {
		return model.StatusSnapshot{}, s.fallbackErr
	}
	return s.status, nil
}

func (s *fakeSource) FetchClusterUsage(context.Context) (model.Clusters, error) {
	return s.clusters, s.clusterErr
}

func (s *fakeSource) TriggerRefresh(context.Context) (model.RefreshResult, error) {
	return model.RefreshResult{OK: true}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func usageCluster(name string, allocated, remaining float64) model.ClusterRecord {
	rec := model.ClusterRecord{Metadata: model.ClusterMetadata{Name: name, URI: "pw://" + name}}
	rec.QueueData.Queues = []model.QueueRecord{
		{QueueName: "standard", JobsPending: 10},
		{QueueName: "debug", JobsPending: 1},
	}
	rec.UsageData.Systems = []model.UsageRecord{{
		System:           name,
		HoursAllocated:   model.Number(allocated),
		HoursRemaining:   model.Number(remaining),
		PercentRemaining: model.Number(remaining / allocated * 100),
	}}
	return rec
}

func TestRunSnapshot(t *testing.T) {
	src := &fakeSource{
		status: model.StatusSnapshot{Systems: []model.SystemRow{
			{System: "Alpha", Status: "up"},
			{System: "Beta", Status: "DOWN"},
		}},
		clusters: model.Clusters{
			usageCluster("jean", 1000, 100),
			usageCluster("onyx", 2000, 1500),
			usageCluster("gaffney", 1000, 500),
		},
	}
	var buf bytes.Buffer
	require.NoError(t, runSnapshot(context.Background(), &buf, src, true, 2, discard()))
	out := buf.String()

	assert.Contains(t, out, "Systems  2")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "Top 2 clusters by hours remaining")
	assert.NotContains(t, out, "jean")
	assert.Less(t, strings.Index(out, "onyx"), strings.Index(out, "gaffney"))
	assert.Contains(t, out, "debug")
}

func TestRunSnapshot_FallbackAndNoClusters(t *testing.T) {
	src := &fakeSource{
		status:    model.StatusSnapshot{Systems: []model.SystemRow{{System: "Alpha", Status: "UP"}}},
		statusErr: errors.New("status api: 502"),
	}
	var buf bytes.Buffer
	require.NoError(t, runSnapshot(context.Background(), &buf, src, false, 5, discard()))
	assert.Contains(t, buf.String(), "fallback snapshot")
	assert.NotContains(t, buf.String(), "clusters by hours remaining")
}

func TestRunSnapshot_StatusUnavailable(t *testing.T) {
	src := &fakeSource{
		statusErr:   errors.New("status api: 502"),
		fallbackErr: errors.New("fallback: 404"),
	}
	err := runSnapshot(context.Background(), io.Discard, src, true, 5, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback: 404")
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hpcdash.log")
	logger, cleanup, err := newLogger("file", "json", "warn", path)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	cleanup()

	_, _, err = newLogger("file", "text", "info", "")
	assert.Error(t, err)
	_, _, err = newLogger("stdout", "xml", "info", "")
	assert.Error(t, err)
	_, _, err = newLogger("stdout", "text", "loud", "")
	assert.Error(t, err)
}
