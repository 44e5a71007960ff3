package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkandula/archivesync/sync"
)

func TestRecorder_Observe(t *testing.T) {
	r := New()
	finished := time.Unix(1700000000, 0)

	r.Observe(sync.Outcome{
		FoldersEntered: 3,
		FilesFetched:   4,
		FilesSkipped:   5,
		Overwritten:    1,
		Failures: []sync.Failure{
			{Path: "a", Err: &sync.ListingError{Path: "a", Err: errors.New("x")}},
			{Path: "b.zip", Err: &sync.FetchError{Path: "b.zip", Err: errors.New("y")}},
			{Path: "c.zip", Err: &sync.FetchError{Path: "c.zip", Err: errors.New("z")}},
		},
	}, 2*time.Second, finished)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.folders))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.fetched))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.skipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.overwritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("listing")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.failures.WithLabelValues("fetch")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastRun))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.lastDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastSuccess))

	r.Observe(sync.Outcome{FilesFetched: 1}, time.Second, finished)
	assert.Equal(t, 5.0, testutil.ToFloat64(r.fetched))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lastSuccess))
}

func TestRecorder_canceledRunIsNotSuccess(t *testing.T) {
	r := New()
	r.Observe(sync.Outcome{Canceled: true}, time.Second, time.Now())
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastSuccess))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.Observe(sync.Outcome{FilesFetched: 2}, time.Second, time.Now())

	path := filepath.Join(t.TempDir(), "archivesync.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "archivesync_files_fetched_total 2")
	assert.Contains(t, string(data), "archivesync_last_run_success 1")
}
