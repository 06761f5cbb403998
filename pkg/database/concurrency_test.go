package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hondana-app/hondana/pkg/config"
	"github.com/hondana-app/hondana/pkg/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfig points the cart database at a temp file. A file (not
// :memory:) is required so multiple connections share the same database,
// which is what produces lock contention.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DatabaseFilePath:          filepath.Join(t.TempDir(), "cart.sqlite"),
		DatabaseConnectRetryCount: 1,
		DatabaseConnectRetryDelay: 10 * time.Millisecond,
		DatabaseBusyTimeout:       time.Millisecond,
		DatabaseMaxRetries:        0,
	}
}

// Cart writes can race between the CLI and anything else holding the
// database open. WAL mode plus the busy handling should absorb that without
// surfacing "database is locked" to callers.
func TestConcurrentCartWrites(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	db, err := New(cfg)
	require.NoError(t, err)
	defer db.Close()

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	const numWorkers = 10
	const writesPerWorker = 25

	var wg sync.WaitGroup
	var failures atomic.Int32
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := 0; i < writesPerWorker; i++ {
				_, err := db.Exec(
					"INSERT INTO cart_entries (kind, candidate_id, title, position, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
					"item",
					workerID*1000+i,
					fmt.Sprintf("Book %d-%d", workerID, i),
					workerID*1000+i,
					time.Now(),
					time.Now(),
				)
				if err != nil {
					failures.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int32(0), failures.Load())

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM cart_entries").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, numWorkers*writesPerWorker, count)
}
