// Package storagetest holds the behavioural contract every storage.Repository
// backend must satisfy. Backends call Run from their own tests.
package storagetest

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/signhand/storage"
)

func record(data string, version uint64) *storage.Record {
	return &storage.Record{Ver: 1, Scheme: storage.SchemeJSON, Data: []byte(data), Version: version}
}

// Run exercises repo against the Repository contract. Each backend should pass
// a fresh, empty repository.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()
	ns := "ns1"

	t.Run("PutAndGet", func(t *testing.T) {
		ctx := t.Context()
		require.NoError(t, repo.Put(ctx, ns, "DOC", "id1", record(`"a"`, 1)))

		got, err := repo.Get(ctx, ns, "DOC", "id1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`"a"`), got.Data)
		assert.Equal(t, uint64(1), got.Version)

		// Returned records must not alias stored data.
		got.Data[0] = 'X'
		again, err := repo.Get(ctx, ns, "DOC", "id1")
		require.NoError(t, err)
		assert.Equal(t, byte('"'), again.Data[0])
	})

	t.Run("GetNotFound", func(t *testing.T) {
		ctx := t.Context()
		_, err := repo.Get(ctx, "missing-ns", "DOC", "id1")
		assert.ErrorIs(t, err, storage.ErrNamespaceNotFound)

		_, err = repo.Get(ctx, ns, "DOC", "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ctx := t.Context()
		require.NoError(t, repo.Put(ctx, ns, "LIST", "b", record(`1`, 1)))
		require.NoError(t, repo.Put(ctx, ns, "LIST", "a", record(`1`, 1)))
		require.NoError(t, repo.Put(ctx, ns, "LISTX", "c", record(`1`, 1)))

		ids, err := repo.List(ctx, ns, "LIST")
		require.NoError(t, err)
		sort.Strings(ids)
		assert.Equal(t, []string{"a", "b"}, ids)

		ids, err = repo.List(ctx, "missing-ns", "LIST")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := t.Context()
		require.NoError(t, repo.Put(ctx, ns, "DEL", "d1", record(`1`, 1)))
		require.NoError(t, repo.Delete(ctx, ns, "DEL", "d1"))

		_, err := repo.Get(ctx, ns, "DEL", "d1")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = repo.Delete(ctx, ns, "DEL", "d1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("PutCAS", func(t *testing.T) {
		ctx := t.Context()
		require.NoError(t, repo.PutCAS(ctx, ns, "CAS", "c1", 0, record(`1`, 1)))

		err := repo.PutCAS(ctx, ns, "CAS", "c1", 0, record(`1`, 1))
		assert.ErrorIs(t, err, storage.ErrCASFailed, "create-only must fail when record exists")

		err = repo.PutCAS(ctx, ns, "CAS", "missing", 1, record(`1`, 2))
		assert.ErrorIs(t, err, storage.ErrCASFailed, "non-zero version on missing record")

		require.NoError(t, repo.PutCAS(ctx, ns, "CAS", "c1", 1, record(`2`, 2)))

		err = repo.PutCAS(ctx, ns, "CAS", "c1", 1, record(`3`, 2))
		assert.ErrorIs(t, err, storage.ErrCASFailed, "stale version must fail")

		got, err := repo.Get(ctx, ns, "CAS", "c1")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), got.Version)
		assert.Equal(t, []byte(`2`), got.Data)
	})

	t.Run("Batch", func(t *testing.T) {
		ctx := t.Context()
		err := repo.Batch(ctx, ns, func(tx storage.BatchTx) error {
			if err := tx.Put("BATCH", "b1", record(`"a"`, 1)); err != nil {
				return err
			}
			if err := tx.PutCAS("BATCH", "b2", 0, record(`"b"`, 1)); err != nil {
				return err
			}
			got, err := tx.Get("BATCH", "b2")
			if err != nil {
				return err
			}
			return tx.PutCAS("BATCH", "b2", got.Version, record(`"b2"`, 2))
		})
		require.NoError(t, err)

		got, err := repo.Get(ctx, ns, "BATCH", "b2")
		require.NoError(t, err)
		assert.Equal(t, []byte(`"b2"`), got.Data)
		assert.Equal(t, uint64(2), got.Version)
	})

	t.Run("BatchRollback", func(t *testing.T) {
		ctx := t.Context()
		require.NoError(t, repo.Put(ctx, ns, "ROLL", "keep", record(`"orig"`, 1)))

		err := repo.Batch(ctx, ns, func(tx storage.BatchTx) error {
			if err := tx.Put("ROLL", "new", record(`"x"`, 1)); err != nil {
				return err
			}
			if err := tx.Put("ROLL", "keep", record(`"changed"`, 2)); err != nil {
				return err
			}
			return tx.PutCAS("ROLL", "keep", 1, record(`"y"`, 2))
		})
		require.ErrorIs(t, err, storage.ErrCASFailed)

		_, err = repo.Get(ctx, ns, "ROLL", "new")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		got, err := repo.Get(ctx, ns, "ROLL", "keep")
		require.NoError(t, err)
		assert.Equal(t, []byte(`"orig"`), got.Data)
	})

	t.Run("BatchDelete", func(t *testing.T) {
		ctx := t.Context()
		require.NoError(t, repo.Put(ctx, ns, "BDEL", "x", record(`1`, 1)))
		err := repo.Batch(ctx, ns, func(tx storage.BatchTx) error {
			return tx.Delete("BDEL", "x")
		})
		require.NoError(t, err)
		_, err = repo.Get(ctx, ns, "BDEL", "x")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = repo.Batch(ctx, ns, func(tx storage.BatchTx) error {
			return tx.Delete("BDEL", "x")
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ConcurrentCASIncrement", func(t *testing.T) {
		ctx := t.Context()
		require.NoError(t, repo.PutCAS(ctx, ns, "CTR", "counter", 0, record(`0`, 1)))

		const workers = 8
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					cur, err := repo.Get(ctx, ns, "CTR", "counter")
					if err != nil {
						t.Error(err)
						return
					}
					var n int
					fmt.Sscanf(string(cur.Data), "%d", &n)
					next := record(fmt.Sprintf("%d", n+1), cur.Version+1)
					err = repo.PutCAS(ctx, ns, "CTR", "counter", cur.Version, next)
					if errors.Is(err, storage.ErrCASFailed) {
						continue
					}
					if err != nil {
						t.Error(err)
					}
					return
				}
			}()
		}
		wg.Wait()

		got, err := repo.Get(ctx, ns, "CTR", "counter")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%d", workers), string(got.Data))
		assert.Equal(t, uint64(workers+1), got.Version)
	})
}
