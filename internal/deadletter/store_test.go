package deadletter

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// openTestStore opens a fresh store backed by a SQLite file under t.TempDir,
// migrated to the latest schema.
func openTestStore(t *testing.T, queueSize int) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dead_letters.db")
	s, err := Open(path, queueSize)
	require.NoError(t, err)

	return s, path
}

// TestStoreRecordIsDurableAfterClose verifies that Record, though delivered
// through an async queue, is guaranteed flushed to disk by the time Close
// returns: reopening the same database file must see every record.
func TestStoreRecordIsDurableAfterClose(t *testing.T) {
	t.Parallel()

	s, path := openTestStore(t, 0)

	const n = 5
	for i := 0; i < n; i++ {
		s.Record(fmt.Sprintf("actor-%d", i), "test.msg", "sender-0", "unknown_target")
	}
	require.NoError(t, s.Close())

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, n, count)
}

// TestStoreRecentOrdersNewestFirst verifies that Recent returns rows in
// reverse insertion order and honors its limit.
func TestStoreRecentOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	s, path := openTestStore(t, 0)

	reasons := []string{"mailbox_drained_at_shutdown", "unknown_target", "child_mailbox_send_failed"}
	for i, reason := range reasons {
		s.Record(fmt.Sprintf("actor-%d", i), "test.msg", "sender", reason)
	}
	require.NoError(t, s.Close())

	readBack, err := Open(path, 0)
	require.NoError(t, err)
	defer readBack.Close()

	recent, err := readBack.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "child_mailbox_send_failed", recent[0].Reason)
	require.Equal(t, "unknown_target", recent[1].Reason)
}

// TestStoreCountEmpty verifies a freshly migrated store reports zero
// records.
func TestStoreCountEmpty(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t, 0)
	defer s.Close()

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}

// TestStoreRecentOnEmptyStore verifies Recent returns an empty slice rather
// than an error when nothing has been recorded yet.
func TestStoreRecentOnEmptyStore(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t, 0)
	defer s.Close()

	recent, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, recent)
}

// TestStoreDefaultQueueSizeAppliedForNonPositive verifies Open tolerates a
// non-positive queueSize by falling back to DefaultQueueSize rather than
// failing or constructing an unusable zero-capacity channel.
func TestStoreDefaultQueueSizeAppliedForNonPositive(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "zero_queue.db"), -1)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, DefaultQueueSize, cap(s.queue))
}

// TestStoreRecordPreservesFields verifies that every field passed to Record
// round-trips through the store unchanged.
func TestStoreRecordPreservesFields(t *testing.T) {
	t.Parallel()

	s, path := openTestStore(t, 0)
	s.Record("actor-42", "relay.Tell", "actor-7", "unknown_target")
	require.NoError(t, s.Close())

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	recent, err := reopened.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	got := recent[0]
	require.Equal(t, "actor-42", got.ActorID)
	require.Equal(t, "relay.Tell", got.MessageType)
	require.Equal(t, "actor-7", got.SenderID)
	require.Equal(t, "unknown_target", got.Reason)
	require.NotEmpty(t, got.CorrelationID)
	require.False(t, got.RecordedAt.IsZero())
}
