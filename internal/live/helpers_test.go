package live

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/livecoll/internal/config"
	"github.com/roach88/livecoll/internal/dispatch"
	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/testutil"
)

const waitTimeout = 2 * time.Second

func openConn(t *testing.T, cfg config.Config) *Connection {
	t.Helper()
	c, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// openOnQueue opens a queue-bound connection on q. The connection must
// only be used through q.
func openOnQueue(t *testing.T, q *dispatch.Queue, cfg config.Config) *Connection {
	t.Helper()
	var (
		c   *Connection
		err error
	)
	q.Sync(func() { c, err = Open(context.Background(), cfg) })
	require.NoError(t, err)
	t.Cleanup(func() { q.Sync(func() { _ = c.Close() }) })
	return c
}

func newQueue(t *testing.T, label string) *dispatch.Queue {
	t.Helper()
	q := dispatch.New(label)
	t.Cleanup(q.Stop)
	return q
}

func write(t *testing.T, c *Connection, fn func()) {
	t.Helper()
	require.NoError(t, c.Write(context.Background(), func() error {
		fn()
		return nil
	}))
}

// seedPeople writes n people p000, p001, ... with ages 0..n-1.
func seedPeople(t *testing.T, c *Connection, n int) {
	t.Helper()
	write(t, c, func() {
		for i := 0; i < n; i++ {
			require.NoError(t, c.Put("Person", testutil.Person(personID(i), fmt.Sprintf("person %d", i), int64(i))))
		}
	})
}

func personID(i int) string {
	return fmt.Sprintf("p%03d", i)
}

// seedOwner writes person "owner" with the given dogs.
func seedOwner(t *testing.T, c *Connection, dogs ...string) {
	t.Helper()
	write(t, c, func() {
		links := ir.IRArray{}
		for i, d := range dogs {
			require.NoError(t, c.Put("Dog", testutil.Dog(d, "dog "+d, int64(i+1))))
			links = append(links, ir.IRString(d))
		}
		p := testutil.Person("owner", "Olive", 50)
		p["dogs"] = links
		require.NoError(t, c.Put("Person", p))
	})
}

func keys(t *testing.T, elems []Element) []string {
	t.Helper()
	out := make([]string, len(elems))
	for i, e := range elems {
		if e.Object != nil {
			out[i] = ir.String(e.Object.Key())
		} else {
			out[i] = ir.String(e.Value)
		}
	}
	return out
}

// drain enumerates s to the end with batches of size n.
func drain(t *testing.T, s *Session, n int) []string {
	t.Helper()
	var out []string
	for {
		batch, err := s.NextBatch(n)
		require.NoError(t, err)
		if len(batch) == 0 {
			return out
		}
		out = append(out, keys(t, batch)...)
	}
}

// notification is a recorded callback invocation.
type notification struct {
	coll    *Collection
	changes *ChangeSet
	err     error
}

type recorder struct {
	got []notification
}

func (r *recorder) callback(c *Collection, cs *ChangeSet, err error) {
	r.got = append(r.got, notification{coll: c, changes: cs, err: err})
}

// changes returns the non-nil change sets received.
func (r *recorder) changes() []*ChangeSet {
	var out []*ChangeSet
	for _, n := range r.got {
		if n.changes != nil {
			out = append(out, n.changes)
		}
	}
	return out
}

// chanRecorder forwards callbacks to a channel for cross-goroutine tests.
type chanRecorder chan notification

func (r chanRecorder) callback(c *Collection, cs *ChangeSet, err error) {
	r <- notification{coll: c, changes: cs, err: err}
}

func (r chanRecorder) next(t *testing.T) notification {
	t.Helper()
	select {
	case n := <-r:
		return n
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for notification")
		return notification{}
	}
}

func (r chanRecorder) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case n := <-r:
		t.Fatalf("unexpected notification: %+v", n)
	case <-time.After(d):
	}
}

// onOtherGoroutine runs fn on a fresh goroutine and waits for it.
func onOtherGoroutine(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	<-done
}
