package blocking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	errWriteFailed = errors.New("disk full")
	errReadFailed  = errors.New("storage unavailable")
)

type memoryKV struct {
	mu         sync.Mutex
	data       map[string][]byte
	failWrites atomic.Bool
	failReads  atomic.Bool
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string][]byte{}}
}

func (m *memoryKV) GetItem(_ context.Context, key string) ([]byte, bool, error) {
	if m.failReads.Load() {
		return nil, false, errReadFailed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return append([]byte(nil), v...), ok, nil
}

func (m *memoryKV) SetItem(_ context.Context, key string, value []byte) error {
	if m.failWrites.Load() {
		return errWriteFailed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryKV) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type fakeFetcher struct {
	mu      sync.Mutex
	entries map[string][]string
	err     error
	calls   int
}

func (f *fakeFetcher) FetchFavorites(_ context.Context, entryID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.entries[entryID]...), nil
}

// fakeBlocker records calls. When gate is set every call waits for a receive
// on it, and started is signalled as soon as a call begins. Each call takes at
// least delay.
type fakeBlocker struct {
	mu        sync.Mutex
	calls     []string
	spans     []callSpan
	alwaysErr map[string]bool
	failTimes map[string]int
	panicFor  string
	delay     time.Duration
	gate      chan struct{}
	started   chan string
}

type callSpan struct {
	start, end time.Time
}

func (b *fakeBlocker) BlockUser(_ context.Context, username string, _ BlockType, _ bool) error {
	start := time.Now()
	if b.started != nil {
		b.started <- username
	}
	if b.gate != nil {
		<-b.gate
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}

	b.mu.Lock()
	b.calls = append(b.calls, username)
	b.spans = append(b.spans, callSpan{start: start, end: time.Now()})
	transient := b.failTimes[username] > 0
	if transient {
		b.failTimes[username]--
	}
	b.mu.Unlock()

	if transient {
		return errors.New("connection reset")
	}

	if username == b.panicFor {
		panic("unexpected markup")
	}
	if b.alwaysErr[username] {
		return errors.New("status 500")
	}
	return nil
}

func (b *fakeBlocker) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBlocker) Spans() []callSpan {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]callSpan(nil), b.spans...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	progress []Progress
	complete []int
	errors   []string
	aborts   int
}

func (n *recordingNotifier) OnProgress(p Progress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, p)
}

func (n *recordingNotifier) OnComplete(total int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.complete = append(n.complete, total)
}

func (n *recordingNotifier) OnError(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *recordingNotifier) OnAbort() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.aborts++
}

func testSettings() Settings {
	return Settings{
		RetryDelay:       time.Millisecond,
		MaxRetryDelay:    2 * time.Millisecond,
		MaxRetries:       3,
		RequestTimeout:   time.Second,
		StaleAfter:       time.Hour,
		MaxStoreFailures: 5,
	}
}

func newTestWorkflow(t *testing.T, fetcher *fakeFetcher, blocker *fakeBlocker, kv *memoryKV, settings Settings, opts ...Option) *Workflow {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	w := NewWorkflow(fetcher, blocker, kv, settings, opts...)
	t.Cleanup(w.Close)
	return w
}

func storedOperation(t *testing.T, kv *memoryKV) *BlockOperation {
	t.Helper()
	op, err := NewStateStore(kv).Load(context.Background())
	require.NoError(t, err)
	return op
}

func seedOperation(t *testing.T, kv *memoryKV, op *BlockOperation) {
	t.Helper()
	require.NoError(t, NewStateStore(kv).Save(context.Background(), op))
}

func waitStarted(t *testing.T, started <-chan string) string {
	t.Helper()
	select {
	case u := <-started:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("block request was never issued")
		return ""
	}
}
