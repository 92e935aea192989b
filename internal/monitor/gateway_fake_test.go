package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"parking-monitor-backend/internal/remote"
)

// fakeGateway is an in-memory Gateway for tests: a path-keyed value map with
// per-path injectable errors and a record of every write.
type fakeGateway struct {
	mu       sync.Mutex
	values   map[string]any
	errs     map[string]error
	sets     map[string]any
	setCalls int
	updates  map[string][]map[string]any
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		values:  make(map[string]any),
		errs:    make(map[string]error),
		sets:    make(map[string]any),
		updates: make(map[string][]map[string]any),
	}
}

func (f *fakeGateway) put(path string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[path] = v
}

func (f *fakeGateway) fail(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[path] = err
}

func (f *fakeGateway) Get(ctx context.Context, path string) (remote.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[path]; err != nil {
		return remote.Snapshot{}, err
	}
	v, ok := f.values[path]
	if !ok {
		return remote.Snapshot{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return remote.Snapshot{}, err
	}
	return remote.Snapshot{Exists: true, Raw: raw}, nil
}

func (f *fakeGateway) Set(ctx context.Context, path string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[path]; err != nil {
		return err
	}
	f.values[path] = value
	f.sets[path] = value
	f.setCalls++
	return nil
}

// setCount counts Set calls individually; the sets map keeps only the last
// value per path.
func (f *fakeGateway) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls
}

func (f *fakeGateway) Update(ctx context.Context, path string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[path]; err != nil {
		return err
	}
	f.updates[path] = append(f.updates[path], fields)
	return nil
}

func (f *fakeGateway) Subscribe(ctx context.Context, path string, fn func(remote.Snapshot), onErr func(error)) {
}

func (f *fakeGateway) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.sets)
	for _, u := range f.updates {
		n += len(u)
	}
	return n
}

// snapOf marshals a value into a present snapshot.
func snapOf(t *testing.T, v any) remote.Snapshot {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return remote.Snapshot{Exists: true, Raw: raw}
}
