package rag

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/disambiguation"
	"github.com/sells-group/chem-advisor/internal/model"
)

type fakeUpstream struct {
	calls   atomic.Int32
	payload json.RawMessage
	err     error
	delay   time.Duration
}

func (f *fakeUpstream) Query(ctx context.Context, _ string) (json.RawMessage, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.payload, f.err
}

func newTestService(up Upstream) *Service {
	return NewService(up, NewMemoryCache(0), disambiguation.NewParser(config.DisambiguationConfig{Seed: 7}), time.Minute)
}

func TestSearch_CachesByNormalizedQuery(t *testing.T) {
	up := &fakeUpstream{payload: json.RawMessage(`{"result":[{"content":"Silica answer","title":"TDS","url":"https://example.com"}]}`)}
	svc := newTestService(up)
	ctx := context.Background()

	first, err := svc.Search(ctx, "SIPERNAT 22")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "Silica answer", first.Content)
	assert.False(t, first.DisambiguationDetected)
	assert.Nil(t, first.Disambiguation)
	require.Len(t, first.Sources, 1)
	assert.Equal(t, "TDS", first.Sources[0].Title)

	second, err := svc.Search(ctx, "  sipernat   22 ")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, int32(1), up.calls.Load())
}

func TestSearch_DetectsDisambiguation(t *testing.T) {
	content := disambiguation.Trigger + " 1. SIPERNAT 45 S by Evonik - silica additive 2. SIPERNAT 50 by Evonik - silica additive"
	payload, err := json.Marshal(map[string]any{"result": []map[string]string{{"content": content}}})
	require.NoError(t, err)

	svc := newTestService(&fakeUpstream{payload: payload})
	res, err := svc.Search(context.Background(), "sipernat")
	require.NoError(t, err)

	assert.True(t, res.DisambiguationDetected)
	require.NotNil(t, res.Disambiguation)
	assert.Len(t, res.Disambiguation.Options, 2)
	assert.GreaterOrEqual(t, res.Disambiguation.SearchMetadata.SearchTime, int64(0))
}

func TestSearch_EmptyQuery(t *testing.T) {
	up := &fakeUpstream{}
	_, err := newTestService(up).Search(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, int32(0), up.calls.Load())
}

func TestSearch_ErrorsAreNotCached(t *testing.T) {
	up := &fakeUpstream{err: errors.New("upstream down")}
	svc := newTestService(up)

	_, err := svc.Search(context.Background(), "q")
	require.Error(t, err)
	_, err = svc.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, int32(2), up.calls.Load())
}

func TestSearch_CollapsesConcurrentQueries(t *testing.T) {
	up := &fakeUpstream{payload: json.RawMessage(`{"result":"ok"}`), delay: 50 * time.Millisecond}
	svc := NewService(up, nil, nil, 0)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Search(context.Background(), "same query")
			assert.NoError(t, err)
			assert.Equal(t, `{"result":"ok"}`, res.Content)
		}()
	}
	wg.Wait()

	assert.Less(t, up.calls.Load(), int32(10))
}

func TestSearch_CancelledCallerDoesNotFailOthers(t *testing.T) {
	up := &fakeUpstream{payload: json.RawMessage(`{"result":"ok"}`), delay: 100 * time.Millisecond}
	svc := NewService(up, nil, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Search(ctx, "same query")
		firstErr <- err
	}()

	time.Sleep(10 * time.Millisecond)
	secondDone := make(chan struct{})
	var res *model.SearchResult
	var err error
	go func() {
		defer close(secondDone)
		res, err = svc.Search(context.Background(), "same query")
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	<-secondDone
	require.NoError(t, err)
	assert.Equal(t, `{"result":"ok"}`, res.Content)
	assert.Equal(t, int32(1), up.calls.Load())
}

func TestParseSources(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"top-level sources", `{"sources":[{"title":"A","url":"u"},{"source":"B"}]}`, 2},
		{"result items", `{"result":[{"content":"x","url":"u"},{"content":"no cite"}]}`, 1},
		{"result object", `{"result":{"content":"x"}}`, 0},
		{"not an object", `"text"`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, parseSources(json.RawMessage(tt.raw)), tt.want)
		})
	}
}
