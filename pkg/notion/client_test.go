package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	c := NewClient("secret_test")
	nc, ok := c.(*notionClient)
	assert.True(t, ok)
	assert.NotNil(t, nc.limiter)

	unlimited := NewClient("secret_test", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, unlimited.limiter)

	fast := NewClient("secret_test", WithRateLimit(10)).(*notionClient)
	assert.Equal(t, 10, fast.limiter.Burst())
}

func TestQueryDatabase_RateLimitCancelled(t *testing.T) {
	t.Parallel()

	c := NewClient("secret_test", WithRateLimit(0.001)).(*notionClient)
	c.limiter.Allow() // drain the single token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.QueryDatabase(ctx, "db-1", &notionapi.DatabaseQueryRequest{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion: rate limit")
}
