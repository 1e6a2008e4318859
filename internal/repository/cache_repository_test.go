package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "solve:abc", &dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	assert.NoError(t, repo.Set(ctx, "solve:abc", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "solve:*"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}

func TestCacheKeyIsNamespaced(t *testing.T) {
	assert.Equal(t, "jobshop:solve:abc", cacheKey("solve:abc"))
}
