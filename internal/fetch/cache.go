// Package fetch memoizes raw-content and parsed-definition lookups keyed
// by (project, repository, path, ref). Concurrent resolvers requesting
// the same key join a single in-flight fetch, and the number of
// outstanding upstream fetches is bounded; callers over the bound wait,
// they never fail.
package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/adotrack/adotrack/internal/azdo"
	"github.com/adotrack/adotrack/internal/pipeline"
)

const (
	defaultExpiration = 10 * time.Minute
	cleanupInterval   = 30 * time.Minute
	parsedCacheSize   = 2048

	// DefaultFetchLimit bounds concurrent upstream fetches.
	DefaultFetchLimit = 10
)

// Key identifies one file in one repository at one ref.
type Key struct {
	Project    string
	Repository string
	Path       string
	Ref        string
}

func (k Key) String() string {
	return k.Project + "/" + k.Repository + ":" + k.Path + "@" + k.Ref
}

// Gateway fetches raw file content from the upstream service.
type Gateway interface {
	FetchFile(ctx context.Context, project, repository, path, ref string) (string, error)
}

// rawResult is a memoized fetch outcome. Only success and not-found are
// persisted; transient failures are re-attempted by later callers.
type rawResult struct {
	content string
	err     error
}

// parsedResult is a memoized parse outcome. Parsing is deterministic, so
// parse errors are cached alongside successes.
type parsedResult struct {
	def *pipeline.Definition
	err error
}

// Cache is the shared fetch/parse cache used by all resolvers in a scan.
type Cache struct {
	gateway Gateway
	group   singleflight.Group
	sem     *semaphore.Weighted
	raw     *gocache.Cache
	parsed  *lru.Cache[string, parsedResult]
	logger  *slog.Logger
}

// New creates a cache over the given gateway. fetchLimit bounds the
// number of concurrent upstream fetches; values below one fall back to
// DefaultFetchLimit.
func New(gateway Gateway, fetchLimit int, logger *slog.Logger) *Cache {
	if fetchLimit < 1 {
		fetchLimit = DefaultFetchLimit
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	parsed, _ := lru.New[string, parsedResult](parsedCacheSize)
	return &Cache{
		gateway: gateway,
		sem:     semaphore.NewWeighted(int64(fetchLimit)),
		raw:     gocache.New(defaultExpiration, cleanupInterval),
		parsed:  parsed,
		logger:  logger,
	}
}

// Content returns the raw content of the file at key, fetching it at
// most once per key regardless of how many resolvers ask concurrently.
func (c *Cache) Content(ctx context.Context, key Key) (string, error) {
	ck := key.String()
	if cached, found := c.raw.Get(ck); found {
		res := cached.(rawResult)
		return res.content, res.err
	}

	ch := c.group.DoChan(ck, func() (any, error) {
		// Re-check under the flight: a previous flight may have
		// populated the cache while this caller queued.
		if cached, found := c.raw.Get(ck); found {
			return cached.(rawResult), nil
		}
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return rawResult{}, err
		}
		defer c.sem.Release(1)

		content, err := c.gateway.FetchFile(ctx, key.Project, key.Repository, key.Path, key.Ref)
		res := rawResult{content: content, err: err}
		if err == nil || errors.Is(err, azdo.ErrNotFound) {
			c.raw.Set(ck, res, gocache.DefaultExpiration)
		} else {
			c.logger.Debug("fetch failed, not caching", "key", ck, "error", err)
		}
		return res, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		res := r.Val.(rawResult)
		return res.content, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Definition returns the parsed definition of the file at key,
// memoizing parse results separately from raw content.
func (c *Cache) Definition(ctx context.Context, key Key) (*pipeline.Definition, error) {
	ck := key.String()
	if res, found := c.parsed.Get(ck); found {
		return res.def, res.err
	}

	content, err := c.Content(ctx, key)
	if err != nil {
		return nil, err
	}

	def, err := pipeline.Parse([]byte(content))
	c.parsed.Add(ck, parsedResult{def: def, err: err})
	return def, err
}
