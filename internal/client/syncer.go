package client

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/samlnz/PS-controller/internal/game"
)

// Syncer implements the write-through entry cache: fetch merges remote
// state into the local cache, commit persists locally then pushes in the
// background, purge clears both sides best-effort.
type Syncer struct {
	api   *API
	cache *Cache
}

func NewSyncer(api *API, cache *Cache) *Syncer {
	return &Syncer{api: api, cache: cache}
}

// FetchEntries pulls the server's list and reconciles it with the cache,
// local entries winning on id collision. When the merge strictly grew the
// server's view the merged set is pushed back so both sides converge; the
// push is idempotent because the server canonicalizes on write. Any remote
// failure returns the cache unchanged - this path never errors.
func (s *Syncer) FetchEntries(ctx context.Context) []game.Entry {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	remote, err := s.api.FetchEntries(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("fetch entries failed, serving cache")
		return s.cache.Entries()
	}

	merged := game.Merge(s.cache.Entries(), remote)
	if err := s.cache.SetEntries(merged); err != nil {
		log.Error().Err(err).Msg("persist merged entries failed")
	}
	if len(merged) > len(remote) {
		if _, err := s.api.PushEntries(ctx, merged); err != nil {
			log.Warn().Err(err).Msg("replication push failed, will retry next poll")
		}
	}
	return merged
}

// FetchPrices pulls the server's per-TV prices into the cache so the
// worker keeps charging the last known prices through an outage. Like
// FetchEntries this never errors; failure serves the cache.
func (s *Syncer) FetchPrices(ctx context.Context) map[string]int64 {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	remote, err := s.api.Prices(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("price fetch failed, serving cache")
		return s.cache.Prices()
	}
	if err := s.cache.SetPrices(remote); err != nil {
		log.Error().Err(err).Msg("persist prices failed")
	}
	return remote
}

// CommitEntries persists locally first, then pushes to the server in the
// background. A failed push is logged and swallowed; the local cache is
// authoritative for this session and the next fetch re-replicates.
func (s *Syncer) CommitEntries(entries []game.Entry) error {
	if err := s.cache.SetEntries(entries); err != nil {
		return err
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()
		if _, err := s.api.PushEntries(ctx, entries); err != nil {
			log.Warn().Err(err).Msg("entry push failed")
		}
	}()
	return nil
}

// PurgeAll clears the local cache and best-effort deletes the server copy.
// Remote failure is non-fatal.
func (s *Syncer) PurgeAll(ctx context.Context) error {
	if err := s.cache.Purge(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()
	if err := s.api.PurgeEntries(ctx); err != nil {
		log.Warn().Err(err).Msg("remote purge failed")
	}
	return nil
}
