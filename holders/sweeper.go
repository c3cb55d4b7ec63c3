// Package holders implements the Holders Sweeper (spec §4.G): per
// cycle it refreshes the K stalest non-native, non-IBC tokens' holder
// balances by paginating the chain's denom_owners query, throttled by a
// shared page-concurrency semaphore, then normalizes any address not
// seen this sweep to a zero balance and recomputes the holder count.
// Grounded on the teacher's balance.Service manager/updater two-channel
// pipeline shape (balance/service.go's BalanceManager/BalanceUpdater),
// adapted from an address-dedup map to a per-token seen-address set.
package holders

import (
	"context"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zigscan/amm-indexer/cache"
	"github.com/zigscan/amm-indexer/chain"
	"github.com/zigscan/amm-indexer/models"
)

// Sweeper runs the per-cycle holders refresh.
type Sweeper struct {
	db    *pg.DB
	chain *chain.Client
	sem   *cache.Semaphore
	log   *logrus.Entry

	pageConcurrency  int
	maxPagesPerCycle int
	staleCount       int
}

// NewSweeper constructs a Sweeper. pageConcurrency bounds concurrent
// denom_owners page fetches process-wide, and also caps how many of the
// cycle's stale tokens are refreshed concurrently, so the semaphore it
// guards is actually contended; maxPagesPerCycle bounds pages fetched
// for a single token in one cycle; staleCount is K, the number of
// stalest tokens refreshed per cycle.
func NewSweeper(db *pg.DB, c *chain.Client, pageConcurrency, maxPagesPerCycle, staleCount int, log *logrus.Entry) *Sweeper {
	return &Sweeper{
		db:               db,
		chain:            c,
		sem:              cache.NewSemaphore(int64(pageConcurrency)),
		log:              log,
		pageConcurrency:  pageConcurrency,
		maxPagesPerCycle: maxPagesPerCycle,
		staleCount:       staleCount,
	}
}

// RunCycle refreshes the K stalest eligible tokens, fanning them out
// across a bounded worker pool (capped at pageConcurrency) so multiple
// tokens' page fetches genuinely run concurrently under the shared
// semaphore instead of one token exhausting it at a time.
func (s *Sweeper) RunCycle(ctx context.Context) error {
	tokens, err := s.stalestTokens(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.pageConcurrency)
	for _, t := range tokens {
		t := t
		g.Go(func() error {
			if err := s.RefreshOne(gctx, t.ID, t.Denom); err != nil {
				s.log.WithError(err).WithField("token_id", t.ID).Warn("holders: refresh failed")
			}
			return nil
		})
	}
	return g.Wait()
}

type staleToken struct {
	ID    uint64
	Denom string
}

// stalestTokens picks the K tokens with the oldest holder_stats
// updated_at, excluding native and IBC kinds.
func (s *Sweeper) stalestTokens(ctx context.Context) ([]staleToken, error) {
	var rows []struct {
		ID    uint64 `pg:"id"`
		Denom string `pg:"denom"`
	}
	err := s.db.Model((*models.Token)(nil)).
		ColumnExpr("tokens.id, tokens.denom").
		Join("LEFT JOIN holder_stats hs ON hs.token_id = tokens.id").
		Where("tokens.kind NOT IN (?, ?)", models.TokenKindNative, models.TokenKindIBC).
		OrderExpr("hs.updated_at ASC NULLS FIRST").
		Limit(s.staleCount).
		Select(&rows)
	if err != nil {
		return nil, err
	}
	out := make([]staleToken, len(rows))
	for i, r := range rows {
		out[i] = staleToken{ID: r.ID, Denom: r.Denom}
	}
	return out, nil
}

// RefreshOne paginates denom_owners for a single token, upserting each
// page within its own transaction, then normalizes stale balances and
// recomputes holders_count in one final transaction. Used both by
// RunCycle and by the fast-track listener's per-pool "refresh holders
// for non-native legs" task.
func (s *Sweeper) RefreshOne(ctx context.Context, tokenID uint64, denom string) error {
	seen := make(map[string]struct{})
	pageKey := ""

	for pageNum := 0; pageNum < s.maxPagesPerCycle; pageNum++ {
		if err := s.sem.Acquire(ctx); err != nil {
			return err
		}
		resp, err := s.chain.DenomOwners(ctx, denom, pageKey)
		s.sem.Release()
		if err != nil {
			if chain.IsNotImplemented(err) {
				return s.bumpUpdatedAtOnly(ctx, tokenID)
			}
			return err
		}

		if err := s.upsertPage(ctx, tokenID, resp, seen); err != nil {
			return err
		}

		if resp.Pagination.NextKey == "" {
			break
		}
		pageKey = resp.Pagination.NextKey
	}

	return s.finalize(ctx, tokenID, seen)
}

func (s *Sweeper) upsertPage(ctx context.Context, tokenID uint64, resp *chain.DenomOwnersResponse, seen map[string]struct{}) error {
	return s.db.RunInTransaction(ctx, func(tx *pg.Tx) error {
		now := time.Now().UTC()
		for _, o := range resp.DenomOwners {
			seen[o.Address] = struct{}{}
			h := &models.Holder{
				TokenID:     tokenID,
				Address:     o.Address,
				BalanceBase: o.Balance.Amount,
				UpdatedAt:   now,
			}
			if _, err := tx.Model(h).
				OnConflict("(token_id, address) DO UPDATE").
				Set("balance_base = EXCLUDED.balance_base, updated_at = EXCLUDED.updated_at").
				Insert(); err != nil {
				return err
			}
		}
		return nil
	})
}

// finalize zeroes any address not present in seen for tokenID, then
// recomputes and upserts holders_count.
func (s *Sweeper) finalize(ctx context.Context, tokenID uint64, seen map[string]struct{}) error {
	return s.db.RunInTransaction(ctx, func(tx *pg.Tx) error {
		addrs := make([]string, 0, len(seen))
		for a := range seen {
			addrs = append(addrs, a)
		}

		q := tx.Model((*models.Holder)(nil)).
			Where("token_id = ?", tokenID).
			Where("balance_base != '0'")
		if len(addrs) > 0 {
			q = q.Where("address NOT IN (?)", pg.In(addrs))
		}
		if _, err := q.Set("balance_base = '0'").Update(); err != nil {
			return err
		}

		var count int
		if _, err := tx.QueryOne(pg.Scan(&count),
			"SELECT count(*) FROM holders WHERE token_id = ? AND balance_base != '0'", tokenID); err != nil {
			return err
		}

		stats := &models.HolderStats{TokenID: tokenID, HoldersCount: int64(count), UpdatedAt: time.Now().UTC()}
		_, err := tx.Model(stats).
			OnConflict("(token_id) DO UPDATE").
			Set("holders_count = EXCLUDED.holders_count, updated_at = EXCLUDED.updated_at").
			Insert()
		return err
	})
}

func (s *Sweeper) bumpUpdatedAtOnly(ctx context.Context, tokenID uint64) error {
	stats := &models.HolderStats{TokenID: tokenID, UpdatedAt: time.Now().UTC()}
	_, err := s.db.Model(stats).
		OnConflict("(token_id) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Insert()
	return err
}
