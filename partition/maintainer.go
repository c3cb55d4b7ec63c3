// Package partition creates the monthly range-partition children the
// time-partitioned tables (trades, price_ticks, ohlcv_1m,
// leaderboard_traders) need before writes to that month land. Grounded
// on the teacher's block.Repository.DeleteLastBlockData, which issues
// raw maintenance SQL through the same go-pg *pg.DB.Exec primitive used
// here.
package partition

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/sirupsen/logrus"
)

// partitionedTables lists every parent table maintained by this
// package. Each gets one child partition per covered month.
var partitionedTables = []string{
	"trades",
	"price_ticks",
	"ohlcv_1m",
	"leaderboard_traders",
}

// Maintainer ensures monthly partitions exist ahead of writes.
type Maintainer struct {
	db          *pg.DB
	logger      *logrus.Entry
	monthsAhead int
}

// NewMaintainer constructs a Maintainer. monthsAhead is N, the number
// of future months (beyond the current one) to keep provisioned.
func NewMaintainer(db *pg.DB, monthsAhead int, logger *logrus.Entry) *Maintainer {
	return &Maintainer{db: db, logger: logger, monthsAhead: monthsAhead}
}

// Run ticks every interval (PARTITIONS_SEC, default 1800s) until ctx is
// cancelled, running one ensure-cycle immediately on start.
func (m *Maintainer) Run(ctx context.Context, interval time.Duration) {
	if err := m.EnsureCycle(ctx); err != nil {
		m.logger.WithError(err).Error("partition: initial ensure cycle failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.EnsureCycle(ctx); err != nil {
				m.logger.WithError(err).Error("partition: ensure cycle failed")
			}
		}
	}
}

// EnsureCycle creates any missing partitions for the current month
// through monthsAhead months out, across every partitioned table.
func (m *Maintainer) EnsureCycle(ctx context.Context) error {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var lastErr error
	for i := 0; i <= m.monthsAhead; i++ {
		monthStart := start.AddDate(0, i, 0)
		monthEnd := monthStart.AddDate(0, 1, 0)
		for _, table := range partitionedTables {
			if err := m.ensurePartition(ctx, table, monthStart, monthEnd); err != nil {
				m.logger.WithError(err).
					WithField("table", table).
					WithField("month", monthStart.Format("2006-01")).
					Error("partition: creating child partition")
				lastErr = err
			}
		}
	}
	return lastErr
}

// ensurePartition issues the child-creation DDL. table always comes
// from the fixed partitionedTables list, never external input, so
// direct interpolation into the identifier position is safe.
func (m *Maintainer) ensurePartition(ctx context.Context, table string, monthStart, monthEnd time.Time) error {
	childName := fmt.Sprintf("%s_%s", table, monthStart.Format("2006_01"))
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q PARTITION OF %q FOR VALUES FROM (?) TO (?)`,
		childName, table)
	_, err := m.db.ExecContext(ctx, stmt, monthStart, monthEnd)
	return err
}
