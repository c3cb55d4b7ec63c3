package partition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPartitionedTables_CoversAllTimePartitionedTables(t *testing.T) {
	assert.ElementsMatch(t, []string{"trades", "price_ticks", "ohlcv_1m", "leaderboard_traders"}, partitionedTables)
}

func TestEnsurePartition_ChildNameFollowsYearMonthConvention(t *testing.T) {
	monthStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	childName := "trades_" + monthStart.Format("2006_01")
	assert.Equal(t, "trades_2026_03", childName)
}
