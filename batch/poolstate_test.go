package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zigscan/amm-indexer/models"
)

func TestDedupeLastWinsByPoolID_KeepsLastAndOrder(t *testing.T) {
	t0 := time.Now()
	items := []*models.PoolState{
		{PoolID: 1, ReserveBaseBase: "100", UpdatedAt: t0},
		{PoolID: 2, ReserveBaseBase: "200", UpdatedAt: t0},
		{PoolID: 1, ReserveBaseBase: "150", UpdatedAt: t0.Add(time.Second)},
	}

	got := dedupeLastWinsByPoolID(items)

	assert.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].PoolID)
	assert.Equal(t, uint64(1), got[1].PoolID)
	assert.Equal(t, "150", got[1].ReserveBaseBase)
}
