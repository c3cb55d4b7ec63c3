// Package checkpoint persists the Block Processor's last committed
// height, grounded on the teacher's block.Repository singleton-row
// idiom (GetLastFromDB / insert-on-first-use).
package checkpoint

import (
	"github.com/go-pg/pg/v10"

	"github.com/zigscan/amm-indexer/models"
)

// Store reads/writes the index_state singleton row.
type Store struct {
	db *pg.DB
}

// NewStore constructs a Store.
func NewStore(db *pg.DB) *Store {
	return &Store{db: db}
}

// Read returns the last committed height, or 0 if no checkpoint has
// ever been written.
func (s *Store) Read() (uint64, error) {
	state := new(models.IndexState)
	err := s.db.Model(state).Where("id = ?", models.IndexStateBlockID).Select()
	if err == pg.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return state.LastHeight, nil
}

// Write advances the checkpoint to height, enforcing monotonicity with
// a WHERE clause on the UPDATE so an out-of-order or retried write can
// never move last_height backwards.
func (s *Store) Write(height uint64) error {
	state := &models.IndexState{ID: models.IndexStateBlockID, LastHeight: height}
	_, err := s.db.Model(state).
		OnConflict("(id) DO UPDATE").
		Set("last_height = EXCLUDED.last_height").
		Where("index_state.last_height < ?", height).
		Insert()
	return err
}
