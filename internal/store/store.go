// Package store owns the durable card dataset. It exposes the
// read-modify-write surface the engines depend on: Get, Update and a
// restartable iteration over every card. Single-operator use is
// assumed; there is no protection against concurrent external writers.
package store

import (
	"errors"
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/codyseavey/graded-ledger/backend/internal/models"
)

// ErrNotFound is returned when a certification number is not in the
// collection. Callers match it with errors.Is.
var ErrNotFound = errors.New("card not found")

// ValidationError describes a card record that violates the schema.
// It always names the offending cert and field.
type ValidationError struct {
	Cert  string
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("card %s: invalid %s: %s", e.Cert, e.Field, e.Msg)
	}
	return fmt.Sprintf("card %s: %s", e.Cert, e.Msg)
}

// CardStore is the GORM-backed card dataset.
type CardStore struct {
	db *gorm.DB

	// revision bumps on every successful Update so derived structures
	// (the equivalence index, cached duplicate results) know to rebuild.
	revision atomic.Uint64
}

// New wraps an initialized database handle
func New(db *gorm.DB) *CardStore {
	return &CardStore{db: db}
}

// Revision returns the current dataset revision counter
func (s *CardStore) Revision() uint64 {
	return s.revision.Load()
}

// Get returns the card for cert, or ErrNotFound
func (s *CardStore) Get(cert string) (*models.Card, error) {
	var card models.Card
	if err := s.db.First(&card, "cert = ?", cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cert %s: %w", cert, ErrNotFound)
		}
		return nil, err
	}
	return &card, nil
}

// Update persists a card's mutated fields. The write is atomic for the
// single record; nothing else in the dataset is touched.
func (s *CardStore) Update(cert string, card *models.Card) error {
	if card.Cert != cert {
		return &ValidationError{Cert: cert, Field: "cert", Msg: "identity cannot change on update"}
	}
	if err := s.db.Save(card).Error; err != nil {
		return fmt.Errorf("update cert %s: %w", cert, err)
	}
	s.revision.Add(1)
	return nil
}

// ForEach calls fn for every card in the collection. Iteration order is
// unspecified. Returning an error from fn stops the iteration.
func (s *CardStore) ForEach(fn func(cert string, card *models.Card) error) error {
	var batch []models.Card
	result := s.db.FindInBatches(&batch, 200, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			if err := fn(batch[i].Cert, &batch[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return result.Error
}

// Snapshot returns every card as an immutable-per-session slice. Both
// engines work off a snapshot; mutation only happens through Update.
func (s *CardStore) Snapshot() ([]models.Card, error) {
	var cards []models.Card
	if err := s.db.Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// Count returns the number of cards in the collection
func (s *CardStore) Count() (int64, error) {
	var n int64
	err := s.db.Model(&models.Card{}).Count(&n).Error
	return n, err
}
