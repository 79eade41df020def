package services

import (
	"errors"
	"math/rand/v2"

	"folder-mock/internal/core/domain"
	"folder-mock/internal/core/ports"
)

// ErrNoTargets is returned when there is nothing with positive weight to pick
var ErrNoTargets = errors.New("no weighted targets")

// Ensure SystemRandom implements RandomSource
var _ ports.RandomSource = SystemRandom{}

// SystemRandom draws from the process-wide math/rand/v2 generator,
// which is safe for concurrent use.
type SystemRandom struct{}

// Uint64N returns a uniform value in [0, n)
func (SystemRandom) Uint64N(n uint64) uint64 {
	return rand.Uint64N(n)
}

// WeightedSelector picks one target with probability weight/total
type WeightedSelector struct {
	rng ports.RandomSource
}

// NewWeightedSelector creates a selector drawing from rng
func NewWeightedSelector(rng ports.RandomSource) *WeightedSelector {
	return &WeightedSelector{rng: rng}
}

// Select walks targets in declaration order and returns the first whose
// cumulative weight exceeds a draw r in [0, total).
func (s *WeightedSelector) Select(targets []domain.Target) (domain.Target, error) {
	var total uint64
	for _, t := range targets {
		total += uint64(t.Weight)
	}
	if total == 0 {
		return domain.Target{}, ErrNoTargets
	}

	r := s.rng.Uint64N(total)

	var cumulative uint64
	for _, t := range targets {
		cumulative += uint64(t.Weight)
		if cumulative > r {
			return t, nil
		}
	}

	// r < total guarantees a match above
	return domain.Target{}, ErrNoTargets
}
