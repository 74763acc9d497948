package engine

import "math/rand"

// Roller is the randomness source for combat resolution. Sessions receive
// one at creation, so replays with the same seed and the same action
// sequence produce identical results.
type Roller interface {
	// Float64 returns a value in [0,1), used for crit and flee checks.
	Float64() float64
	// Intn returns a value in [0,n), used for catalog picks.
	Intn(n int) int
}

type seededRoller struct {
	rng *rand.Rand
}

// NewRoller returns a Roller backed by a seeded math/rand source. It is
// not safe for concurrent use; each session owns its own instance and
// rolls only under the session lock.
func NewRoller(seed int64) Roller {
	return &seededRoller{rng: rand.New(rand.NewSource(seed))}
}

func (r *seededRoller) Float64() float64 { return r.rng.Float64() }
func (r *seededRoller) Intn(n int) int   { return r.rng.Intn(n) }
