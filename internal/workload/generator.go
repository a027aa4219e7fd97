// Package workload generates the random request stream that drives a
// simulation run.
package workload

import (
	"fmt"
	"math/rand/v2"

	"k8s.io/utils/clock"

	"github.com/llm-d/llm-d-farm-simulator/internal/request"
)

const (
	// FirstArrivalID is the id of the first request arriving after the
	// initial fill.
	FirstArrivalID = 1001

	MinOctet    = 1
	MaxOctet    = 254
	MinPriority = 1
	MaxPriority = 10
	MinCost     = 5
	MaxCost     = 50

	DefaultArrivalProbability = 0.05
	DefaultArrivalCutoff      = 0.8
)

// Generator produces requests with a uniformly random origin, category,
// priority and cost. It is deterministic for a given seed.
type Generator struct {
	rng   *rand.Rand
	clock clock.PassiveClock

	arrivalProbability float64
	arrivalCutoff      float64

	nextInitialID int
	nextArrivalID int
}

type Option func(*Generator)

// WithArrivalProbability sets the chance of one arrival per cycle.
func WithArrivalProbability(p float64) Option {
	return func(g *Generator) {
		g.arrivalProbability = p
	}
}

// WithArrivalCutoff sets the fraction of the run after which arrivals stop.
func WithArrivalCutoff(f float64) Option {
	return func(g *Generator) {
		g.arrivalCutoff = f
	}
}

// WithClock sets the clock stamping request arrival times.
func WithClock(clk clock.PassiveClock) Option {
	return func(g *Generator) {
		g.clock = clk
	}
}

func NewGenerator(seed uint64, opts ...Option) *Generator {
	g := &Generator{
		rng:                rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		clock:              clock.RealClock{},
		arrivalProbability: DefaultArrivalProbability,
		arrivalCutoff:      DefaultArrivalCutoff,
		nextInitialID:      1,
		nextArrivalID:      FirstArrivalID,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initial returns the next request of the initial fill. Ids start at 1.
func (g *Generator) Initial() *request.Request {
	r := g.Random(g.nextInitialID)
	g.nextInitialID++
	return r
}

// MaybeArrival draws whether a request arrives at cycle of a total-cycle run.
// Nothing arrives once cycle reaches total*cutoff. Arrival ids start at
// FirstArrivalID.
func (g *Generator) MaybeArrival(cycle, total int) (*request.Request, bool) {
	if g.rng.Float64() >= g.arrivalProbability {
		return nil, false
	}
	if float64(cycle) >= float64(total)*g.arrivalCutoff {
		return nil, false
	}
	r := g.Random(g.nextArrivalID)
	g.nextArrivalID++
	return r, true
}

// Random builds a request with the given id and random attributes.
func (g *Generator) Random(id int) *request.Request {
	origin := fmt.Sprintf("%d.%d.%d.%d", g.between(MinOctet, MaxOctet), g.between(MinOctet, MaxOctet),
		g.between(MinOctet, MaxOctet), g.between(MinOctet, MaxOctet))
	category := request.Categories[g.rng.IntN(len(request.Categories))]
	priority := g.between(MinPriority, MaxPriority)
	cost := g.between(MinCost, MaxCost)
	return request.New(id, origin, category, priority, cost, g.clock.Now())
}

// between returns a uniform integer in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}
