package scheduler

import (
	"math/rand"
	"strings"

	"github.com/smartreview/platform/pkg/common/models"
)

// WeightedNiche carries the click-derived selection weight for a niche.
type WeightedNiche struct {
	Niche  models.Niche `json:"niche"`
	Weight float64      `json:"weight"`
}

// Scheduler picks niches for automation runs, biased toward categories that
// earned clicks recently. randFloat is injectable for deterministic tests.
type Scheduler struct {
	randFloat func() float64
}

func New() *Scheduler {
	return &Scheduler{randFloat: rand.Float64}
}

func NewWithRand(randFloat func() float64) *Scheduler {
	return &Scheduler{randFloat: randFloat}
}

// Weigh assigns every niche a weight of one plus the clicks recorded under
// its category path, children included.
func Weigh(niches []models.Niche, clicksByCategory map[string]int64) []WeightedNiche {
	out := make([]WeightedNiche, 0, len(niches))
	for _, niche := range niches {
		var clicks int64
		prefix := strings.TrimSuffix(niche.CategoryPath, "/") + "/"
		for category, count := range clicksByCategory {
			if category == niche.CategoryPath || strings.HasPrefix(category, prefix) {
				clicks += count
			}
		}
		out = append(out, WeightedNiche{Niche: niche, Weight: float64(1 + clicks)})
	}
	return out
}

// Pick draws up to count niches without replacement, each draw proportional
// to weight. Non-positive weights are floored to keep every niche drawable.
func (s *Scheduler) Pick(weighted []WeightedNiche, count int) []models.Niche {
	if len(weighted) == 0 {
		return nil
	}
	target := count
	if target < 1 {
		target = 1
	}
	if target > len(weighted) {
		target = len(weighted)
	}

	pool := make([]WeightedNiche, len(weighted))
	copy(pool, weighted)

	picked := make([]models.Niche, 0, target)
	for len(picked) < target {
		total := 0.0
		for _, entry := range pool {
			total += flooredWeight(entry.Weight)
		}
		r := s.randFloat() * total
		index := len(pool) - 1
		for i, entry := range pool {
			r -= flooredWeight(entry.Weight)
			if r <= 0 {
				index = i
				break
			}
		}
		picked = append(picked, pool[index].Niche)
		pool = append(pool[:index], pool[index+1:]...)
	}
	return picked
}

func flooredWeight(w float64) float64 {
	if w < 0.0001 {
		return 0.0001
	}
	return w
}
