package subscription

import (
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

type rateKey struct {
	handle tag.Handle
	rate   time.Duration
}

// model is a naive reference of the scheduler's committed and pending state.
type model struct {
	floors    map[tag.Handle]time.Duration
	committed map[rateKey]int
	pending   map[tag.Handle][]time.Duration
}

func (m *model) intervals() []time.Duration {
	seen := map[time.Duration]bool{}
	for k, n := range m.committed {
		if n > 0 {
			seen[k.rate] = true
		}
	}
	out := make([]time.Duration, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestRandomSequencesPreserveInvariants(t *testing.T) {
	catalog := newTestCatalog(t)
	handles := []tag.Handle{1, 2, 3, 4, 5, 99}
	rates := []time.Duration{ms(10), floor, ms(200), ms(500), time.Second, ms(1500)}

	for seed := uint64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		cfg := DefaultConfig()
		cfg.DetectConcurrentUse = true
		s := NewSchedulerWithConfig(catalog, cfg)
		m := &model{
			floors:    map[tag.Handle]time.Duration{},
			committed: map[rateKey]int{},
			pending:   map[tag.Handle][]time.Duration{},
		}
		for _, h := range catalog.Handles() {
			m.floors[h] = catalog.MinimumInterval(h)
		}

		for step := 0; step < 400; step++ {
			h := handles[rng.IntN(len(handles))]
			r := rates[rng.IntN(len(rates))]
			floorOf, known := m.floors[h]

			switch rng.IntN(5) {
			case 0, 1:
				revised, accepted := s.Subscribe([]tag.Handle{h}, []time.Duration{r})
				require.Equal(t, known, accepted[0])
				if known {
					require.Equal(t, max(r, floorOf), revised[0])
					require.GreaterOrEqual(t, revised[0], floorOf)
					m.pending[h] = append(m.pending[h], revised[0])
				}
			case 2:
				s.SubscribeReady([]tag.Handle{h})
				for _, pr := range m.pending[h] {
					m.committed[rateKey{h, pr}]++
				}
				delete(m.pending, h)
			case 3:
				want := m.committed[rateKey{h, r}] > 0
				accepted := s.Unsubscribe([]tag.Handle{h}, []time.Duration{r})
				require.Equal(t, want, accepted[0])
				if want {
					m.committed[rateKey{h, r}]--
				}
			case 4:
				newRate := rates[rng.IntN(len(rates))]
				want := m.committed[rateKey{h, r}] > 0
				revised, accepted := s.ModifySubscription([]tag.Handle{h}, []time.Duration{r}, []time.Duration{newRate})
				require.Equal(t, want, accepted[0])
				if want {
					require.Equal(t, max(newRate, floorOf), revised[0])
					m.committed[rateKey{h, r}]--
					m.committed[rateKey{h, revised[0]}]++
				}
			}

			require.NoError(t, s.Verify(), "seed %d step %d", seed, step)
			require.Equal(t, m.intervals(), s.ActiveIntervals(), "seed %d step %d", seed, step)

			if state, ok := s.TagState(h); ok {
				total := 0
				for _, r := range rates {
					require.Equal(t, m.committed[rateKey{h, r}], state.Count(r))
					total += m.committed[rateKey{h, r}]
				}
				require.Equal(t, total > 0, state.HasAnySubscription())
			}
		}
	}
}
