package optimizer

import (
	"fmt"
	"slices"
)

// selectByTournament draws n parents from ranked. Each tournament samples
// min(5, len(ranked)) distinct genomes and keeps the fittest; tournaments are
// independent, so a genome can be picked more than once.
func (o *Optimizer) selectByTournament(ranked []*Genome, n int) []*Genome {
	size := min(tournamentSize, len(ranked))
	idx := make([]int, len(ranked))
	parents := make([]*Genome, 0, n)

	for range n {
		for i := range idx {
			idx[i] = i
		}
		// partial Fisher-Yates: idx[:size] becomes the sample
		for i := 0; i < size; i++ {
			j := i + o.rng.Intn(len(idx)-i)
			idx[i], idx[j] = idx[j], idx[i]
		}

		best := idx[0]
		for _, i := range idx[1:size] {
			// ranked is sorted, so the lowest index is the fittest
			if i < best {
				best = i
			}
		}
		parents = append(parents, ranked[best])
	}

	return parents
}

// crossover pairs consecutive parents. With probability CrossoverRate a pair
// yields two slot-exchange children, otherwise two copies. A trailing parent
// without a partner is dropped.
func (o *Optimizer) crossover(parents []*Genome) ([]*Genome, error) {
	offspring := make([]*Genome, 0, len(parents))

	for i := 0; i+1 < len(parents); i += 2 {
		p1, p2 := parents[i], parents[i+1]

		if o.rng.Float64() >= o.params.CrossoverRate {
			offspring = append(offspring, p1.MakeCopy(), p2.MakeCopy())
			continue
		}

		c1, c2 := p1.MakeCopy(), p2.MakeCopy()
		for slot := range c1.Vehicles {
			if o.rng.Intn(2) == 0 {
				continue
			}
			a, b := c1.Vehicles[slot], c2.Vehicles[slot]
			a.Packages, b.Packages = b.Packages, a.Packages
		}

		for _, c := range []*Genome{c1, c2} {
			if err := repair(c); err != nil {
				return nil, err
			}
		}
		offspring = append(offspring, c1, c2)
	}

	return offspring, nil
}

// repair makes g a partition of its package set again after a slot exchange:
// repeated ids keep their first occurrence, ids past a vehicle's capacity are
// dropped from it, and every unplaced id then goes, in ascending order, into
// the first vehicle with room.
func repair(g *Genome) error {
	seen := make(map[int]bool, len(g.packageIDs))

	for _, v := range g.Vehicles {
		kept := v.Packages[:0]
		for _, id := range v.Packages {
			if seen[id] {
				continue
			}
			if len(kept) == v.Capacity {
				continue
			}
			seen[id] = true
			kept = append(kept, id)
		}
		v.Packages = kept
	}

	for _, id := range g.packageIDs {
		if seen[id] {
			continue
		}
		i := slices.IndexFunc(g.Vehicles, (*Vehicle).hasRoom)
		if i < 0 {
			return fmt.Errorf("%w: no vehicle has room for package %d", ErrInfeasible, id)
		}
		g.Vehicles[i].Packages = append(g.Vehicles[i].Packages, id)
	}

	g.SortGenome()
	return nil
}

// mutate swaps two uniformly drawn packages in each offspring with
// probability MutationRate. Drawing the same id twice relocates it.
func (o *Optimizer) mutate(offspring []*Genome) {
	ids := o.packageIDs
	if len(ids) == 0 {
		return
	}

	for _, g := range offspring {
		if o.rng.Float64() >= o.params.MutationRate {
			continue
		}
		id1 := ids[o.rng.Intn(len(ids))]
		id2 := ids[o.rng.Intn(len(ids))]
		if !g.SwapPackages(id1, id2) {
			o.skippedSwaps++
		}
	}
}
