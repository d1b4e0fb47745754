package core

import (
	"fmt"
	"log/slog"

	"github.com/encodeous/rpl/state"
)

// ObjectiveFunction is the policy used to rank parents and DAGs, and to
// compute the rank and metric container a node advertises.
type ObjectiveFunction interface {
	Reset(dag *state.Dag)
	BestParent(p1, p2 *state.Parent) *state.Parent
	BestDag(d1, d2 *state.Dag) *state.Dag
	CalculateRank(p *state.Parent, base state.Rank) state.Rank
	UpdateMetricContainer(inst *state.Instance)
}

// GpObjective is an additive objective function with parent switch
// hysteresis that avoids battery powered relays.
type GpObjective struct {
	Mc             state.McType
	InitLinkMetric uint16
	BatteryPowered bool
	Log            *slog.Logger
}

func NewGpObjective(cfg *state.RplCfg, log *slog.Logger) (*GpObjective, error) {
	if !cfg.DagMc.Valid() {
		return nil, fmt.Errorf("gp objective: unsupported metric container type %s", cfg.DagMc)
	}
	if log == nil {
		log = slog.Default()
	}
	return &GpObjective{
		Mc:             cfg.DagMc,
		InitLinkMetric: cfg.InitLinkMetric,
		BatteryPowered: cfg.BatteryPowered,
		Log:            log,
	}, nil
}

func (of *GpObjective) Reset(dag *state.Dag) {
	of.Log.Debug("gp objective function reset", "dag", dag)
}

// PathMetric is the cost of routing through p. A nil parent costs a fixed
// worst case, so that having no route can be compared against a candidate.
func (of *GpObjective) PathMetric(p *state.Parent) state.PathMetric {
	if p == nil {
		return state.NoParentPathMetric
	}
	src := state.NoParentPathMetric
	switch of.Mc {
	case state.McNone:
		src = state.PathMetric(p.Rank)
	case state.McEtx:
		if etx, ok := p.MC.Etx(); ok {
			src = state.PathMetric(etx)
		}
	case state.McEnergy:
		if e, ok := p.MC.Energy(); ok {
			src = state.PathMetric(e.Estimate)
		}
	}
	return state.PathMetric(p.LinkMetric) + src
}

func onBattery(dag *state.Dag) bool {
	return dag != nil && dag.Instance != nil && dag.Instance.MC.IsBattery()
}

func (of *GpObjective) BestParent(p1, p2 *state.Parent) *state.Parent {
	if p1 == nil {
		return p2
	}
	if p2 == nil {
		return p1
	}
	m1 := of.PathMetric(p1)
	m2 := of.PathMetric(p2)

	var best, other *state.Parent
	var preferred *state.Parent
	if p1.Dag != nil {
		preferred = p1.Dag.PreferredParent
	}
	if preferred != nil && (p1 == preferred || p2 == preferred) && absDiff(m1, m2) < state.SwitchThreshold {
		// within the threshold, stay with the current parent
		best = preferred
	} else if m1 < m2 {
		best = p1
	} else {
		best = p2
	}
	other = p1
	if best == p1 {
		other = p2
	}

	if onBattery(best.Dag) && !onBattery(other.Dag) {
		of.Log.Debug("avoiding battery powered parent", "parent", best, "instead", other)
		return other
	}
	return best
}

func (of *GpObjective) BestDag(d1, d2 *state.Dag) *state.Dag {
	if d1 == nil {
		return d2
	}
	if d2 == nil {
		return d1
	}
	if d1.Grounded != d2.Grounded {
		if d1.Grounded {
			return d1
		}
		return d2
	}
	if d1.Preference != d2.Preference {
		if d1.Preference > d2.Preference {
			return d1
		}
		return d2
	}

	best, other := d2, d1
	if d1.Rank < d2.Rank {
		best, other = d1, d2
	}
	if onBattery(best) && !onBattery(other) {
		of.Log.Debug("avoiding battery powered dag", "dag", best, "instead", other)
		return other
	}
	return best
}

// CalculateRank returns base plus the rank increase of going through p,
// saturating at InfiniteRank. A zero base means the parent's rank.
func (of *GpObjective) CalculateRank(p *state.Parent, base state.Rank) state.Rank {
	var increase uint32
	if p == nil {
		if base == 0 {
			return state.InfiniteRank
		}
		increase = uint32(of.InitLinkMetric) * state.EtxDivisor / 2
	} else {
		increase = uint32(p.LinkMetric)
		if base == 0 {
			base = p.Rank
		}
	}

	if uint32(state.InfiniteRank-base) < increase {
		return state.InfiniteRank
	}
	return base + state.Rank(increase)
}

// UpdateMetricContainer rebuilds the container inst advertises for its current DAG.
func (of *GpObjective) UpdateMetricContainer(inst *state.Instance) {
	dag := inst.CurrentDag
	if dag == nil || !dag.Joined {
		of.Log.Debug("cannot update the metric container when not joined", "instance", inst.Id)
		return
	}

	isRoot := dag.Rank == state.RootRank(inst)
	var pm state.PathMetric
	if !isRoot {
		pm = of.PathMetric(dag.PreferredParent)
	}

	mc := state.MetricContainer{
		Type:  of.Mc,
		Flags: state.McFlagP,
		Aggr:  state.McAggrAdditive,
		Prec:  0,
	}
	switch of.Mc {
	case state.McEtx:
		mc.Obj = state.EtxObject{Etx: clampMetric(pm)}
	case state.McEnergy:
		energy := state.EnergyScavenging
		if isRoot {
			energy = state.EnergyMains
		}
		if of.BatteryPowered {
			energy = state.EnergyBattery
		}
		mc.Obj = state.EnergyObject{Type: energy, Estimate: clampMetric(pm)}
	}
	inst.MC = mc
}

// SelectPreferredParent picks the best of candidates, ignoring parents that
// advertise an infinite rank. It returns nil if none is usable.
func (of *GpObjective) SelectPreferredParent(candidates []*state.Parent) *state.Parent {
	var best *state.Parent
	for _, p := range candidates {
		if p == nil || p.Rank == state.InfiniteRank {
			continue
		}
		best = of.BestParent(best, p)
	}
	return best
}

func (of *GpObjective) SelectDag(dags []*state.Dag) *state.Dag {
	var best *state.Dag
	for _, d := range dags {
		if d == nil {
			continue
		}
		best = of.BestDag(best, d)
	}
	return best
}
