package core

import (
	"log/slog"
	"net/netip"
	"testing"

	"github.com/encodeous/rpl/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestObjective(t *testing.T, mc state.McType, battery bool) *GpObjective {
	cfg := state.RplCfg{DagId: netip.MustParseAddr("fd00::1"), DagMc: mc, BatteryPowered: battery}
	state.ExpandRplConfig(&cfg)
	of, err := NewGpObjective(&cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return of
}

func newInstanceDag(id string, energy state.EnergyType) *state.Dag {
	inst := &state.Instance{
		MinHopRankInc: state.DefaultMinHopRankInc,
		MC: state.MetricContainer{
			Type: state.McEnergy,
			Obj:  state.EnergyObject{Type: energy},
		},
	}
	dag := &state.Dag{Id: netip.MustParseAddr(id), Instance: inst, Joined: true, Rank: 1024}
	inst.CurrentDag = dag
	return dag
}

// newParent returns a parent with path metric m when no metric container is in use
func newParent(dag *state.Dag, addr string, m state.PathMetric) *state.Parent {
	return &state.Parent{
		Addr:       netip.MustParseAddr(addr),
		Rank:       state.Rank(m - 10),
		LinkMetric: 10,
		Dag:        dag,
	}
}

func TestPathMetric(t *testing.T) {
	dag := newInstanceDag("fd00::1", state.EnergyMains)
	p := &state.Parent{
		Rank:       512,
		LinkMetric: 20,
		Dag:        dag,
	}

	of := newTestObjective(t, state.McNone, false)
	assert.Equal(t, state.NoParentPathMetric, of.PathMetric(nil))
	assert.Equal(t, state.PathMetric(12800), of.PathMetric(nil))
	assert.Equal(t, state.PathMetric(532), of.PathMetric(p))

	of = newTestObjective(t, state.McEtx, false)
	assert.Equal(t, state.NoParentPathMetric+20, of.PathMetric(p), "missing payload costs the worst case")
	p.MC = state.MetricContainer{Type: state.McEtx, Obj: state.EtxObject{Etx: 300}}
	assert.Equal(t, state.PathMetric(320), of.PathMetric(p))

	of = newTestObjective(t, state.McEnergy, false)
	assert.Equal(t, state.NoParentPathMetric+20, of.PathMetric(p))
	p.MC = state.MetricContainer{Type: state.McEnergy, Obj: state.EnergyObject{Type: state.EnergyMains, Estimate: 0xffff}}
	assert.Equal(t, state.PathMetric(0xffff+20), of.PathMetric(p))
}

func TestBestParentHysteresis(t *testing.T) {
	of := newTestObjective(t, state.McNone, false)
	dag := newInstanceDag("fd00::1", state.EnergyMains)

	q := newParent(dag, "fd00::b", 100)
	p := newParent(dag, "fd00::a", 100+state.SwitchThreshold-1)
	dag.PreferredParent = p
	assert.Same(t, p, of.BestParent(p, q))
	assert.Same(t, p, of.BestParent(q, p))

	p = newParent(dag, "fd00::a", 100+state.SwitchThreshold+1)
	dag.PreferredParent = p
	assert.Same(t, q, of.BestParent(p, q))
	assert.Same(t, q, of.BestParent(q, p))

	// exactly at the threshold the better metric wins
	p = newParent(dag, "fd00::a", 100+state.SwitchThreshold)
	dag.PreferredParent = p
	assert.Same(t, q, of.BestParent(p, q))
}

func TestBestParentWithoutPreferred(t *testing.T) {
	of := newTestObjective(t, state.McNone, false)
	dag := newInstanceDag("fd00::1", state.EnergyMains)

	a := newParent(dag, "fd00::a", 200)
	b := newParent(dag, "fd00::b", 201)
	assert.Same(t, a, of.BestParent(a, b))
	assert.Same(t, a, of.BestParent(b, a))

	c := newParent(dag, "fd00::c", 200)
	assert.Same(t, c, of.BestParent(a, c), "ties go to the second candidate")
	assert.Same(t, a, of.BestParent(nil, a))
	assert.Same(t, a, of.BestParent(a, nil))
}

func TestBestParentAvoidsBattery(t *testing.T) {
	of := newTestObjective(t, state.McNone, false)
	battery := newInstanceDag("fd00::1", state.EnergyBattery)
	mains := newInstanceDag("fd00::1", state.EnergyMains)

	cheap := newParent(battery, "fd00::a", 100)
	costly := newParent(mains, "fd00::b", 400)
	assert.Same(t, costly, of.BestParent(cheap, costly))
	assert.Same(t, costly, of.BestParent(costly, cheap))

	// the preferred parent is left when it runs on battery
	battery.PreferredParent = cheap
	nearby := newParent(mains, "fd00::c", 110)
	assert.Same(t, nearby, of.BestParent(cheap, nearby))

	// without a non-battery alternative the metric decides
	other := newParent(battery, "fd00::d", 300)
	battery.PreferredParent = nil
	assert.Same(t, cheap, of.BestParent(cheap, other))
	assert.Same(t, cheap, of.BestParent(other, cheap))
}

func TestBestDag(t *testing.T) {
	of := newTestObjective(t, state.McNone, false)
	d1 := newInstanceDag("fd00::1", state.EnergyMains)
	d2 := newInstanceDag("fd01::1", state.EnergyMains)

	d2.Grounded = true
	d1.Preference = 7
	assert.Same(t, d2, of.BestDag(d1, d2))
	assert.Same(t, d2, of.BestDag(d2, d1))

	d1.Grounded = true
	assert.Same(t, d1, of.BestDag(d1, d2))
	assert.Same(t, d1, of.BestDag(d2, d1))

	d2.Preference = 7
	d1.Rank = 800
	d2.Rank = 700
	assert.Same(t, d2, of.BestDag(d1, d2))
	assert.Same(t, d2, of.BestDag(d2, d1))

	d1.Rank = 700
	assert.Same(t, d1, of.BestDag(d2, d1), "ties go to the second candidate")

	d2.Instance.MC.Obj = state.EnergyObject{Type: state.EnergyBattery}
	d2.Rank = 300
	assert.Same(t, d1, of.BestDag(d1, d2))
	assert.Same(t, d1, of.BestDag(d2, d1))

	assert.Same(t, d1, of.SelectDag([]*state.Dag{nil, d2, d1}))
}

func TestCalculateRank(t *testing.T) {
	of := newTestObjective(t, state.McNone, false)
	dag := newInstanceDag("fd00::1", state.EnergyMains)
	p := &state.Parent{Rank: 512, LinkMetric: 300, Dag: dag}

	assert.Equal(t, state.InfiniteRank, of.CalculateRank(nil, 0))
	assert.Equal(t, state.Rank(256+256), of.CalculateRank(nil, 256))
	assert.Equal(t, state.Rank(812), of.CalculateRank(p, 0))
	assert.Equal(t, state.Rank(1300), of.CalculateRank(p, 1000))

	p = &state.Parent{Rank: state.InfiniteRank - 1, LinkMetric: 10, Dag: dag}
	assert.Equal(t, state.InfiniteRank, of.CalculateRank(p, 0))
	p = &state.Parent{Rank: state.InfiniteRank - 11, LinkMetric: 10, Dag: dag}
	assert.Equal(t, state.InfiniteRank-1, of.CalculateRank(p, 0))
	assert.Equal(t, state.InfiniteRank, of.CalculateRank(nil, state.InfiniteRank-1))
}

func TestUpdateMetricContainer(t *testing.T) {
	dag := newInstanceDag("fd00::1", state.EnergyMains)
	inst := dag.Instance
	parent := &state.Parent{Rank: 300, LinkMetric: 40, Dag: dag}
	dag.PreferredParent = parent

	t.Run("not joined", func(t *testing.T) {
		of := newTestObjective(t, state.McEnergy, false)
		before := inst.MC
		dag.Joined = false
		of.UpdateMetricContainer(inst)
		dag.Joined = true
		assert.Equal(t, before, inst.MC)
	})

	t.Run("energy root", func(t *testing.T) {
		of := newTestObjective(t, state.McEnergy, false)
		dag.Rank = state.RootRank(inst)
		of.UpdateMetricContainer(inst)
		assert.Equal(t, state.MetricContainer{
			Type:  state.McEnergy,
			Flags: state.McFlagP,
			Aggr:  state.McAggrAdditive,
			Obj:   state.EnergyObject{Type: state.EnergyMains, Estimate: 0},
		}, inst.MC)
	})

	t.Run("energy relay", func(t *testing.T) {
		of := newTestObjective(t, state.McEnergy, false)
		dag.Rank = 1024
		parent.MC = state.MetricContainer{Type: state.McEnergy, Obj: state.EnergyObject{Estimate: 60}}
		of.UpdateMetricContainer(inst)
		e, ok := inst.MC.Energy()
		require.True(t, ok)
		assert.Equal(t, state.EnergyObject{Type: state.EnergyScavenging, Estimate: 100}, e)
	})

	t.Run("energy battery", func(t *testing.T) {
		of := newTestObjective(t, state.McEnergy, true)
		dag.Rank = state.RootRank(inst)
		of.UpdateMetricContainer(inst)
		assert.True(t, inst.MC.IsBattery())
	})

	t.Run("etx", func(t *testing.T) {
		of := newTestObjective(t, state.McEtx, false)
		dag.Rank = 1024
		parent.MC = state.MetricContainer{Type: state.McEtx, Obj: state.EtxObject{Etx: 0xfff0}}
		of.UpdateMetricContainer(inst)
		etx, ok := inst.MC.Etx()
		require.True(t, ok)
		assert.Equal(t, uint16(0xffff), etx, "advertised metric saturates")
		assert.False(t, inst.MC.IsBattery())
	})

	t.Run("none", func(t *testing.T) {
		of := newTestObjective(t, state.McNone, false)
		of.UpdateMetricContainer(inst)
		assert.Equal(t, state.McNone, inst.MC.Type)
		assert.Nil(t, inst.MC.Obj)
	})
}

func TestSelectPreferredParent(t *testing.T) {
	of := newTestObjective(t, state.McNone, false)
	dag := newInstanceDag("fd00::1", state.EnergyMains)

	unreachable := &state.Parent{Rank: state.InfiniteRank, Dag: dag}
	a := newParent(dag, "fd00::a", 900)
	b := newParent(dag, "fd00::b", 500)
	assert.Same(t, b, of.SelectPreferredParent([]*state.Parent{unreachable, a, nil, b}))
	assert.Nil(t, of.SelectPreferredParent([]*state.Parent{unreachable}))
}

func TestNewGpObjectiveRejectsUnknownMc(t *testing.T) {
	cfg := state.RplCfg{DagMc: state.McType(5)}
	_, err := NewGpObjective(&cfg, nil)
	assert.ErrorContains(t, err, "unsupported metric container type")
}
