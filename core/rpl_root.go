package core

import (
	"fmt"
	"net/netip"

	"github.com/encodeous/rpl/perf"
	"github.com/encodeous/rpl/state"
	"github.com/gaissmai/bart"
	"github.com/jellydator/ttlcache/v3"
)

// Dao is a single transit advertisement: Child reaches the root through
// Parent for Lifetime ticks. A zero lifetime withdraws the link. Only DAOs
// carrying a sequence number are deduplicated.
type Dao struct {
	Child    netip.Addr `yaml:"child"`
	Parent   netip.Addr `yaml:"parent,omitempty"`
	Lifetime uint32     `yaml:"lifetime"`
	Seq      *uint8     `yaml:"seq,omitempty"`
}

type daoKey struct {
	child    netip.Addr
	parent   netip.Addr
	lifetime uint32
	seq      uint8
}

// SourceRoute lists the hops from the root to a destination, root first
type SourceRoute []netip.Addr

// RplRoot keeps the non-storing topology of the DAG rooted at this node and
// the source routes derived from it.
type RplRoot struct {
	*state.State
	Of *GpObjective
	// Events receives topology events, defaults to the root itself
	Events EventSink
	// ManualTick disables the background tasks, the owner calls Tick
	ManualTick bool
	DaoDedup   *ttlcache.Cache[daoKey, struct{}]
	// ForwardTable holds a host route for every reachable node
	ForwardTable bart.Table[SourceRoute]
	installed    map[netip.Prefix]struct{}
}

func (r *RplRoot) Init(s *state.State) error {
	s.Log.Debug("init rpl root", "cfg", &s.RplCfg)
	r.State = s
	if r.Events == nil {
		r.Events = r
	}

	of, err := NewGpObjective(&s.RplCfg, s.Log)
	if err != nil {
		return err
	}
	r.Of = of

	s.Dag = s.RplCfg.NewRootDag()
	s.Table = state.NewNsTable(s.NsLinkNum, s.NoPathRemovalDelay)
	if _, err := s.Table.UpdateNode(s.Dag, s.Dag.Id, netip.Addr{}, state.LifetimeInfinite); err != nil {
		return fmt.Errorf("failed to add root record: %w", err)
	}
	r.Of.Reset(s.Dag)
	r.Of.UpdateMetricContainer(s.Dag.Instance)

	r.DaoDedup = ttlcache.New[daoKey, struct{}](
		ttlcache.WithTTL[daoKey, struct{}](state.DaoDedupTTL),
		ttlcache.WithDisableTouchOnHit[daoKey, struct{}](),
	)
	r.ForwardTable = bart.Table[SourceRoute]{}
	r.installed = make(map[netip.Prefix]struct{})
	r.rebuildRoutes()

	if !r.ManualTick {
		s.Log.Debug("schedule rpl root tasks")
		s.Env.RepeatTask(func(s *state.State) error {
			r.Tick()
			return nil
		}, s.TickInterval)
		s.Env.RepeatTask(func(s *state.State) error {
			r.DaoDedup.DeleteExpired()
			return nil
		}, state.GcDelay)
	}
	return nil
}

func (r *RplRoot) Cleanup(s *state.State) error {
	if r.DaoDedup != nil {
		r.DaoDedup.DeleteAll()
	}
	r.installed = nil
	r.State = nil
	return nil
}

func (r *RplRoot) Log(event RouterEvent, desc string, args ...any) {
	msg := fmt.Sprintf("%s %s", event, desc)
	if event.IsWarning() {
		r.Env.Log.Warn(msg, args...)
	} else {
		r.Env.Log.Debug(msg, args...)
	}
	if tr, ok := r.Modules[moduleName[*RplTrace]()].(*RplTrace); ok {
		tr.Publish(TraceEvent{Event: event, Desc: desc, Args: args})
	}
}

// HandleDao applies a received DAO to the topology. Errors are not fatal,
// the DAO is dropped and the node stays untracked until space frees up.
func (r *RplRoot) HandleDao(dao Dao) error {
	perf.DaoReceived.Add(1)
	var key daoKey
	if dao.Seq != nil {
		key = daoKey{dao.Child, dao.Parent, dao.Lifetime, *dao.Seq}
		if r.DaoDedup.Get(key) != nil {
			r.Events.Log(DuplicateDao, "dropped duplicate dao", "child", dao.Child, "seq", *dao.Seq)
			return nil
		}
	}

	if dao.Lifetime == 0 {
		r.HandleNoPath(dao.Child, dao.Parent)
		r.remember(dao, key)
		return nil
	}

	n, err := r.Table.UpdateNode(r.Dag, dao.Child, dao.Parent, dao.Lifetime)
	if err != nil {
		perf.DaoDropped.Add(1)
		r.Events.Log(DaoDropped, "dropped dao", "child", dao.Child, "parent", dao.Parent, "error", err)
		return err
	}
	via := netip.Addr{}
	if p := r.Table.Parent(n); p != nil {
		via = state.ReconstructAddress(p)
	}
	r.Events.Log(NodeUpdated, "topology updated", "child", dao.Child, "parent", via, "lifetime", dao.Lifetime)
	r.remember(dao, key)
	r.rebuildRoutes()
	return nil
}

// remember marks an applied DAO so that retransmissions are dropped
func (r *RplRoot) remember(dao Dao, key daoKey) {
	if dao.Seq != nil {
		r.DaoDedup.Set(key, struct{}{}, ttlcache.DefaultTTL)
	}
}

// HandleNoPath schedules the removal of the link child -> parent.
func (r *RplRoot) HandleNoPath(child, parent netip.Addr) {
	perf.NoPathReceived.Add(1)
	if r.Table.ExpireParent(r.Dag, child, parent) {
		r.Events.Log(LinkWithdrawn, "link withdrawn", "child", child, "parent", parent, "delay", r.Table.RemovalDelay)
	} else {
		r.Events.Log(NoPathIgnored, "no-path does not match the current parent", "child", child, "parent", parent)
	}
}

// Tick ages the topology by one lifetime unit
func (r *RplRoot) Tick() {
	removed := r.Table.Tick()
	for _, addr := range removed {
		perf.NodesExpired.Add(1)
		r.Events.Log(NodeExpired, "topology record expired", "node", addr)
	}
	perf.TableOccupancy.Add(float64(r.Table.Count()))
	if len(removed) > 0 {
		r.rebuildRoutes()
	}
}

func (r *RplRoot) rebuildRoutes() {
	next := make(map[netip.Prefix]struct{})
	for n := range r.Table.All() {
		if n.Dag != r.Dag {
			continue
		}
		addr := state.ReconstructAddress(n)
		route, ok := r.Table.SourceRoute(r.Dag, addr)
		if !ok {
			continue
		}
		pfx := netip.PrefixFrom(addr, 128)
		r.ForwardTable.Insert(pfx, route)
		next[pfx] = struct{}{}
	}
	for pfx := range r.installed {
		if _, ok := next[pfx]; !ok {
			r.ForwardTable.Delete(pfx)
		}
	}
	r.installed = next
}

// LookupRoute returns the source route towards addr, if it is reachable
func (r *RplRoot) LookupRoute(addr netip.Addr) (SourceRoute, bool) {
	return r.ForwardTable.Lookup(addr)
}

func (r SourceRoute) String() string {
	out := ""
	for i, hop := range r {
		if i > 0 {
			out += " -> "
		}
		out += hop.String()
	}
	return out
}
