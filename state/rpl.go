package state

import (
	"fmt"
	"net/netip"
)

// Rank is the position of a node relative to the DAG root; it strictly
// increases away from the root.
type Rank uint16

// LinkMetric is the cost of a single hop, as reported by the neighbour table.
type LinkMetric uint16

// PathMetric is the cost of routing through a parent. It is wider than the
// advertised values so that summing a link metric and an advertised metric
// never wraps.
type PathMetric uint32

// DagId is the global address of the DAG root. Its first 8 bytes are the
// prefix shared by every node in the DAG.
type DagId = netip.Addr

type McType uint8

const (
	McNone McType = iota
	McEtx
	McEnergy
)

func (t McType) String() string {
	switch t {
	case McNone:
		return "none"
	case McEtx:
		return "etx"
	case McEnergy:
		return "energy"
	}
	return fmt.Sprintf("McType(%d)", uint8(t))
}

func (t McType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unsupported metric container type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *McType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none", "":
		*t = McNone
	case "etx":
		*t = McEtx
	case "energy":
		*t = McEnergy
	default:
		return fmt.Errorf("unsupported metric container type %q, must be one of none, etx, energy", string(b))
	}
	return nil
}

func (t McType) Valid() bool {
	return t <= McEnergy
}

// EnergyType values as carried in the RFC 6551 energy object.
type EnergyType uint8

const (
	EnergyMains EnergyType = iota
	EnergyBattery
	EnergyScavenging
)

func (e EnergyType) String() string {
	switch e {
	case EnergyMains:
		return "mains"
	case EnergyBattery:
		return "battery"
	case EnergyScavenging:
		return "scavenging"
	}
	return fmt.Sprintf("EnergyType(%d)", uint8(e))
}

const (
	McFlagP        uint8 = 1 << 1
	McAggrAdditive uint8 = 0
)

// McObject is the type-specific payload of a MetricContainer.
type McObject interface {
	mcType() McType
}

type EtxObject struct {
	Etx uint16
}

func (EtxObject) mcType() McType { return McEtx }

type EnergyObject struct {
	Type     EnergyType
	Estimate uint16
}

func (EnergyObject) mcType() McType { return McEnergy }

// MetricContainer is the aggregate metric an instance advertises in its DIOs.
// Obj is nil for McNone, and otherwise always matches Type.
type MetricContainer struct {
	Type  McType
	Flags uint8
	Aggr  uint8
	Prec  uint8
	Obj   McObject
}

// Etx returns the ETX payload, if the container carries one.
func (mc MetricContainer) Etx() (uint16, bool) {
	if o, ok := mc.Obj.(EtxObject); ok && mc.Type == McEtx {
		return o.Etx, true
	}
	return 0, false
}

// Energy returns the energy payload, if the container carries one.
func (mc MetricContainer) Energy() (EnergyObject, bool) {
	if o, ok := mc.Obj.(EnergyObject); ok && mc.Type == McEnergy {
		return o, true
	}
	return EnergyObject{}, false
}

// IsBattery reports whether the container advertises a battery powered node.
func (mc MetricContainer) IsBattery() bool {
	e, ok := mc.Energy()
	return ok && e.Type == EnergyBattery
}

func (mc MetricContainer) String() string {
	switch o := mc.Obj.(type) {
	case EtxObject:
		return fmt.Sprintf("(mc: %s, etx: %d)", mc.Type, o.Etx)
	case EnergyObject:
		return fmt.Sprintf("(mc: %s, energy: %s, est: %d)", mc.Type, o.Type, o.Estimate)
	}
	return fmt.Sprintf("(mc: %s)", mc.Type)
}

// Parent is a candidate next hop towards the root. It is owned by the
// messaging layer; the objective function only reads it.
type Parent struct {
	Addr       netip.Addr
	Rank       Rank
	LinkMetric LinkMetric
	MC         MetricContainer
	Dag        *Dag
}

func (p *Parent) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("(parent: %s, rank: %d, link: %d, %s)", p.Addr, p.Rank, p.LinkMetric, p.MC)
}

type Dag struct {
	Id              DagId
	Rank            Rank
	Grounded        bool
	Preference      uint8
	PreferredParent *Parent
	Instance        *Instance
	Joined          bool
}

func (d *Dag) String() string {
	if d == nil {
		return "<nil>"
	}
	return fmt.Sprintf("(dag: %s, rank: %d, grounded: %t, pref: %d)", d.Id, d.Rank, d.Grounded, d.Preference)
}

// Prefix returns the 8 byte prefix shared by every address in the DAG.
func (d *Dag) Prefix() [8]byte {
	var p [8]byte
	b := d.Id.As16()
	copy(p[:], b[:8])
	return p
}

func (d *Dag) IsRoot() bool {
	return d.Instance != nil && d.Rank == RootRank(d.Instance)
}

type Instance struct {
	Id            uint8
	MC            MetricContainer
	CurrentDag    *Dag
	MinHopRankInc Rank
}

// RootRank is the rank advertised by the root of the instance's DAGs.
func RootRank(inst *Instance) Rank {
	if inst.MinHopRankInc == 0 {
		return DefaultMinHopRankInc
	}
	return inst.MinHopRankInc
}
