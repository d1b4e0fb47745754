package state

import (
	"fmt"
	"net/netip"
	"time"
)

// RplCfg represents node-level RPL configuration
type RplCfg struct {
	Id                 string        `yaml:"id,omitempty"`                   // human readable node name, used as log prefix
	DagId              netip.Addr    `yaml:"dag_id"`                         // global address of the DAG root
	InstanceId         uint8         `yaml:"instance_id,omitempty"`          // RPL instance id
	NsLinkNum          int           `yaml:"ns_link_num,omitempty"`          // capacity of the non-storing topology table
	NoPathRemovalDelay uint32        `yaml:"nopath_removal_delay,omitempty"` // ticks a link survives after a No-Path
	DagMc              McType        `yaml:"dag_mc,omitempty"`               // metric container advertised in DIOs
	InitLinkMetric     uint16        `yaml:"init_link_metric,omitempty"`     // link metric assumed before any measurement
	BatteryPowered     bool          `yaml:"battery_powered,omitempty"`      // advertise this node as battery powered
	MinHopRankInc      Rank          `yaml:"min_hop_rank_inc,omitempty"`     // rank of the DAG root
	Grounded           bool          `yaml:"grounded,omitempty"`             // whether the DAG provides a route to the goal
	Preference         uint8         `yaml:"preference,omitempty"`           // DAG preference, higher is better
	TickInterval       time.Duration `yaml:"tick_interval,omitempty"`        // duration of one lifetime unit
	LogPath            string        `yaml:"log_path,omitempty"`             // if not empty, logs are also written to this file
}

// ExpandRplConfig fills in defaults for every unset field
func ExpandRplConfig(cfg *RplCfg) {
	if cfg.NsLinkNum == 0 {
		cfg.NsLinkNum = DefaultNsLinkNum
	}
	if cfg.NoPathRemovalDelay == 0 {
		cfg.NoPathRemovalDelay = DefaultNoPathRemovalDelay
	}
	if cfg.InitLinkMetric == 0 {
		cfg.InitLinkMetric = DefaultInitLinkMetric
	}
	if cfg.MinHopRankInc == 0 {
		cfg.MinHopRankInc = DefaultMinHopRankInc
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Id == "" && cfg.DagId.IsValid() {
		cfg.Id = cfg.DagId.String()
	}
}

// NewRootDag builds the DAG and instance records of a node acting as the DAG root.
func (cfg *RplCfg) NewRootDag() *Dag {
	inst := &Instance{
		Id:            cfg.InstanceId,
		MinHopRankInc: cfg.MinHopRankInc,
	}
	dag := &Dag{
		Id:         cfg.DagId,
		Rank:       RootRank(inst),
		Grounded:   cfg.Grounded,
		Preference: cfg.Preference,
		Instance:   inst,
		Joined:     true,
	}
	inst.CurrentDag = dag
	return dag
}

func (cfg *RplCfg) String() string {
	return fmt.Sprintf("(dag: %s, instance: %d, mc: %s, links: %d)", cfg.DagId, cfg.InstanceId, cfg.DagMc, cfg.NsLinkNum)
}
