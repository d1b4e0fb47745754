package state

import "time"

const (
	InfiniteRank = Rank(0xffff)
	// LifetimeInfinite marks a topology record that never decays.
	LifetimeInfinite = ^(uint32)(0)

	DefaultMinHopRankInc = Rank(256)
	MaxPathCost          = 100
	EtxDivisor           = 256
	// ParentSwitchThresholdDiv scales the hysteresis applied before leaving
	// the preferred parent.
	ParentSwitchThresholdDiv = 2

	SwitchThreshold    = PathMetric(EtxDivisor / ParentSwitchThresholdDiv)
	NoParentPathMetric = PathMetric(MaxPathCost * EtxDivisor / 2)
)

var (
	DefaultNsLinkNum          = 16
	DefaultNoPathRemovalDelay = uint32(60)
	DefaultInitLinkMetric     = uint16(2)
	DefaultTickInterval       = time.Second

	DaoDedupTTL           = time.Second * 10
	DispatchWarnThreshold = time.Millisecond * 4
	GcDelay               = time.Second * 5
)
