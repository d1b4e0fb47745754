package core

import (
	"github.com/dustin/go-broadcast"
	"github.com/encodeous/rpl/state"
)

// RplTrace fans topology events out to any registered listener
type RplTrace struct {
	broadcast.Broadcaster
}

func (n *RplTrace) Init(s *state.State) error {
	n.Broadcaster = broadcast.NewBroadcaster(1024)
	return nil
}

func (n *RplTrace) Cleanup(s *state.State) error {
	return n.Broadcaster.Close()
}

// Publish never blocks the dispatch goroutine; events are dropped when listeners fall behind.
func (n *RplTrace) Publish(ev TraceEvent) {
	n.TrySubmit(ev)
}
