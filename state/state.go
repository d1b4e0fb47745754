package state

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type Module interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on the dispatch goroutine
type State struct {
	*Env
	Modules map[string]Module
	// Dag is the DAG rooted at this node
	Dag *Dag
	// Table is the non-storing topology of Dag
	Table *NsTable
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan func(s *State) error
	RplCfg
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Log      *slog.Logger
	Started  atomic.Bool
	Stopping atomic.Bool
}
