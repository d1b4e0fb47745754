package core

import (
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"

	"github.com/encodeous/rpl/state"
	"github.com/goccy/go-yaml"
)

type NoPath struct {
	Child  netip.Addr `yaml:"child"`
	Parent netip.Addr `yaml:"parent"`
}

// Step is a single scenario action. Exactly one field should be set.
type Step struct {
	Dao    *Dao        `yaml:"dao,omitempty"`
	NoPath *NoPath     `yaml:"nopath,omitempty"`
	Tick   int         `yaml:"tick,omitempty"`
	Route  *netip.Addr `yaml:"route,omitempty"`
	Table  bool        `yaml:"table,omitempty"`
}

type Scenario struct {
	Steps []Step `yaml:"steps"`
}

// echoSink logs through the root and also prints each event in order with the step output
type echoSink struct {
	root *RplRoot
	out  io.Writer
}

func (e *echoSink) Log(event RouterEvent, desc string, args ...any) {
	e.root.Log(event, desc, args...)
	_, _ = fmt.Fprintf(e.out, "# %s\n", TraceEvent{Event: event, Desc: desc, Args: args})
}

func ReadScenario(path string) (*Scenario, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(file, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &sc, nil
}

// Simulate replays the scenario against a root built from cfg, writing route
// and table queries to out. Ticks are driven by the scenario, not by a timer.
func Simulate(cfg state.RplCfg, sc *Scenario, out io.Writer, logger *slog.Logger, trace bool) error {
	s := NewState(cfg, logger)
	defer Stop(s)

	root := &RplRoot{ManualTick: true}
	if trace {
		root.Events = &echoSink{root: root, out: out}
	}
	if err := initModules(s, &RplTrace{}, root); err != nil {
		return err
	}

	for i, step := range sc.Steps {
		switch {
		case step.Dao != nil:
			// dropped DAOs are reported through the event log
			_ = root.HandleDao(*step.Dao)
		case step.NoPath != nil:
			root.HandleNoPath(step.NoPath.Child, step.NoPath.Parent)
		case step.Tick > 0:
			for range step.Tick {
				root.Tick()
			}
		case step.Route != nil:
			route, ok := root.LookupRoute(*step.Route)
			if ok {
				_, _ = fmt.Fprintf(out, "route %s: %s\n", step.Route, route)
			} else {
				_, _ = fmt.Fprintf(out, "route %s: unreachable\n", step.Route)
			}
		case step.Table:
			_, _ = fmt.Fprintf(out, "table (%d/%d):\n%s\n", s.Table.Count(), s.Table.Capacity(), s.Table)
		default:
			return fmt.Errorf("step %d has no action", i)
		}
	}
	return nil
}
