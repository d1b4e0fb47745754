package core

import (
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"strings"
	"testing"

	"github.com/encodeous/rpl/state"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var (
	rootAddr = netip.MustParseAddr("fd00::1")
	nodeA    = netip.MustParseAddr("fd00::a")
	nodeB    = netip.MustParseAddr("fd00::b")
	nodeC    = netip.MustParseAddr("fd00::c")
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// RootHarness records every event raised by the root it is attached to
type RootHarness struct {
	actions []HarnessEvent
}

func (h *RootHarness) Log(event RouterEvent, desc string, args ...any) {
	h.actions = append(h.actions, MakeEvent(event.String(), args...))
}

func (h *RootHarness) GetActions() HarnessEvents {
	x := h.actions
	h.actions = make([]HarnessEvent, 0)
	return x
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message != msg || len(event.Args) < len(args) {
			continue
		}
		match := true
		for i, arg := range args {
			if !cmp.Equal(event.Args[i], arg, cmpopts.EquateComparable(netip.Addr{})) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

func testRootCfg(linkNum int) state.RplCfg {
	cfg := state.RplCfg{
		DagId:              rootAddr,
		NsLinkNum:          linkNum,
		NoPathRemovalDelay: 2,
	}
	state.ExpandRplConfig(&cfg)
	return cfg
}

// newTestRoot builds a root driven by hand, the caller must Stop the returned state
func newTestRoot(t *testing.T, cfg state.RplCfg) (*state.State, *RplRoot, *RootHarness) {
	s := NewState(cfg, slog.New(slog.DiscardHandler))
	h := &RootHarness{}
	root := &RplRoot{ManualTick: true, Events: h}
	require.NoError(t, initModules(s, &RplTrace{}, root))
	return s, root, h
}

func dao(child, parent netip.Addr, lifetime uint32, seq uint8) Dao {
	return Dao{Child: child, Parent: parent, Lifetime: lifetime, Seq: &seq}
}
