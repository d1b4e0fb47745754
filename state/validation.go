package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
)

var namePattern, _ = regexp.Compile("^[0-9a-zA-Z.:_-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

// DagIdValidator checks that id can serve both as a node address and as the DAG prefix source.
func DagIdValidator(id DagId) error {
	if !id.IsValid() {
		return fmt.Errorf("dag_id is not set")
	}
	if !id.Is6() || id.Is4In6() {
		return fmt.Errorf("dag_id %s must be an IPv6 address", id)
	}
	if id.Zone() != "" {
		return fmt.Errorf("dag_id %s must not carry a zone", id)
	}
	return nil
}

func RplConfigValidator(cfg *RplCfg) error {
	if err := NameValidator(cfg.Id); err != nil {
		return err
	}
	if err := DagIdValidator(cfg.DagId); err != nil {
		return err
	}
	if !cfg.DagMc.Valid() {
		return fmt.Errorf("unsupported metric container type %d", uint8(cfg.DagMc))
	}
	if cfg.BatteryPowered && cfg.DagMc != McEnergy {
		return fmt.Errorf("battery_powered requires dag_mc: energy, got %s", cfg.DagMc)
	}
	if cfg.NsLinkNum <= 0 {
		return fmt.Errorf("ns_link_num must be positive, got %d", cfg.NsLinkNum)
	}
	if cfg.NoPathRemovalDelay == 0 || cfg.NoPathRemovalDelay == LifetimeInfinite {
		return fmt.Errorf("nopath_removal_delay must be finite and non-zero")
	}
	if cfg.MinHopRankInc == 0 || cfg.MinHopRankInc == InfiniteRank {
		return fmt.Errorf("min_hop_rank_inc must be finite and non-zero")
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", cfg.TickInterval)
	}
	if cfg.LogPath != "" {
		if err := PathValidator(cfg.LogPath); err != nil {
			return fmt.Errorf("log_path: %w", err)
		}
	}
	return nil
}
