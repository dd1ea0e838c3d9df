// Package refdata loads the static reference data the pipeline needs at
// startup: the FIR boundary polygon, the sector index, the controller
// callsign allow-list, and the ICAO-prefix to state mapping.
//
// All four are loaded once and held immutably; a reload requires a process
// restart. Any parse error is fatal and the process refuses to start.
package refdata

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"vatsim_tracker/internal/config"
	"vatsim_tracker/internal/geo"
)

// Data is the immutable reference-data set.
type Data struct {
	FIR     *geo.Boundary
	Sectors *geo.SectorIndex

	// prefixes from the allow-list, longest first. Empty means admit all.
	prefixes []string

	// icaoStates maps ICAO location prefixes (e.g. "YS") to state names,
	// used only by reporting.
	icaoStates map[string]string
}

// Load reads every reference file named in the configuration. The sector
// index is nil when sector tracking is disabled; everything else is
// mandatory except the optional allow-list and state table.
func Load(cfg config.Config) (*Data, error) {
	d := &Data{icaoStates: map[string]string{}}

	var err error
	d.FIR, err = geo.LoadBoundary(cfg.FIRPolygonPath)
	if err != nil {
		return nil, fmt.Errorf("load FIR polygon: %w", err)
	}

	if cfg.SectorTrackingEnabled {
		d.Sectors, err = geo.LoadSectors(cfg.SectorDataPath)
		if err != nil {
			return nil, fmt.Errorf("load sectors: %w", err)
		}
	}

	if cfg.AllowListPath != "" {
		d.prefixes, err = loadAllowList(cfg.AllowListPath)
		if err != nil {
			return nil, fmt.Errorf("load controller allow-list: %w", err)
		}
	}

	if cfg.ICAOStatesPath != "" {
		d.icaoStates, err = loadICAOStates(cfg.ICAOStatesPath)
		if err != nil {
			return nil, fmt.Errorf("load ICAO state table: %w", err)
		}
	}

	return d, nil
}

// AllowsController reports whether a controller callsign matches the
// allow-list. An empty list admits everything. Entries are treated as
// prefixes, so "ML-" covers all Melbourne enroute positions.
func (d *Data) AllowsController(callsign string) bool {
	if len(d.prefixes) == 0 {
		return true
	}
	cs := strings.ToUpper(strings.TrimSpace(callsign))
	for _, p := range d.prefixes {
		if strings.HasPrefix(cs, p) {
			return true
		}
	}
	return false
}

// AllowListSize returns the number of allow-list entries.
func (d *Data) AllowListSize() int { return len(d.prefixes) }

// StateForICAO resolves an ICAO location code to a state name by longest
// prefix match, returning "" when unknown.
func (d *Data) StateForICAO(icao string) string {
	code := strings.ToUpper(strings.TrimSpace(icao))
	for l := len(code); l > 0; l-- {
		if state, ok := d.icaoStates[code[:l]]; ok {
			return state
		}
	}
	return ""
}

func loadAllowList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var prefixes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prefixes = append(prefixes, strings.ToUpper(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Longest first so more specific entries are tried before short ones.
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return prefixes, nil
}

func loadICAOStates(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	states := map[string]string{}
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	upper := make(map[string]string, len(states))
	for k, v := range states {
		upper[strings.ToUpper(k)] = v
	}
	return upper, nil
}
