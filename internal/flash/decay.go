package flash

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/rig/internal/monitoring"
)

// DecayTable maps a zone id to the rate at which flash frequency falls per
// frame spent in that zone.
type DecayTable map[int]float64

// Rate returns the decay rate for zone, or def when the zone is not listed.
func (t DecayTable) Rate(zone int, def float64) float64 {
	if r, ok := t[zone]; ok {
		return r
	}
	return def
}

// String renders the table in the same "zone:rate" form ParseDecayTable
// accepts, ordered by zone.
func (t DecayTable) String() string {
	zones := make([]int, 0, len(t))
	for z := range t {
		zones = append(zones, z)
	}
	sort.Ints(zones)

	parts := make([]string, 0, len(zones))
	for _, z := range zones {
		parts = append(parts, fmt.Sprintf("%d:%s", z, strconv.FormatFloat(t[z], 'g', -1, 64)))
	}
	return strings.Join(parts, ",")
}

// ParseDecayTable parses comma-separated "zone:rate" pairs. Each pair is
// validated on its own: a malformed pair is logged and skipped and the rest
// are still parsed. The returned error joins every skipped pair's error.
func ParseDecayTable(s string) (DecayTable, error) {
	table := make(DecayTable)
	var errs []error

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		zone, rate, err := parsePair(pair)
		if err != nil {
			monitoring.Logf("skipping invalid zone decay pair %q: %v", pair, err)
			errs = append(errs, err)
			continue
		}
		table[zone] = rate
	}

	return table, errors.Join(errs...)
}

func parsePair(pair string) (int, float64, error) {
	zs, rs, ok := strings.Cut(pair, ":")
	if !ok {
		return 0, 0, fmt.Errorf("pair %q is missing ':'", pair)
	}
	zone, err := strconv.Atoi(strings.TrimSpace(zs))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid zone in %q: %w", pair, err)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(rs), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid rate in %q: %w", pair, err)
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return 0, 0, fmt.Errorf("rate in %q must be a finite non-negative number", pair)
	}
	return zone, rate, nil
}
