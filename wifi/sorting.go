package wifi

import "sort"

// SortScanResults sorts scan results in place for display:
// 1. Strongest signal first.
// 2. Fallback to SSID alphabetically.
func SortScanResults(results []ScanResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a := results[i]
		b := results[j]
		if a.Signal != b.Signal {
			return a.Signal > b.Signal
		}
		return a.SSID < b.SSID
	})
}

// DedupScanResults collapses results sharing an SSID (several access points
// of one network) into the strongest one. Hidden networks with an empty SSID
// are dropped. The input is not modified.
func DedupScanResults(results []ScanResult) []ScanResult {
	best := make(map[string]int, len(results))
	var out []ScanResult
	for _, r := range results {
		if r.SSID == "" {
			continue
		}
		if i, ok := best[r.SSID]; ok {
			if r.Signal > out[i].Signal {
				out[i] = r
			}
			continue
		}
		best[r.SSID] = len(out)
		out = append(out, r)
	}
	return out
}

// Rank pairs each credential with the network it names in the scan, drops
// credentials for networks that are not visible, and orders the result by
// signal strength (strongest first), ties broken by SSID ascending.
//
// Rank does not depend on the order of either input.
func Rank(credentials []Credential, results []ScanResult) []Candidate {
	signal := make(map[string]int, len(results))
	for _, r := range results {
		if s, ok := signal[r.SSID]; !ok || r.Signal > s {
			signal[r.SSID] = r.Signal
		}
	}

	candidates := make([]Candidate, 0, len(credentials))
	for _, c := range credentials {
		s, ok := signal[c.SSID]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			SSID:   c.SSID,
			Secret: c.Secret,
			Signal: s,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a := candidates[i]
		b := candidates[j]
		if a.Signal != b.Signal {
			return a.Signal > b.Signal
		}
		if a.SSID != b.SSID {
			return a.SSID < b.SSID
		}
		return a.Secret < b.Secret
	})
	return candidates
}
