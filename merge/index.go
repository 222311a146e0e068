/*
index.go - Lookup tables over the candidate objectives of one merge pass

PURPOSE:
  Turns the filtered objective list into the maps the matching cascade
  reads. Built fresh for every pass; nothing is cached across calls.

MAPS:
  rawCode, rawName:   uppercase+trimmed agency code / name -> record
  normCode, normName: Normalize()d agency code / name      -> record
  totals:             normalized code and name of each aggregated group
                      -> summed value (StrategySum only)

DUPLICATES:
  When two candidates share a key, the later one in filter output order
  wins. Stores return objectives in insertion order, so the most recently
  created objective wins.

CASCADE (first hit wins):
  0. totals[C'], totals[N']        (StrategySum only)
  1. rawCode[C]     2. rawName[N]
  3. normCode[C']   4. normName[N']
  5. rawName[C]     6. rawCode[N]  (cross lookups)
  7. substring over normalized codes
  8. substring over normalized names

SUBSTRING TIE-BREAK:
  Steps 7 and 8 accept the first indexed key K with len(K) >= 3 and
  len(lookup) >= 3 where one contains the other. Keys are visited in Go map
  order, so when several keys qualify the winner is unspecified. No rule
  (longest overlap, shortest key) has been agreed for this case.
*/
package merge

import (
	"strings"

	"github.com/Modou1ngom/cofidash/objective"
)

// minPartialLen is the shortest key eligible for substring matching.
const minPartialLen = 3

// Strategy selects how candidate objectives are combined before matching.
type Strategy uint8

const (
	// StrategyIdentity matches each agency to a single objective.
	StrategyIdentity Strategy = iota
	// StrategySum adds the values of all objectives sharing an agency key.
	StrategySum
)

func (s Strategy) String() string {
	if s == StrategySum {
		return "sum"
	}
	return "identity"
}

// Step names the cascade step that produced a match.
type Step string

const (
	StepAggregate   Step = "aggregate"
	StepRawCode     Step = "raw_code"
	StepRawName     Step = "raw_name"
	StepNormCode    Step = "normalized_code"
	StepNormName    Step = "normalized_name"
	StepCrossCode   Step = "code_as_name"
	StepCrossName   Step = "name_as_code"
	StepPartialCode Step = "partial_code"
	StepPartialName Step = "partial_name"
)

// Match is a resolved objective value for one agency.
type Match struct {
	Value int64
	Step  Step
	Key   string // index key that matched
}

// Index holds the lookup tables for one pass.
type Index struct {
	strategy Strategy
	records  int

	rawCode  map[string]objective.Record
	rawName  map[string]objective.Record
	normCode map[string]objective.Record
	normName map[string]objective.Record

	totals map[string]int64
	groups int
}

// BuildIndex indexes the candidates. With StrategySum the per-record maps
// are still built so that agencies missing from totals can fall back to
// a single objective.
func BuildIndex(records []objective.Record, strategy Strategy) *Index {
	ix := &Index{
		strategy: strategy,
		records:  len(records),
		rawCode:  make(map[string]objective.Record),
		rawName:  make(map[string]objective.Record),
		normCode: make(map[string]objective.Record),
		normName: make(map[string]objective.Record),
	}
	for _, r := range records {
		if code := Raw(r.AgencyCode); code != "" {
			ix.rawCode[code] = r
		}
		if name := Raw(r.AgencyName); name != "" {
			ix.rawName[name] = r
		}
		if code := Normalize(r.AgencyCode); code != "" {
			ix.normCode[code] = r
		}
		if name := Normalize(r.AgencyName); name != "" {
			ix.normName[name] = r
		}
	}

	if strategy == StrategySum {
		groups := GroupTotals(records)
		ix.groups = len(groups)
		ix.totals = make(map[string]int64, 2*len(groups))
		for _, g := range groups {
			if k := Normalize(g.Code); k != "" {
				ix.totals[k] = g.Total
			}
			if k := Normalize(g.Name); k != "" {
				ix.totals[k] = g.Total
			}
		}
	}
	return ix
}

// Records is the number of candidates indexed.
func (ix *Index) Records() int { return ix.records }

// Groups is the number of aggregated groups (0 unless StrategySum).
func (ix *Index) Groups() int { return ix.groups }

// Resolve runs the matching cascade for one agency identity.
func (ix *Index) Resolve(id Identity) (Match, bool) {
	if ix.strategy == StrategySum {
		for _, k := range []string{id.NormCode, id.NormName} {
			if k == "" {
				continue
			}
			if total, ok := ix.totals[k]; ok {
				return Match{Value: total, Step: StepAggregate, Key: k}, true
			}
		}
	}

	exact := []struct {
		lookup string
		table map[string]objective.Record
		step  Step
	}{
		{id.Code, ix.rawCode, StepRawCode},
		{id.Name, ix.rawName, StepRawName},
		{id.NormCode, ix.normCode, StepNormCode},
		{id.NormName, ix.normName, StepNormName},
		{id.Code, ix.rawName, StepCrossCode},
		{id.Name, ix.rawCode, StepCrossName},
	}
	for _, e := range exact {
		if e.lookup == "" {
			continue
		}
		if r, ok := e.table[e.lookup]; ok {
			return Match{Value: r.Value, Step: e.step, Key: e.lookup}, true
		}
	}

	if m, ok := partial(id.NormCode, ix.normCode, StepPartialCode); ok {
		return m, true
	}
	return partial(id.NormName, ix.normName, StepPartialName)
}

// partial iterates table in map order; see SUBSTRING TIE-BREAK above.
func partial(lookup string, table map[string]objective.Record, step Step) (Match, bool) {
	if len(lookup) < minPartialLen {
		return Match{}, false
	}
	for k, r := range table {
		if len(k) < minPartialLen {
			continue
		}
		if containsEither(lookup, k) {
			return Match{Value: r.Value, Step: step, Key: k}, true
		}
	}
	return Match{}, false
}

func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// =============================================================================
// GROUP TOTALS - Sum of objectives per agency key
// =============================================================================

// GroupTotal is the summed value of the objectives sharing one agency key.
type GroupTotal struct {
	Key   string // raw code, else raw name
	Code  string
	Name  string
	Total int64
	Count int
}

// GroupTotals groups records by raw code (else raw name) and sums values,
// in order of first appearance. Records with neither key are skipped.
// Code and Name of a group come from its first record.
func GroupTotals(records []objective.Record) []GroupTotal {
	var out []GroupTotal
	pos := make(map[string]int)
	for _, r := range records {
		code, name := Raw(r.AgencyCode), Raw(r.AgencyName)
		key := code
		if key == "" {
			key = name
		}
		if key == "" {
			continue
		}
		i, ok := pos[key]
		if !ok {
			i = len(out)
			pos[key] = i
			out = append(out, GroupTotal{Key: key, Code: code, Name: name})
		}
		out[i].Total += r.Value
		out[i].Count++
	}
	return out
}
