package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang-options/config"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/internal/strategy"
)

// NoOptionsMessage prefixes every empty-selection explanation.
const NoOptionsMessage = "No suitable options found — check DTE/delta/volume/OI/spread"

type optionFilter struct {
	name   string
	detail string
	keep   func(c dto.OptionContract) bool
}

// OptionSelector picks one contract from a chain. It is stateless.
type OptionSelector struct{}

func NewOptionSelector() *OptionSelector {
	return &OptionSelector{}
}

// Constraints merges an automation's window with the liquidity thresholds.
func (s *OptionSelector) Constraints(a *model.Automation, variant strategy.Variant, liquidity config.Selector) dto.SelectionConstraints {
	return dto.SelectionConstraints{
		ContractType:    variant.ContractType,
		MinDTE:          a.MinDTE,
		PreferredDTE:    a.PreferredDTE,
		MaxDTE:          a.MaxDTE,
		TargetDelta:     a.TargetDelta,
		MinDelta:        a.MinDelta,
		MaxDelta:        a.MaxDelta,
		MinVolume:       liquidity.MinVolume,
		MinOpenInterest: liquidity.MinOpenInterest,
		MaxSpreadPct:    liquidity.MaxSpreadPct,
	}
}

func (s *OptionSelector) filters(cons dto.SelectionConstraints, now time.Time) []optionFilter {
	filters := []optionFilter{
		{
			name:   "contract type",
			detail: fmt.Sprintf("needs %s contracts", cons.ContractType),
			keep:   func(c dto.OptionContract) bool { return c.ContractType == cons.ContractType },
		},
		{
			name:   "DTE",
			detail: fmt.Sprintf("window [%d, %d] days", cons.MinDTE, cons.MaxDTE),
			keep: func(c dto.OptionContract) bool {
				dte := c.DTE(now)
				return dte >= cons.MinDTE && dte <= cons.MaxDTE
			},
		},
	}

	if cons.MinDelta != nil || cons.MaxDelta != nil {
		lo, hi := -1.0, 1.0
		if cons.MinDelta != nil {
			lo = *cons.MinDelta
		}
		if cons.MaxDelta != nil {
			hi = *cons.MaxDelta
		}
		filters = append(filters, optionFilter{
			name:   "delta",
			detail: fmt.Sprintf("range [%.2f, %.2f]", lo, hi),
			keep:   func(c dto.OptionContract) bool { return c.Delta >= lo && c.Delta <= hi },
		})
	}

	filters = append(filters,
		optionFilter{
			name:   "volume",
			detail: fmt.Sprintf("minimum %d", cons.MinVolume),
			keep:   func(c dto.OptionContract) bool { return c.Volume >= cons.MinVolume },
		},
		optionFilter{
			name:   "open interest",
			detail: fmt.Sprintf("minimum %d", cons.MinOpenInterest),
			keep:   func(c dto.OptionContract) bool { return c.OpenInterest >= cons.MinOpenInterest },
		},
	)

	if cons.MaxSpreadPct > 0 {
		filters = append(filters, optionFilter{
			name:   "spread",
			detail: fmt.Sprintf("maximum %.1f%% of mid", cons.MaxSpreadPct),
			keep:   func(c dto.OptionContract) bool { return c.SpreadPct() <= cons.MaxSpreadPct },
		})
	}
	return filters
}

func applyFilter(chain []dto.OptionContract, f optionFilter) []dto.OptionContract {
	out := make([]dto.OptionContract, 0, len(chain))
	for _, c := range chain {
		if f.keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Select applies the filters in order and returns the best ranked survivor:
// closest to the preferred DTE and target delta, then the most liquid.
func (s *OptionSelector) Select(chain []dto.OptionContract, cons dto.SelectionConstraints, now time.Time) (dto.OptionContract, error) {
	candidates := chain
	for _, f := range s.filters(cons, now) {
		candidates = applyFilter(candidates, f)
	}
	if len(candidates) == 0 {
		return dto.OptionContract{}, dto.ErrNoSuitableOption
	}

	dteWidth := math.Max(1, float64(cons.MaxDTE-cons.MinDTE))
	score := func(c dto.OptionContract) float64 {
		sc := math.Abs(float64(c.DTE(now)-cons.PreferredDTE)) / dteWidth
		if cons.TargetDelta != nil {
			sc += math.Abs(c.Delta - *cons.TargetDelta)
		}
		return sc
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		sa, sb := score(a), score(b)
		if sa != sb {
			return sa < sb
		}
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		if a.OpenInterest != b.OpenInterest {
			return a.OpenInterest > b.OpenInterest
		}
		return a.Symbol < b.Symbol
	})
	return candidates[0], nil
}

// ExplainEmpty names the filter responsible for an empty selection: the first
// one that empties the chain on its own, otherwise the one that empties the
// running set.
func (s *OptionSelector) ExplainEmpty(chain []dto.OptionContract, cons dto.SelectionConstraints, now time.Time) string {
	if len(chain) == 0 {
		return NoOptionsMessage + " (option chain is empty)"
	}

	filters := s.filters(cons, now)
	for _, f := range filters {
		if len(applyFilter(chain, f)) == 0 {
			return fmt.Sprintf("%s (%s filter excludes all %d contracts: %s)", NoOptionsMessage, f.name, len(chain), f.detail)
		}
	}

	candidates := chain
	for _, f := range filters {
		before := len(candidates)
		candidates = applyFilter(candidates, f)
		if len(candidates) == 0 {
			return fmt.Sprintf("%s (%s filter excludes the remaining %d contracts: %s)", NoOptionsMessage, f.name, before, f.detail)
		}
	}
	return ""
}
