// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import "sort"

// diversityCapFraction bounds the share of the final selection that
// may be test/doc/config files, unless the task itself targets them.
const diversityCapFraction = 0.20

// Selection is one admitted candidate in the final plan output.
type Selection struct {
	Path            string  `json:"file_path"`
	Score           float64 `json:"score"`
	EstimatedTokens int     `json:"estimated_tokens"`
	Rationale       string  `json:"rationale"`
	OverBudget      bool    `json:"over_budget"`
}

// BudgetReport summarizes Stage 5's knapsack run.
type BudgetReport struct {
	TokenBudget    int `json:"token_budget"`
	TokensUsed     int `json:"tokens_used"`
	CandidateCount int `json:"candidate_count"`
	SelectedCount  int `json:"selected_count"`
	DroppedCount   int `json:"dropped_count"`
}

// AssembleBudget runs Stage 5: sort by utility (final_score /
// max(normalized_tokens, 0.1)), admit greedily while the remaining
// budget allows, enforce the diversity cap, and guarantee at least
// one selection even when everything is over budget.
func AssembleBudget(candidates []*Candidate, tokenBudget int, taskTargetsTests bool) ([]Selection, []Selection, BudgetReport) {
	ordered := make([]*Candidate, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		ui, uj := utility(ordered[i]), utility(ordered[j])
		if ui != uj {
			return ui > uj
		}
		return ordered[i].File.Path < ordered[j].File.Path
	})

	var selected, dropped []Selection
	remaining := tokenBudget
	diversityUsed := 0
	maxDiversity := int(float64(len(ordered)) * diversityCapFraction)

	for _, c := range ordered {
		isDiversityLimited := (c.IsTest || c.IsDocOrCfg) && !taskTargetsTests
		if isDiversityLimited && diversityUsed >= maxDiversity && len(selected) > 0 {
			c.Reason = "noise-filtered"
			dropped = append(dropped, toSelection(c, false))
			continue
		}
		if c.EstTokens <= remaining {
			remaining -= c.EstTokens
			if isDiversityLimited {
				diversityUsed++
			}
			c.Reason = "admitted"
			selected = append(selected, toSelection(c, false))
			continue
		}
		c.Reason = "over budget"
		dropped = append(dropped, toSelection(c, false))
	}

	// Min-1 rescue: if nothing fit, force-admit the single
	// highest-utility candidate and mark it over-budget in the trace.
	if len(selected) == 0 && len(ordered) > 0 {
		best := ordered[0]
		best.Reason = "admitted (over-budget rescue)"
		selected = append(selected, toSelection(best, true))
		remaining = tokenBudget - best.EstTokens

		var rest []Selection
		for _, s := range dropped {
			if s.Path != best.File.Path {
				rest = append(rest, s)
			}
		}
		dropped = rest
	}

	report := BudgetReport{
		TokenBudget:    tokenBudget,
		TokensUsed:     tokenBudget - remaining,
		CandidateCount: len(candidates),
		SelectedCount:  len(selected),
		DroppedCount:   len(dropped),
	}
	return selected, dropped, report
}

func utility(c *Candidate) float64 {
	normTokens := float64(c.EstTokens) / 1000.0
	if normTokens < 0.1 {
		normTokens = 0.1
	}
	return c.Final / normTokens
}

func toSelection(c *Candidate, overBudget bool) Selection {
	return Selection{
		Path:            c.File.Path,
		Score:           c.Final,
		EstimatedTokens: c.EstTokens,
		Rationale:       c.Reason,
		OverBudget:      overBudget,
	}
}
