package normalize

import (
	"math"

	"github.com/username/divledger/src/profiles"
)

// descColumnPreference is the fixed order in which a description-like
// source column is located for split-rule matching.
var descColumnPreference = []string{"Description", "Activity", "Memo", "description", "DESC"}

// ApplySplitRules reclassifies composite rows in place. A row whose
// description matches a rule has |gross_amount| moved into the rule's
// target bucket and gross_amount zeroed. Rules run in declaration order;
// when both a tax and a fee rule match the same row, the later rule's
// zero-write is what governs gross_amount's final value. That ordering is
// load-bearing for compatibility with historical output.
func ApplySplitRules(rows []*MappedRow, header []string, p *profiles.Profile) {
	rules := p.Mapping.Rules
	if len(rules) == 0 {
		return
	}

	descCol := findDescColumn(header)

	for _, mr := range rows {
		row := mr.Row
		if row.WithholdingTax == nil {
			zero := 0.0
			row.WithholdingTax = &zero
		}
		if row.Fees == nil {
			zero := 0.0
			row.Fees = &zero
		}
		if descCol == "" {
			continue
		}
		desc := mr.Source[descCol]
		for _, rule := range rules {
			if !rule.Matches(desc) {
				continue
			}
			moved := 0.0
			if row.GrossAmount != nil {
				moved = math.Abs(*row.GrossAmount)
			}
			zero := 0.0
			switch rule.Target {
			case "withholding_tax":
				row.WithholdingTax = &moved
			case "fees":
				row.Fees = &moved
			}
			row.GrossAmount = &zero
		}
	}
}

func findDescColumn(header []string) string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	for _, cand := range descColumnPreference {
		if present[cand] {
			return cand
		}
	}
	return ""
}
