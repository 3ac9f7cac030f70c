package normalize

import (
	"github.com/shopspring/decimal"

	"github.com/username/divledger/src/logger"
	"github.com/username/divledger/src/models"
	"github.com/username/divledger/src/parsers"
	"github.com/username/divledger/src/profiles"
)

// Result carries both output streams of one normalized file plus the
// per-stage counts surfaced in diagnostics.
type Result struct {
	Accepted []*models.CanonicalRow
	Rejected []models.RejectedRow
	RowsIn   int
}

// Normalizer composes the mapping, splitting, validation, and hashing
// stages for one profile. Rows move through a fixed lifecycle:
// mapped, split, validated, hashed, then terminally accepted or rejected.
type Normalizer struct {
	profile *profiles.Profile
	mapper  *Mapper
}

func New(p *profiles.Profile) *Normalizer {
	return &Normalizer{profile: p, mapper: NewMapper(p)}
}

// Normalize runs the full per-row pipeline over an already-read file.
// brokerAccount is the identity extracted from the file preamble; it fills
// account fields the mapping left empty. Per-row failures never abort the
// batch; only the pay_date gate rejects a row.
func (n *Normalizer) Normalize(file *parsers.RawFile, sourceFile, brokerAccount string) *Result {
	mapped := n.mapper.MapFile(file, sourceFile)
	ApplySplitRules(mapped, file.Header, n.profile)

	res := &Result{RowsIn: len(mapped)}
	for _, mr := range mapped {
		row := mr.Row

		if row.BrokerAccount == "" {
			row.BrokerAccount = brokerAccount
		}
		if row.AccountID == "" {
			row.AccountID = brokerAccount
		}

		// The one hard per-row gate: every downstream consumer needs a
		// valid pay_date. Reject and stop building this row.
		if row.PayDate == nil {
			res.Rejected = append(res.Rejected, models.RejectedRow{
				SourceFile: sourceFile,
				LineNo:     row.LineNo,
				Row:        mr.Source,
				Reason:     models.ReasonBadPayDate,
			})
			continue
		}

		if !mr.NetExplicit {
			computeNet(row)
		}

		// Required fields other than pay_date stay nil when absent; that
		// is a soft gap, not a rejection.
		for _, req := range n.profile.Mapping.Required {
			if req != "pay_date" && row.FieldString(req) == "" {
				logger.L.Debug("Required field missing on accepted row",
					"field", req, "sourceFile", sourceFile, "line", row.LineNo)
			}
		}

		row.RowHash = RowHash(row, n.profile.Mapping.HashFields)
		res.Accepted = append(res.Accepted, row)
	}

	logger.L.Info("Normalization stage complete",
		"sourceFile", sourceFile,
		"profile", n.profile.Name,
		"rowsIn", res.RowsIn,
		"accepted", len(res.Accepted),
		"rejected", len(res.Rejected))
	return res
}

// computeNet fills net_amount = gross - withholding_tax - fees, treating
// absent components as zero. Once set it is never recomputed.
func computeNet(row *models.CanonicalRow) {
	net := decimalOrZero(row.GrossAmount).
		Sub(decimalOrZero(row.WithholdingTax)).
		Sub(decimalOrZero(row.Fees))
	f := net.InexactFloat64()
	row.NetAmount = &f
}

func decimalOrZero(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}
