package profiles

import (
	"strings"
	"testing"
)

const twoProfilesYAML = `
profiles:
  - name: etrade
    when:
      filename_glob: "etrade-*.csv"
      header_contains: ["TransactionDate", "Amount"]
    reader:
      negative_formats: [paren]
    mapping:
      columns:
        TransactionDate: pay_date
        Amount: gross_amount
  - name: generic
    when:
      header_contains: ["pay_date"]
    reader:
      negative_formats: [minus]
    mapping:
      columns:
        pay_date: pay_date
`

func mustLoad(t *testing.T, doc string) *Registry {
	t.Helper()
	reg, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("loading profiles: %v", err)
	}
	return reg
}

func TestLoadParsesProfilesInOrder(t *testing.T) {
	reg := mustLoad(t, twoProfilesYAML)
	ps := reg.Profiles()
	if len(ps) != 2 {
		t.Fatalf("want 2 profiles, got %d", len(ps))
	}
	if ps[0].Name != "etrade" || ps[1].Name != "generic" {
		t.Fatalf("declaration order not preserved: %s, %s", ps[0].Name, ps[1].Name)
	}
	if ps[0].Reader.NegativeFormat() != "paren" {
		t.Fatalf("want paren negative format, got %q", ps[0].Reader.NegativeFormat())
	}
}

func TestLoadRejectsEmptyDocument(t *testing.T) {
	if _, err := Load(strings.NewReader("profiles: []")); err == nil {
		t.Fatalf("want error for empty profile list")
	}
}

func TestLoadRejectsUnsupportedExpression(t *testing.T) {
	doc := `
profiles:
  - name: bad
    reader:
      negative_formats: [minus]
    mapping:
      columns:
        PayDate: pay_date
      derived:
        reinvested: "regex(Reinvest)"
`
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatalf("unsupported derived expression must fail at load time")
	}
}

func TestLoadRejectsBadSplitTarget(t *testing.T) {
	doc := `
profiles:
  - name: bad
    reader:
      negative_formats: [minus]
    mapping:
      columns:
        PayDate: pay_date
      rules:
        - target: gross_amount
          match: "Fee"
`
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatalf("split rule targeting gross_amount must fail at load time")
	}
}

func TestLoadRejectsBadNegativeFormat(t *testing.T) {
	doc := `
profiles:
  - name: bad
    reader:
      negative_formats: [underline]
    mapping:
      columns:
        PayDate: pay_date
`
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatalf("unknown negative format must fail at load time")
	}
}

func TestLoadRejectsUnknownHashField(t *testing.T) {
	doc := `
profiles:
  - name: bad
    reader:
      negative_formats: [minus]
    mapping:
      columns:
        PayDate: pay_date
      hash_fields: [broker, symbol, pay_dt]
`
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatalf("misspelled hash field must fail at load time")
	}
}

func TestLoadAcceptsCanonicalHashFields(t *testing.T) {
	doc := `
profiles:
  - name: pinned
    reader:
      negative_formats: [minus]
    mapping:
      columns:
        PayDate: pay_date
      hash_fields:
        [broker, broker_account, symbol, pay_date, net_amount, source_file, line_no]
`
	reg := mustLoad(t, doc)
	if got := len(reg.Profiles()[0].Mapping.HashFields); got != 7 {
		t.Fatalf("want 7 pinned hash fields, got %d", got)
	}
}

func TestLoadRejectsNonHashableColumns(t *testing.T) {
	// These columns have no stable text form at hash time.
	for _, field := range []string{"row_hash", "created_ts", "notes"} {
		doc := `
profiles:
  - name: bad
    reader:
      negative_formats: [minus]
    mapping:
      columns:
        PayDate: pay_date
      hash_fields: [` + field + `]
`
		if _, err := Load(strings.NewReader(doc)); err == nil {
			t.Fatalf("hash field %q must fail at load time", field)
		}
	}
}

func TestParseExprForms(t *testing.T) {
	expr, err := ParseExpr("contains(Reinvest)")
	if err != nil {
		t.Fatalf("single-argument form: %v", err)
	}
	if expr.Needle != "Reinvest" {
		t.Fatalf("want needle Reinvest, got %q", expr.Needle)
	}

	expr, err = ParseExpr(`contains(Description, 'Reinvest')`)
	if err != nil {
		t.Fatalf("legacy two-argument form: %v", err)
	}
	if expr.Needle != "Reinvest" {
		t.Fatalf("want needle Reinvest from legacy form, got %q", expr.Needle)
	}

	if _, err := ParseExpr("contains()"); err == nil {
		t.Fatalf("empty needle must be rejected")
	}
}

func TestExprEvalScansAllColumns(t *testing.T) {
	expr, err := ParseExpr("contains(Reinvest)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !expr.Eval(map[string]string{"Memo": "DIVIDEND REINVESTMENT"}) {
		t.Fatalf("match must be case-insensitive across any column")
	}
	if expr.Eval(map[string]string{"Memo": "Ordinary Dividend"}) {
		t.Fatalf("unexpected match")
	}
}

func TestSplitRuleAlternatives(t *testing.T) {
	rule := SplitRule{Target: "fees", Match: "ADR Fee|Fee"}
	for _, desc := range []string{"ADR FEE", "Custody fee charged", "fee"} {
		if !rule.Matches(desc) {
			t.Fatalf("want match for %q", desc)
		}
	}
	if rule.Matches("Dividend") {
		t.Fatalf("unexpected match for Dividend")
	}
}

func TestSelectFirstMatchIsDeterministic(t *testing.T) {
	reg := mustLoad(t, twoProfilesYAML)
	header := []string{"TransactionDate", "Amount", "pay_date"}
	for i := 0; i < 5; i++ {
		p := reg.Select("etrade-2024.csv", header)
		if p == nil || p.Name != "etrade" {
			t.Fatalf("iteration %d: want etrade (first match), got %v", i, p)
		}
	}
}

func TestSelectGlobAndHeaderMustBothPass(t *testing.T) {
	reg := mustLoad(t, twoProfilesYAML)

	// Glob matches but header predicate fails: falls through to generic,
	// whose header predicate also fails here.
	if p := reg.Select("etrade-2024.csv", []string{"Date", "Value"}); p != nil {
		t.Fatalf("want no match, got %s", p.Name)
	}

	// Header matches the second profile only.
	p := reg.Select("statement.csv", []string{"pay_date", "gross_amount"})
	if p == nil || p.Name != "generic" {
		t.Fatalf("want generic, got %v", p)
	}
}

func TestSelectUsesBaseName(t *testing.T) {
	reg := mustLoad(t, twoProfilesYAML)
	p := reg.Select("/inbox/etrade/etrade-9153.csv", []string{"TransactionDate", "Amount"})
	if p == nil || p.Name != "etrade" {
		t.Fatalf("glob must apply to the base name, got %v", p)
	}
}

func TestSelectNoMatchReturnsNil(t *testing.T) {
	reg := mustLoad(t, twoProfilesYAML)
	if p := reg.Select("unknown.csv", []string{"Foo", "Bar"}); p != nil {
		t.Fatalf("want nil for unclassifiable file, got %s", p.Name)
	}
}
