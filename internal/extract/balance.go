package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/payload"
)

// BalanceTiers is the ordered financial line-item strategy list. Tiers are
// mutually exclusive: the first tier yielding rows wins.
var BalanceTiers = []Tier[model.LineItem]{
	{Name: "aggregate_sections", Run: aggregateSections},
	{Name: "legacy_groups", Run: legacyGroups},
	{Name: "code_pattern_scan", Run: codePatternScan},
}

// aggregateSectionKeys maps named statement sections to statements, in
// priority order per statement.
var aggregateSectionKeys = []struct {
	statement model.Statement
	keys      []string
}{
	{model.StatementAssets, []string{"assetsAggregateValues", "assets"}},
	{model.StatementLiabilities, []string{"liabilitiesAggregateValues", "liabilities"}},
	{model.StatementIncome, []string{"incomeStatementAggregateValues", "profitAndLossAggregateValues", "incomeStatement"}},
}

var legacyGroupKeys = keySet([]string{
	"debts", "credits", "receivables", "payables", "productionValue", "productionCosts",
	"netEquity", "equity", "fixedAssets", "currentAssets", "inventories", "liquidity",
	"provisions", "financialIncome", "financialCharges", "taxes", "revenues", "costs",
	"accruals", "deferrals", "severance", "profitLoss",
})

// Keyword lists used to guess the statement of a legacy group, tested in
// liabilities, income, assets order.
var (
	liabilityKeywords = []string{"debt", "payable", "equity", "provision", "liabilit", "severance", "fund", "debiti", "patrimonio"}
	incomeKeywords    = []string{"production", "revenue", "cost", "income", "charge", "profit", "loss", "tax", "ricavi", "costi", "proventi", "oneri"}
	assetKeywords     = []string{"asset", "credit", "receivable", "inventor", "liquid", "cash", "crediti"}
)

var (
	codePattern = regexp.MustCompile(`^[A-Z]{2,4}[0-9]{2,4}$`)
	yearPattern = regexp.MustCompile(`(?:^|[^0-9])(20[0-9]{2})(?:[^0-9]|$)`)
)

// LineItems extracts financial line items.
func LineItems(doc Doc, opts Options) Outcome[model.LineItem] {
	out := RunTiers(doc, opts, BalanceTiers)
	out.Rows, out.Warnings = dedupeLineItems(out.Rows, out.Warnings)
	return out
}

// GuessStatement classifies a legacy group name by keyword.
func GuessStatement(name string) model.Statement {
	n := strings.ToLower(name)
	for _, group := range []struct {
		statement model.Statement
		keywords  []string
	}{
		{model.StatementLiabilities, liabilityKeywords},
		{model.StatementIncome, incomeKeywords},
		{model.StatementAssets, assetKeywords},
	} {
		for _, kw := range group.keywords {
			if strings.Contains(n, kw) {
				return group.statement
			}
		}
	}
	return model.StatementAssets
}

// StatementForCode guesses the statement of a pattern-matched code from its prefix.
func StatementForCode(code string) model.Statement {
	switch {
	case strings.HasPrefix(code, "CE"), strings.HasPrefix(code, "E"):
		return model.StatementIncome
	case strings.HasPrefix(code, "SPP"), strings.HasPrefix(code, "P"):
		return model.StatementLiabilities
	}
	return model.StatementAssets
}

// balanceBlock is one per-year balance object with its inherited defaults.
type balanceBlock struct {
	obj      gjson.Result
	path     payload.Path
	year     int
	currency string
	yearErr  string
}

func balanceBlocks(doc Doc, opts Options) []balanceBlock {
	v, key, ok := payload.First(doc.Root, balanceBlockKeys...)
	if !ok {
		return nil
	}
	docYear, docYearErr := yearOf(doc.Root)
	docCurrency := currencyOf(doc.Root, opts.DefaultCurrency)

	base := payload.Path{}.Child(key)
	var objs []gjson.Result
	var paths []payload.Path
	switch {
	case v.IsObject():
		objs, paths = []gjson.Result{v}, []payload.Path{base}
	case v.IsArray():
		for i, el := range v.Array() {
			if el.IsObject() {
				objs = append(objs, el)
				paths = append(paths, base.Index(i))
			}
		}
	}

	out := make([]balanceBlock, 0, len(objs))
	for i, obj := range objs {
		b := balanceBlock{obj: obj, path: paths[i], year: docYear, yearErr: docYearErr}
		if y, errText := yearOf(obj); y != 0 || errText != "" {
			b.year, b.yearErr = y, errText
		}
		b.currency = currencyOf(obj, docCurrency)
		if b.year == 0 && b.yearErr == "" {
			b.year = opts.fallbackYear()
		}
		out = append(out, b)
	}
	return out
}

func aggregateSections(doc Doc, opts Options) ([]model.LineItem, []model.Warning) {
	var (
		items    []model.LineItem
		warnings []model.Warning
	)
	for _, b := range balanceBlocks(doc, opts) {
		for _, sec := range aggregateSectionKeys {
			v, key, ok := payload.First(b.obj, sec.keys...)
			if !ok {
				continue
			}
			it, w := parseSection(v, b.path.Child(key), sec.statement, b, "aggregate_sections")
			items = append(items, it...)
			warnings = append(warnings, w...)
		}
	}
	return items, warnings
}

func legacyGroups(doc Doc, opts Options) ([]model.LineItem, []model.Warning) {
	var (
		items    []model.LineItem
		warnings []model.Warning
	)
	for _, b := range balanceBlocks(doc, opts) {
		b.obj.ForEach(func(k, v gjson.Result) bool {
			if !isLegacyGroup(k.Str) || payload.IsScalar(v) {
				return true
			}
			it, w := parseSection(v, b.path.Child(k.Str), GuessStatement(k.Str), b, "legacy_groups")
			items = append(items, it...)
			warnings = append(warnings, w...)
			return true
		})
	}
	return items, warnings
}

func isLegacyGroup(key string) bool {
	return legacyGroupKeys[strings.ToLower(key)] || strings.HasSuffix(key, "Detail") || strings.HasSuffix(key, "Details")
}

// codePatternScan walks the whole document for code-shaped keys with numeric values.
func codePatternScan(doc Doc, opts Options) ([]model.LineItem, []model.Warning) {
	docYear, _ := yearOf(doc.Root)
	if docYear == 0 {
		for _, b := range balanceBlocks(doc, opts) {
			if b.yearErr == "" {
				docYear = b.year
				break
			}
		}
	}
	if docYear == 0 {
		docYear = opts.fallbackYear()
	}
	currency := currencyOf(doc.Root, opts.DefaultCurrency)

	var items []model.LineItem
	payload.Walk(doc.Root, func(path payload.Path, v gjson.Result) bool {
		code := path.Key()
		if !codePattern.MatchString(code) {
			return true
		}
		amount, ok := payload.Number(v)
		if !ok {
			return true
		}
		year := yearFromPath(path)
		if year == 0 {
			year = docYear
		}
		items = append(items, model.LineItem{
			FiscalYear:    year,
			Statement:     StatementForCode(code),
			Code:          code,
			Amount:        amount,
			Currency:      currency,
			EffectiveDate: FiscalYearEnd(year),
			SourceTier:    "code_pattern_scan",
			Path:          path.String(),
		})
		return false
	})
	return items, nil
}

// parseSection reads a section shaped either as an array of
// {code, value|amount, ...} objects or as a code -> amount map.
func parseSection(v gjson.Result, path payload.Path, statement model.Statement, b balanceBlock, tier string) ([]model.LineItem, []model.Warning) {
	var (
		items    []model.LineItem
		warnings []model.Warning
	)
	add := func(p payload.Path, code string, amountVal gjson.Result, entry gjson.Result) {
		item := model.LineItem{
			Statement:  statement,
			Code:       strings.TrimSpace(code),
			FiscalYear: b.year,
			Currency:   b.currency,
			SourceTier: tier,
			Path:       p.String(),
		}
		yearErr := b.yearErr
		if entry.IsObject() {
			if y, errText := yearOf(entry); y != 0 || errText != "" {
				item.FiscalYear, yearErr = y, errText
			}
			if cur, ok := payload.FirstText(entry, currencyKeys...); ok {
				item.Currency = strings.ToUpper(cur)
			}
			item.Description, _ = payload.FirstText(entry, descriptionKeys...)
		}

		row := map[string]any{"path": item.Path, "code": item.Code}
		switch {
		case item.Code == "":
			warnings = append(warnings, model.Warning{Table: model.TableLineItems, Reason: "line item without code", Row: row})
			return
		case yearErr != "":
			warnings = append(warnings, model.Warning{Table: model.TableLineItems, Reason: yearErr, Row: row})
			return
		case item.FiscalYear == 0:
			warnings = append(warnings, model.Warning{Table: model.TableLineItems, Reason: "line item without fiscal year", Row: row})
			return
		}
		amount, ok := payload.Number(amountVal)
		if !ok {
			row["value"] = amountVal.Raw
			warnings = append(warnings, model.Warning{Table: model.TableLineItems, Reason: "non-numeric amount", Row: row})
			return
		}
		item.Amount = amount
		item.EffectiveDate = FiscalYearEnd(item.FiscalYear)
		items = append(items, item)
	}

	switch {
	case v.IsArray():
		for i, el := range v.Array() {
			if !el.IsObject() {
				continue
			}
			code, _ := payload.FirstText(el, codeKeys...)
			amountVal, _, _ := payload.First(el, amountKeys...)
			add(path.Index(i), code, amountVal, el)
		}
	case v.IsObject():
		v.ForEach(func(k, val gjson.Result) bool {
			p := path.Child(k.Str)
			if val.IsObject() {
				amountVal, _, _ := payload.First(val, amountKeys...)
				code := k.Str
				if c, ok := payload.FirstText(val, codeKeys...); ok {
					code = c
				}
				add(p, code, amountVal, val)
				return true
			}
			add(p, k.Str, val, gjson.Result{})
			return true
		})
	}
	return items, warnings
}

// yearOf reads a year field. A present but unusable value is reported as an
// error text so the caller can drop the row instead of guessing.
func yearOf(obj gjson.Result) (int, string) {
	v, key, ok := payload.First(obj, yearKeys...)
	if !ok {
		return 0, ""
	}
	y, ok := payload.Int(v)
	if !ok || y < 1900 || y > 2999 {
		return 0, fmt.Sprintf("invalid fiscal year %s=%s", key, v.Raw)
	}
	return y, ""
}

func currencyOf(obj gjson.Result, fallback string) string {
	if s, ok := payload.FirstText(obj, currencyKeys...); ok {
		return strings.ToUpper(s)
	}
	return fallback
}

// yearFromPath returns the first 20xx year found in a path segment above
// the code key itself.
func yearFromPath(path payload.Path) int {
	if len(path) == 0 {
		return 0
	}
	for _, seg := range path[:len(path)-1] {
		if m := yearPattern.FindStringSubmatch(seg); m != nil {
			y, _ := strconv.Atoi(m[1])
			return y
		}
	}
	return 0
}

// dedupeLineItems keeps the last item per natural key.
func dedupeLineItems(items []model.LineItem, warnings []model.Warning) ([]model.LineItem, []model.Warning) {
	type key struct {
		year      int
		statement model.Statement
		code      string
	}
	index := make(map[key]int, len(items))
	out := make([]model.LineItem, 0, len(items))
	for _, it := range items {
		k := key{it.FiscalYear, it.Statement, it.Code}
		if i, ok := index[k]; ok {
			warnings = append(warnings, model.Warning{
				Table:  model.TableLineItems,
				Reason: "duplicate line item key in document, last value kept",
				Row:    map[string]any{"path": out[i].Path, "code": it.Code, "fiscal_year": it.FiscalYear},
			})
			out[i] = it
			continue
		}
		index[k] = len(out)
		out = append(out, it)
	}
	return out, warnings
}
