package extract

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/payload"
)

// classificationFields maps sub-fields of the classification block to types.
var classificationFields = []struct {
	key  string
	kind string
}{
	{"ateco", model.ClassificationPrimary},
	{"secondaryAteco", model.ClassificationSecondary},
	{"ateco2007", model.ClassificationATECO2007},
	{"ateco2022", model.ClassificationATECO2022},
}

var classificationKnownKeys = keySet(codeKeys, descriptionKeys, dateKeys())

// ClassificationTiers is a single tier: the block layout is stable across vendors.
var ClassificationTiers = []Tier[model.Classification]{
	{Name: "classification_block", Run: classificationBlock},
}

// Classifications extracts ATECO-style industry codes.
func Classifications(doc Doc, opts Options) Outcome[model.Classification] {
	return RunTiers(doc, opts, ClassificationTiers)
}

func classificationBlock(doc Doc, _ Options) ([]model.Classification, []model.Warning) {
	var (
		blk   gjson.Result
		found bool
	)
	for _, c := range companyBlocks(doc.Root) {
		if v, _, ok := payload.First(c, classificationBlockKeys...); ok {
			blk, found = v, true
			break
		}
	}
	if !found {
		return nil, nil
	}

	// A bare code stands for the primary classification.
	if !blk.IsObject() || isCodeObject(blk) {
		c, ok := classification(blk, model.ClassificationPrimary, doc.Date)
		if !ok {
			return nil, []model.Warning{{Table: model.TableClassifications, Reason: "unreadable classification", Row: blk.Raw}}
		}
		return []model.Classification{c}, nil
	}

	blockDate := EffectiveDate(blk, doc.Date)
	var (
		out      []model.Classification
		warnings []model.Warning
	)
	for _, f := range classificationFields {
		v, ok := payload.Get(blk, f.key)
		if !ok {
			continue
		}
		values := []gjson.Result{v}
		if v.IsArray() {
			values = v.Array()
		}
		for _, item := range values {
			c, ok := classification(item, f.kind, blockDate)
			if !ok {
				warnings = append(warnings, model.Warning{Table: model.TableClassifications, Reason: "missing classification code", Row: item.Raw})
				continue
			}
			out = append(out, c)
		}
	}
	return out, warnings
}

func classification(v gjson.Result, kind string, fallback time.Time) (model.Classification, bool) {
	code, desc, ok := payload.CodeDescription(v)
	if !ok || code == "" {
		return model.Classification{}, false
	}
	c := model.Classification{
		ClassificationType: kind,
		Code:               code,
		Description:        desc,
		EffectiveDate:      fallback,
	}
	if v.IsObject() {
		c.EffectiveDate = EffectiveDate(v, fallback)
		c.Extra = extraScalars(v, classificationKnownKeys)
		c.Raw = json.RawMessage(v.Raw)
	} else {
		c.Raw, _ = json.Marshal(map[string]string{"code": code})
	}
	return c, true
}

func isCodeObject(v gjson.Result) bool {
	_, _, hasCode := payload.First(v, codeKeys...)
	return hasCode
}
