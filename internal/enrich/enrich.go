// Package enrich attaches legend descriptions to financial line items and
// counts the codes the legend does not know.
package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/registry-ingest/internal/model"
)

// Legend looks up a code description by statement family.
type Legend interface {
	LookupLegend(ctx context.Context, family, code string) (description string, found bool, err error)
}

// Counter records a legend miss in the cross-entity unmapped-code catalog.
type Counter interface {
	IncrementUnmappedCode(ctx context.Context, code string, statement model.Statement) error
}

// Resolver enriches the line items of a single ingestion. A code missing from
// the legend is counted at most once per Resolver.
type Resolver struct {
	legend  Legend
	counter Counter
	counted map[string]bool
}

// NewResolver creates a Resolver for one ingestion.
func NewResolver(legend Legend, counter Counter) *Resolver {
	return &Resolver{legend: legend, counter: counter, counted: make(map[string]bool)}
}

// Enrich fills item.Description from the legend when it is empty. It reports
// whether the code is unmapped. Items that already carry a description are
// left alone and never looked up.
func (r *Resolver) Enrich(ctx context.Context, item *model.LineItem) (unmapped bool, err error) {
	if strings.TrimSpace(item.Description) != "" {
		return false, nil
	}

	desc, found, err := r.legend.LookupLegend(ctx, item.Statement.Family(), item.Code)
	if err != nil {
		return false, eris.Wrapf(err, "enrich: lookup %s/%s", item.Statement.Family(), item.Code)
	}
	if found {
		item.Description = desc
		return false, nil
	}

	if r.counted[item.Code] {
		return true, nil
	}
	if err := r.counter.IncrementUnmappedCode(ctx, item.Code, item.Statement); err != nil {
		return true, eris.Wrapf(err, "enrich: count unmapped code %s", item.Code)
	}
	r.counted[item.Code] = true

	zap.L().Debug("enrich: unmapped code",
		zap.String("code", item.Code),
		zap.String("statement", string(item.Statement)),
	)
	return true, nil
}

// Unmapped returns the codes counted so far.
func (r *Resolver) Unmapped() int {
	return len(r.counted)
}
