// Package ingest runs one registry document through identity resolution,
// versioning, extraction and persistence as a single atomic run.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/registry-ingest/internal/config"
	"github.com/sells-group/registry-ingest/internal/enrich"
	"github.com/sells-group/registry-ingest/internal/extract"
	"github.com/sells-group/registry-ingest/internal/identity"
	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/payload"
	"github.com/sells-group/registry-ingest/internal/schema"
	"github.com/sells-group/registry-ingest/internal/store"
)

// ErrInvalidDocument is returned (wrapped) for input that is not a JSON
// object. Nothing is written for such input.
var ErrInvalidDocument = eris.New("ingest: invalid document")

// Summary sections that are not facet tables.
const (
	sectionIdentity      = "identity"
	sectionUnknownFields = "unknown_fields"
)

// Result is the outcome of one ingestion.
type Result struct {
	EntityID string           `json:"entity_id"`
	Summary  model.RunSummary `json:"run_summary"`
}

// Ingester persists registry documents into a store.
type Ingester struct {
	store store.Store
	opts  extract.Options
	now   func() time.Time
}

// New creates an Ingester writing to st.
func New(st store.Store, cfg config.IngestConfig) *Ingester {
	return &Ingester{
		store: st,
		opts: extract.Options{
			DeepContactScan:    cfg.DeepContactScan,
			FallbackFiscalYear: cfg.FallbackFiscalYear,
			DefaultCurrency:    cfg.DefaultCurrency,
			MaxUnknownFields:   cfg.MaxUnknownFields,
		},
		now: time.Now,
	}
}

// Ingest runs one document. On failure the returned Result still carries
// the ERROR summary that was recorded for the run, except for invalid input,
// which is rejected before the store is touched.
func (in *Ingester) Ingest(ctx context.Context, raw []byte) (*Result, error) {
	root, err := payload.Parse(raw)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidDocument, "ingest: %v", err)
	}

	began := time.Now()
	started := in.now().UTC()
	id := identity.Resolve(root)
	run := &model.IngestionRun{
		ID:        uuid.New().String(),
		EntityID:  id.EntityID,
		Status:    model.RunStatusPartial,
		StartedAt: started,
	}
	run.Summary = model.NewRunSummary(run.ID, run.EntityID)

	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("ingestion_id", run.ID),
		zap.String("entity_id", run.EntityID),
	)
	if !id.Linked() {
		run.Summary.Warn(sectionIdentity, "no natural key; entity cannot be linked", nil)
		log.Warn("ingest: no natural key, using a random entity id")
	}

	tx, err := in.store.Begin(ctx)
	if err != nil {
		return in.fail(ctx, run, began, eris.Wrap(err, "ingest: begin"), log)
	}

	w := &writer{
		tx:       tx,
		schema:   schema.NewManager(tx),
		resolver: enrich.NewResolver(tx, tx),
		summary:  &run.Summary,
		entityID: run.EntityID,
		log:      log,
	}
	if err := in.persist(ctx, w, root, id, raw, run, started); err != nil {
		// Release the connection before recording the failure; SQLite has only one.
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Warn("ingest: rollback failed", zap.Error(rbErr))
		}
		return in.fail(ctx, run, began, err, log)
	}

	observeRun(run.Summary, w.resolver.Unmapped(), time.Since(began))
	log.Info("ingest: run complete",
		zap.String("status", string(run.Status)),
		zap.Int("written", run.Summary.Written()),
		zap.Int("created_columns", len(run.Summary.CreatedColumns)),
		zap.Int("warnings", len(run.Summary.Warnings)),
	)
	return &Result{EntityID: run.EntityID, Summary: run.Summary}, nil
}

// persist performs every write of the run inside w.tx and commits it
// together with the terminal run row.
func (in *Ingester) persist(ctx context.Context, w *writer, root gjson.Result, id identity.Resolution, raw []byte, run *model.IngestionRun, started time.Time) error {
	opts := in.opts
	opts.Now = started
	doc := extract.NewDoc(root, started)

	// Facet rows reference the company, so its row goes first.
	if err := w.writeCompany(ctx, extract.Company(doc, id)); err != nil {
		return err
	}

	hash := payload.ContentHash(raw)
	isNew, err := w.tx.RecordVersion(ctx, model.EntityVersion{
		EntityID:      w.entityID,
		EffectiveDate: doc.Date,
		ContentHash:   hash,
		RawPayload:    raw,
	})
	if err != nil {
		return eris.Wrap(err, "ingest: record version")
	}
	if !isNew {
		// Undated documents fall back to the date of their first ingestion.
		d, found, err := w.tx.VersionDate(ctx, w.entityID, hash)
		if err != nil {
			return eris.Wrap(err, "ingest: read version date")
		}
		if found {
			doc = extract.NewDoc(root, d)
		}
	}

	if err := w.tx.InsertRawSection(ctx, model.RawSection{
		EntityID:      w.entityID,
		IngestionID:   run.ID,
		SectionName:   model.SectionRoot,
		EffectiveDate: doc.Date,
		RawPayload:    raw,
	}); err != nil {
		return eris.Wrap(err, "ingest: capture raw document")
	}

	w.writeFacet(ctx, facetOf(model.TableContacts, extract.Contacts(doc, opts)))
	w.writeFacet(ctx, facetOf(model.TableAddresses, extract.Addresses(doc, opts)))
	w.writeFacet(ctx, facetOf(model.TableClassifications, extract.Classifications(doc, opts)))
	w.writeLineItems(ctx, extract.LineItems(doc, opts))
	w.writeUnknownFields(ctx, doc, opts.MaxUnknownFields)

	run.Summary.CreatedColumns = append([]model.CreatedColumn{}, w.schema.Created()...)
	run.Status = model.RunStatusUnchanged
	if isNew || run.Summary.Written() > 0 {
		run.Status = model.RunStatusUpdated
	}
	run.Summary.Status = run.Status
	finished := in.now().UTC()
	run.FinishedAt = &finished

	if err := w.tx.SaveRun(ctx, run); err != nil {
		return eris.Wrap(err, "ingest: save run")
	}
	return eris.Wrap(w.tx.Commit(ctx), "ingest: commit")
}

// fail records the run as ERROR outside the failed transaction. Counts of
// rolled-back writes are cleared; warnings are kept.
func (in *Ingester) fail(ctx context.Context, run *model.IngestionRun, began time.Time, cause error, log *zap.Logger) (*Result, error) {
	finished := in.now().UTC()
	run.Status = model.RunStatusError
	run.Summary.Status = run.Status
	run.FinishedAt = &finished
	run.Summary.Error = eris.Cause(cause).Error()
	run.Summary.CreatedColumns = []model.CreatedColumn{}
	run.Summary.Inserts = map[string]int{}
	run.Summary.Skips = map[string]int{}

	if err := in.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error("ingest: failed to record error run", zap.Error(err))
	}
	log.Error("ingest: run failed", zap.Error(cause))
	observeRun(run.Summary, 0, time.Since(began))

	return &Result{EntityID: run.EntityID, Summary: run.Summary},
		eris.Wrapf(cause, "ingest: ingestion %s", run.ID)
}
