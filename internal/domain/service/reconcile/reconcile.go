// Package reconcile drives one supplier id through the reconciliation state
// machine: reserve, dedupe, fetch, validate, derive the price, then create or
// update the marketplace listing.
package reconcile

import (
	"context"
	"sort"
	"strings"
	"time"

	"catalog_sync/internal/domain"
	"catalog_sync/internal/domain/entity"
	"catalog_sync/internal/domain/service/listing"
	"catalog_sync/internal/domain/service/pricing"
	"catalog_sync/internal/infrastructure/marketplace"
	"catalog_sync/pkg/contextx"
	"catalog_sync/pkg/errcodes"
	"catalog_sync/pkg/logx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

type RecordRepository interface {
	Reserve(ctx context.Context, supplierID string) (entity.ReconciledRecord, bool, error)
	ListLive(ctx context.Context, supplierID string) ([]entity.ReconciledRecord, error)
	Complete(ctx context.Context, recordID int64, marketplaceID string, price int64, title, region string) error
	UpdateListing(ctx context.Context, recordID int64, price int64, title string) error
	SetStatus(ctx context.Context, recordID int64, status entity.RecordStatus) error
	Release(ctx context.Context, recordID int64) error
}

type SupplierClient interface {
	GetProduct(ctx context.Context, supplierID string) (entity.SourceProduct, error)
}

type MarketplaceClient interface {
	GetItem(ctx context.Context, itemID string) (entity.MarketplaceListing, error)
	CreateItem(ctx context.Context, draft marketplace.ItemDraft) (string, error)
	UpdateItem(ctx context.Context, itemID string, patch marketplace.ItemPatch) error
	SetDescription(ctx context.Context, itemID, description string) error
	PauseItem(ctx context.Context, itemID string) error
	CloseItem(ctx context.Context, itemID string) error
	FindBySKU(ctx context.Context, sku string) (*entity.MarketplaceListing, error)
}

type RateProvider interface {
	Rate(ctx context.Context) (float64, error)
}

// EventSink receives one structured event per terminal outcome.
type EventSink interface {
	Append(ctx context.Context, event entity.ActivityEvent) error
}

// Config is the fixed policy of a reconciliation pass.
type Config struct {
	GuardWindow     time.Duration
	MinPrice        int64
	MaxPrice        int64
	PriceTolerance  int64
	OutlierMin      float64
	OutlierMax      float64
	RegionAllowlist []string
}

// Price updates within this many target-currency units are considered noise.
const defaultPriceTolerance = 5

type Reconciler struct {
	records  RecordRepository
	supplier SupplierClient
	market   MarketplaceClient
	rates    RateProvider
	events   EventSink
	pricing  *pricing.Engine
	listings *listing.Builder
	cfg      Config
}

func NewReconciler(
	records RecordRepository,
	supplier SupplierClient,
	market MarketplaceClient,
	rates RateProvider,
	events EventSink,
	engine *pricing.Engine,
	builder *listing.Builder,
	cfg Config,
) *Reconciler {
	if cfg.PriceTolerance == 0 {
		cfg.PriceTolerance = defaultPriceTolerance
	}

	return &Reconciler{
		records:  records,
		supplier: supplier,
		market:   market,
		rates:    rates,
		events:   events,
		pricing:  engine,
		listings: builder,
		cfg:      cfg,
	}
}

// Process runs one supplier id to a terminal outcome. known carries the
// caller's preloaded live records for this id, taken before the reservation;
// nil means no preload happened and the records are read here. A returned
// error is fatal for the whole pass (broken credentials); everything else is
// folded into the unit result.
func (r *Reconciler) Process(ctx context.Context, jobID, supplierID string, known []entity.ReconciledRecord) (entity.UnitResult, error) {
	record, reserved, err := r.records.Reserve(ctx, supplierID)
	if err != nil {
		return r.finish(ctx, jobID, supplierID, stepReserve, errorResult(supplierID, entity.ReasonInternal), err), nil
	}

	if !reserved {
		return r.finish(ctx, jobID, supplierID, stepReserve, skipped(supplierID, entity.ReasonConflict), nil), nil
	}

	// The reservation row only guards this attempt. Release is a no-op once
	// the record is completed, and it must run even if the unit was abandoned
	// on timeout, hence the detached context.
	defer func() {
		released := context.WithoutCancel(ctx)
		if err := r.records.Release(released, record.ID); err != nil {
			logger(released).Warn("failed to release reservation",
				"supplier_id", supplierID, logx.Error(err))
		}
	}()

	result, err := r.process(ctx, jobID, record, known)
	if err != nil {
		if isFatalAuth(err) {
			return entity.UnitResult{}, err
		}

		result = errorResult(supplierID, reasonOf(ctx, err))
		return r.finish(ctx, jobID, supplierID, stepDispatch, result, err), nil
	}

	return result, nil
}

const (
	stepReserve    = "reserve"
	stepDuplicates = "duplicate_scan"
	stepFetch      = "fetch_source"
	stepValidate   = "validate"
	stepRegion     = "region_check"
	stepPrice      = "price_derivation"
	stepDispatch   = "dispatch"
)

func (r *Reconciler) process(ctx context.Context, jobID string, record entity.ReconciledRecord, known []entity.ReconciledRecord) (entity.UnitResult, error) {
	supplierID := record.SupplierID

	reference, recent, err := r.scanDuplicates(ctx, record, known)
	if err != nil {
		return entity.UnitResult{}, err
	}

	if recent {
		return r.finish(ctx, jobID, supplierID, stepDuplicates, skipped(supplierID, entity.ReasonRecent), nil), nil
	}

	product, err := r.supplier.GetProduct(ctx, supplierID)
	if err != nil {
		if domain.GetCode(err) == errcodes.ProductNotFound {
			return r.finish(ctx, jobID, supplierID, stepFetch, skipped(supplierID, entity.ReasonNotFound), err), nil
		}

		return entity.UnitResult{}, err
	}

	if product.Name == "" || !product.HasValidOffer() {
		r.pauseReference(ctx, reference)
		return r.finish(ctx, jobID, supplierID, stepValidate, skipped(supplierID, entity.ReasonInvalid), nil), nil
	}

	if !r.regionAllowed(product.RegionLimit) {
		r.pauseReference(ctx, reference)
		return r.finish(ctx, jobID, supplierID, stepRegion, skipped(supplierID, entity.ReasonRegion), nil), nil
	}

	offer, _ := product.BestOffer()

	rate, err := r.rates.Rate(ctx)
	if err != nil {
		return r.finish(ctx, jobID, supplierID, stepPrice, skipped(supplierID, entity.ReasonFX), err), nil
	}

	price, ok := r.pricing.Derive(offer.Price, rate)
	if !ok {
		return r.finish(ctx, jobID, supplierID, stepPrice, skipped(supplierID, entity.ReasonFX), nil), nil
	}

	if price < r.cfg.MinPrice || price > r.cfg.MaxPrice {
		return r.finish(ctx, jobID, supplierID, stepPrice, skipped(supplierID, entity.ReasonPriceRange), nil), nil
	}

	if r.priceOutlier(price, offer.Price*rate) {
		return r.finish(ctx, jobID, supplierID, stepPrice, skipped(supplierID, entity.ReasonPriceOutlier), nil), nil
	}

	derived := r.listings.Build(product)
	derived.Price = price

	if reference != nil && reference.MarketplaceID != nil {
		return r.update(ctx, jobID, record, *reference, product, derived)
	}

	return r.create(ctx, jobID, record, product, derived)
}

// scanDuplicates resolves which prior record, if any, is the reference for
// this pass. With more than one prior live record it re-checks marketplace
// status, keeps the newest confirmed-active listing (ties broken by lowest
// price) and closes the rest. A non-nil known snapshot replaces the read; an
// empty one means the preload ran and found nothing.
func (r *Reconciler) scanDuplicates(ctx context.Context, record entity.ReconciledRecord, known []entity.ReconciledRecord) (*entity.ReconciledRecord, bool, error) {
	live := known
	if live == nil {
		var err error
		live, err = r.records.ListLive(ctx, record.SupplierID)
		if err != nil {
			return nil, false, err
		}
	}

	var others []entity.ReconciledRecord
	for _, rec := range live {
		if rec.ID != record.ID {
			others = append(others, rec)
		}
	}

	switch len(others) {
	case 0:
		return nil, false, nil
	case 1:
		if others[0].MarketplaceID != nil {
			return &others[0], false, nil
		}

		// A stale row with no listing. If it is fresh another pass may still
		// be completing it; otherwise it is junk.
		if others[0].CreatedWithin(r.cfg.GuardWindow) {
			return nil, true, nil
		}

		r.closeDuplicate(ctx, others[0], false)
		return nil, false, nil
	}

	var actives []entity.ReconciledRecord
	for _, rec := range others {
		if rec.MarketplaceID == nil {
			continue
		}

		item, err := r.market.GetItem(ctx, *rec.MarketplaceID)
		if err != nil {
			if isFatalAuth(err) {
				return nil, false, err
			}

			logger(ctx).Warn("duplicate status check failed",
				"supplier_id", rec.SupplierID, "marketplace_id", *rec.MarketplaceID, logx.Error(err))
			continue
		}

		if item.Active() {
			actives = append(actives, rec)
		}
	}

	if len(actives) == 0 {
		for _, rec := range others {
			if rec.CreatedWithin(r.cfg.GuardWindow) {
				return nil, true, nil
			}
		}

		for _, rec := range others {
			r.closeDuplicate(ctx, rec, false)
		}

		return nil, false, nil
	}

	sort.Slice(actives, func(i, j int) bool {
		if !actives[i].CreatedAt.Equal(actives[j].CreatedAt) {
			return actives[i].CreatedAt.After(actives[j].CreatedAt)
		}

		return actives[i].Price < actives[j].Price
	})

	keeper := actives[0]

	for _, rec := range others {
		if rec.ID == keeper.ID {
			continue
		}

		r.closeDuplicate(ctx, rec, true)
	}

	return &keeper, false, nil
}

// closeDuplicate retires a redundant record, best effort. A failed
// marketplace close is logged and the record is still marked so the listing
// check does not repeat forever.
func (r *Reconciler) closeDuplicate(ctx context.Context, rec entity.ReconciledRecord, closeListing bool) {
	if closeListing && rec.MarketplaceID != nil {
		if err := r.market.CloseItem(ctx, *rec.MarketplaceID); err != nil {
			logger(ctx).Warn("failed to close duplicate listing",
				"supplier_id", rec.SupplierID, "marketplace_id", *rec.MarketplaceID, logx.Error(err))
		}
	}

	if err := r.records.SetStatus(ctx, rec.ID, entity.RecordClosedDuplicate); err != nil {
		logger(ctx).Warn("failed to mark duplicate record",
			"supplier_id", rec.SupplierID, "record_id", rec.ID, logx.Error(err))
	}
}

// pauseReference pauses the live listing of a product that is no longer
// sellable. Best effort: the pass outcome is already decided.
func (r *Reconciler) pauseReference(ctx context.Context, reference *entity.ReconciledRecord) {
	if reference == nil || reference.MarketplaceID == nil {
		return
	}

	if err := r.market.PauseItem(ctx, *reference.MarketplaceID); err != nil {
		logger(ctx).Warn("failed to pause listing",
			"supplier_id", reference.SupplierID, "marketplace_id", *reference.MarketplaceID, logx.Error(err))
		return
	}

	if err := r.records.SetStatus(ctx, reference.ID, entity.RecordPaused); err != nil {
		logger(ctx).Warn("failed to mark record paused",
			"supplier_id", reference.SupplierID, "record_id", reference.ID, logx.Error(err))
	}
}

func (r *Reconciler) regionAllowed(region string) bool {
	if region == "" || len(r.cfg.RegionAllowlist) == 0 {
		return true
	}

	probe := strings.ToLower(region)
	for _, allowed := range r.cfg.RegionAllowlist {
		if allowed != "" && strings.Contains(probe, strings.ToLower(allowed)) {
			return true
		}
	}

	return false
}

// priceOutlier flags derived prices implausibly far from the plain converted
// source price. The band is policy, not logic: both bounds unset disables it.
func (r *Reconciler) priceOutlier(price int64, expected float64) bool {
	if r.cfg.OutlierMin == 0 && r.cfg.OutlierMax == 0 {
		return false
	}

	if expected <= 0 {
		return false
	}

	ratio := float64(price) / expected

	if r.cfg.OutlierMin > 0 && ratio < r.cfg.OutlierMin {
		return true
	}

	if r.cfg.OutlierMax > 0 && ratio > r.cfg.OutlierMax {
		return true
	}

	return false
}

func (r *Reconciler) update(ctx context.Context, jobID string, record, reference entity.ReconciledRecord, product entity.SourceProduct, derived entity.DerivedListing) (entity.UnitResult, error) {
	supplierID := reference.SupplierID
	marketplaceID := *reference.MarketplaceID

	item, err := r.market.GetItem(ctx, marketplaceID)
	if err != nil {
		if domain.GetCode(err) == errcodes.ListingNotFound {
			// The listing is gone. Retire the record and publish anew.
			if err := r.records.SetStatus(ctx, reference.ID, entity.RecordClosed); err != nil {
				return entity.UnitResult{}, err
			}

			return r.create(ctx, jobID, record, product, derived)
		}

		return entity.UnitResult{}, err
	}

	if !item.Active() {
		return r.finish(ctx, jobID, supplierID, stepDispatch, skipped(supplierID, entity.ReasonNotActive), nil), nil
	}

	patch := marketplace.ItemPatch{}
	if diff := item.Price - derived.Price; diff > r.cfg.PriceTolerance || diff < -r.cfg.PriceTolerance {
		patch.Price = &derived.Price
	}
	if item.Title != derived.Title {
		patch.Title = &derived.Title
	}

	if patch.Price == nil && patch.Title == nil {
		return r.finish(ctx, jobID, supplierID, stepDispatch, skipped(supplierID, entity.ReasonUpToDate), nil), nil
	}

	if err := r.updateWithRecovery(ctx, marketplaceID, patch); err != nil {
		return entity.UnitResult{}, err
	}

	if err := r.records.UpdateListing(ctx, reference.ID, derived.Price, derived.Title); err != nil {
		return entity.UnitResult{}, err
	}

	result := entity.UnitResult{
		SupplierID:    supplierID,
		Outcome:       entity.OutcomeUpdated,
		MarketplaceID: marketplaceID,
		Price:         derived.Price,
	}

	return r.finish(ctx, jobID, supplierID, stepDispatch, result, nil), nil
}

func (r *Reconciler) create(ctx context.Context, jobID string, record entity.ReconciledRecord, product entity.SourceProduct, derived entity.DerivedListing) (entity.UnitResult, error) {
	supplierID := record.SupplierID

	existing, err := r.market.FindBySKU(ctx, supplierID)
	if err != nil {
		return entity.UnitResult{}, err
	}

	if existing != nil {
		return r.finish(ctx, jobID, supplierID, stepDispatch, skipped(supplierID, entity.ReasonSKUDuplicate), nil), nil
	}

	draft := marketplace.ItemDraft{
		SKU:         supplierID,
		Title:       derived.Title,
		Price:       derived.Price,
		ProductType: string(derived.ProductType),
	}

	marketplaceID, err := r.createWithRecovery(ctx, draft)
	if err != nil {
		return entity.UnitResult{}, err
	}

	if err := r.market.SetDescription(ctx, marketplaceID, derived.Description); err != nil {
		// The listing already exists; a missing description is cosmetic.
		logger(ctx).Warn("failed to set listing description",
			"supplier_id", supplierID, "marketplace_id", marketplaceID, logx.Error(err))
	}

	if err := r.records.Complete(ctx, record.ID, marketplaceID, derived.Price, derived.Title, product.RegionLimit); err != nil {
		return entity.UnitResult{}, err
	}

	result := entity.UnitResult{
		SupplierID:    supplierID,
		Outcome:       entity.OutcomePublished,
		MarketplaceID: marketplaceID,
		Price:         derived.Price,
	}

	return r.finish(ctx, jobID, supplierID, stepDispatch, result, nil), nil
}

// createWithRecovery attempts one bounded automatic correction when the
// marketplace rejects the draft: resend without the offending optional field.
func (r *Reconciler) createWithRecovery(ctx context.Context, draft marketplace.ItemDraft) (string, error) {
	id, err := r.market.CreateItem(ctx, draft)
	if err == nil {
		return id, nil
	}

	corrected, ok := correctDraft(draft, err)
	if !ok {
		return "", err
	}

	logger(ctx).Info("retrying listing create with corrected draft", "sku", draft.SKU)

	return r.market.CreateItem(ctx, corrected)
}

func (r *Reconciler) updateWithRecovery(ctx context.Context, marketplaceID string, patch marketplace.ItemPatch) error {
	err := r.market.UpdateItem(ctx, marketplaceID, patch)
	if err == nil {
		return nil
	}

	corrected, ok := correctPatch(patch, err)
	if !ok {
		return err
	}

	logger(ctx).Info("retrying listing update with corrected patch", "marketplace_id", marketplaceID)

	return r.market.UpdateItem(ctx, marketplaceID, corrected)
}

func correctDraft(draft marketplace.ItemDraft, err error) (marketplace.ItemDraft, bool) {
	validationErr, ok := marketplace.AsValidationError(err)
	if !ok {
		return draft, false
	}

	switch validationErr.Cause {
	case marketplace.CauseCategory, marketplace.CauseAttributes:
		if draft.ProductType == "" {
			return draft, false
		}

		draft.ProductType = ""
		return draft, true
	default:
		return draft, false
	}
}

func correctPatch(patch marketplace.ItemPatch, err error) (marketplace.ItemPatch, bool) {
	validationErr, ok := marketplace.AsValidationError(err)
	if !ok {
		return patch, false
	}

	switch validationErr.Cause {
	case marketplace.CauseTitle:
		if patch.Title == nil || patch.Price == nil {
			return patch, false
		}

		patch.Title = nil
		return patch, true
	case marketplace.CausePrice:
		if patch.Price == nil || patch.Title == nil {
			return patch, false
		}

		patch.Price = nil
		return patch, true
	default:
		return patch, false
	}
}

// finish emits the activity event for a terminal outcome and hands the
// result back. Event delivery is best effort and survives unit timeouts.
func (r *Reconciler) finish(ctx context.Context, jobID, supplierID, step string, result entity.UnitResult, cause error) entity.UnitResult {
	details := map[string]any{}
	if result.MarketplaceID != "" {
		details["marketplace_id"] = result.MarketplaceID
	}
	if result.Price != 0 {
		details["price"] = result.Price
	}
	if cause != nil {
		details["error"] = cause.Error()
	}

	outcome := string(result.Outcome)
	if result.Reason != "" {
		outcome += ":" + result.Reason
	}

	detached := context.WithoutCancel(ctx)

	event := entity.ActivityEvent{
		JobID:      jobID,
		SupplierID: supplierID,
		Step:       step,
		Outcome:    outcome,
		Details:    details,
	}

	if err := r.events.Append(detached, event); err != nil {
		logger(detached).Warn("failed to append activity event",
			"supplier_id", supplierID, logx.Error(err))
	}

	return result
}

func skipped(supplierID, reason string) entity.UnitResult {
	return entity.UnitResult{SupplierID: supplierID, Outcome: entity.OutcomeSkipped, Reason: reason}
}

func errorResult(supplierID, reason string) entity.UnitResult {
	return entity.UnitResult{SupplierID: supplierID, Outcome: entity.OutcomeError, Reason: reason}
}

func isFatalAuth(err error) bool {
	switch domain.GetCode(err) {
	case errcodes.SupplierAuthFailed, errcodes.MarketplaceAuthFailed, errcodes.TokenMissing:
		return true
	default:
		return false
	}
}

func reasonOf(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return entity.ReasonTimeout
	case isValidation(err):
		return entity.ReasonInvalid
	default:
		return entity.ReasonInternal
	}
}

func isValidation(err error) bool {
	_, ok := marketplace.AsValidationError(err)
	return ok
}
