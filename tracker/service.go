package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/theoremus-urban-solutions/asset-tracking/bus"
	"github.com/theoremus-urban-solutions/asset-tracking/internal/observability"
)

// SubmitResult is what ingestion callers get back. A report outside the
// lateness window is Accepted but not Applied: it is discarded silently,
// counted, and never surfaced as a failure.
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Applied  bool   `json:"applied"`
	Reason   string `json:"reason,omitempty"`
}

const reasonStaleReport = "stale_report"

// Service is the tracking core facade: it validates reports, updates the
// state store and publishes accepted updates onto the bus. All
// collaborators are passed in at construction.
type Service struct {
	validator *Validator
	store     *Store
	bus       bus.Bus
	logger    *slog.Logger
	now       func() time.Time

	staleReports atomic.Uint64
}

// NewService wires the ingestion path. A nil now selects time.Now.
func NewService(v *Validator, store *Store, b bus.Bus, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		validator: v,
		store:     store,
		bus:       b,
		logger:    logger.With("component", "tracker"),
		now:       now,
	}
}

// SubmitLocation is the ingestion boundary. It validates the report,
// applies it to the store and, when applied, publishes a location.update
// event. Publishing never waits on subscribers.
func (s *Service) SubmitLocation(ctx context.Context, assetType AssetType, assetID string, report LocationReport) SubmitResult {
	start := s.now()
	defer observability.ObserveIngestLatency(start)
	observability.ReportsReceived.Inc()

	if assetID == "" {
		observability.ReportsRejected.WithLabelValues(string(ReasonMissingField)).Inc()
		return SubmitResult{Reason: (&ValidationError{Reason: ReasonMissingField, Field: "assetId"}).Error()}
	}
	if !assetType.Valid() {
		observability.ReportsRejected.WithLabelValues(string(ReasonOutOfRange)).Inc()
		return SubmitResult{Reason: (&ValidationError{Reason: ReasonOutOfRange, Field: "assetType"}).Error()}
	}

	report, verr := s.validator.Validate(report)
	if verr != nil {
		observability.ReportsRejected.WithLabelValues(string(verr.Reason)).Inc()
		return SubmitResult{Reason: verr.Error()}
	}

	id := AssetIdentity{Type: assetType, ID: assetID}
	res := s.store.Upsert(id, report)
	if !res.Applied {
		s.staleReports.Add(1)
		observability.StaleReports.Inc()
		return SubmitResult{Accepted: true, Applied: false, Reason: reasonStaleReport}
	}

	payload, err := json.Marshal(report)
	if err == nil {
		ev := bus.Event{
			Type:       bus.EventLocationUpdate,
			AssetType:  string(assetType),
			AssetID:    assetID,
			Payload:    payload,
			ServerTime: s.now().UTC(),
		}
		if perr := s.bus.Publish(ctx, bus.TopicLocation, ev); perr != nil {
			s.logger.Warn("publish location.update failed", "asset", id.String(), "err", perr)
		} else {
			observability.EventsPublished.WithLabelValues(string(bus.EventLocationUpdate)).Inc()
		}
	}
	return SubmitResult{Accepted: true, Applied: true}
}

// CurrentState is the query boundary: the latest state of every asset, or
// of one asset type when assetType is non-empty.
func (s *Service) CurrentState(assetType AssetType) []AssetState {
	if assetType == "" {
		return s.store.List()
	}
	return s.store.ListByType(assetType)
}

// GetAsset returns the latest state for one identity.
func (s *Service) GetAsset(id AssetIdentity) (AssetState, bool) {
	return s.store.Get(id)
}

// StaleReports returns how many reports were discarded for falling outside
// the lateness window.
func (s *Service) StaleReports() uint64 {
	return s.staleReports.Load()
}
