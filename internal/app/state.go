// Package app holds the state of one order preparation session: the fetched orders,
// the operator's working copy, the validation log and the last rendered document.
// A new refresh discards everything from the previous run.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phillip-england/orderprep/internal/aggregate"
	"github.com/phillip-england/orderprep/internal/catalog"
	"github.com/phillip-england/orderprep/internal/labels"
	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/logging"
	"github.com/phillip-england/orderprep/internal/order"
	"github.com/phillip-england/orderprep/internal/render"
	"github.com/phillip-england/orderprep/internal/shop"
	"github.com/phillip-england/orderprep/internal/snapshot"
	"github.com/phillip-england/orderprep/internal/validate"
	"github.com/phillip-england/orderprep/internal/weekday"
)

var (
	ErrRunInProgress = errors.New("a fetch is already running")
	ErrNoOrders      = errors.New("no orders have been fetched")
	ErrEditRejected  = errors.New("edited orders failed validation")
)

type Fetcher interface {
	FetchOrders(ctx context.Context, progress shop.Progress) (shop.Batch, error)
}

type Renderer interface {
	Render(ctx context.Context, sheet labels.Sheet) (render.Document, error)
}

type Options struct {
	Locations     location.Table
	Catalog       *catalog.Catalog
	ExtrasName    string
	BestByWeekday string
	Log           *logging.Logger
	Now           func() time.Time
}

// Status is a point in time view of the session for polling clients.
type Status struct {
	RunID         string                  `json:"runId,omitempty"`
	Loading       bool                    `json:"loading"`
	Done          int                     `json:"done"`
	Total         int                     `json:"total"`
	Orders        int                     `json:"orders"`
	WorkingOrders int                     `json:"workingOrders"`
	Errors        map[order.ErrorKind]int `json:"errors"`
	FetchError    string                  `json:"fetchError,omitempty"`
	FetchedAt     *time.Time              `json:"fetchedAt,omitempty"`
	Document      *render.Document        `json:"document,omitempty"`
	RenderError   string                  `json:"renderError,omitempty"`
}

type State struct {
	locations  location.Table
	catalog    *catalog.Catalog
	validator  *validate.Validator
	extrasName string
	bestBy     string
	log        *logging.Logger
	now        func() time.Time

	mu        sync.Mutex
	runID     uuid.UUID
	loading   bool
	done      int
	total     int
	fetched   bool
	fetchedAt time.Time
	orders    []order.Order
	working   []order.Order
	faulty    []order.ValidationError
	errors    []order.ValidationError
	fetchErr  error
	document  *render.Document
	renderErr error
}

// New returns a session with no data fetched.
func New(opts Options) *State {
	if opts.Locations == nil {
		opts.Locations = location.DefaultTable
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.New()
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &State{
		locations:  opts.Locations,
		catalog:    opts.Catalog,
		validator:  validate.New(opts.Locations),
		extrasName: opts.ExtrasName,
		bestBy:     opts.BestByWeekday,
		log:        opts.Log.With("component", "app"),
		now:        opts.Now,
	}
	s.log.Debug("catalog loaded", "products", opts.Catalog.Titles(), "locations", len(opts.Locations))
	if opts.BestByWeekday != "" && !weekday.Valid(opts.BestByWeekday) {
		s.log.Warn("best by weekday is not a weekday, labels will have no date stamp", "weekday", opts.BestByWeekday)
	}
	return s
}

func (s *State) Locations() location.Table {
	return s.locations
}

// Refresh starts a new run: the previous run's data is discarded, orders are fetched
// and validated. A fetch failure leaves the session with no orders and the error
// recorded. Only one refresh runs at a time.
func (s *State) Refresh(ctx context.Context, fetcher Fetcher) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	s.resetLocked()
	s.loading = true
	runID := s.runID
	s.mu.Unlock()

	log := s.log.With("run_id", runID.String())
	log.Info("refresh started")

	batch, err := fetcher.FetchOrders(ctx, func(done, total int) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.runID == runID {
			s.done, s.total = done, total
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.fetchErr = err
		log.Error("refresh failed", "error", err)
		return fmt.Errorf("refresh orders: %w", err)
	}
	s.ingestLocked(batch.Orders, batch.Faulty)
	log.Info("refresh finished", "orders", len(s.orders), "errors", len(s.errors), "by_kind", order.CountByKind(s.errors))
	return nil
}

// Ingest replaces the session with an already fetched order list, as read from a
// snapshot file. It goes through the same validation as a refresh.
func (s *State) Ingest(raw []any) validate.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	report := s.ingestLocked(raw, nil)
	s.log.Info("orders ingested", "orders", len(report.Orders), "errors", len(report.Errors), "by_kind", order.CountByKind(report.Errors))
	return report
}

func (s *State) ingestLocked(raw []any, faulty []order.ValidationError) validate.Report {
	report := s.validator.Validate(raw)
	s.fetched = true
	s.fetchedAt = s.now()
	s.orders = report.Orders
	s.working = order.CloneAll(report.Orders)
	s.faulty = faulty
	s.errors = append(append([]order.ValidationError(nil), faulty...), report.Errors...)
	if s.total == 0 {
		s.done, s.total = len(raw), len(raw)
	}
	return report
}

func (s *State) resetLocked() {
	s.runID = uuid.New()
	s.done, s.total = 0, 0
	s.fetched = false
	s.fetchedAt = time.Time{}
	s.orders, s.working = nil, nil
	s.faulty, s.errors = nil, nil
	s.fetchErr = nil
	s.document, s.renderErr = nil, nil
}

// SetWorkingOrdersJSON replaces the working copy with an operator edit. The edit is
// accepted only when every element is a valid order and every item parses; business
// rule findings are kept in the error log but do not block it. A rejected edit leaves
// the working copy unchanged and returns the report with ErrEditRejected.
func (s *State) SetWorkingOrdersJSON(data []byte) (validate.Report, error) {
	report, err := s.validator.ValidateJSON(data)
	if err != nil {
		return validate.Report{}, fmt.Errorf("%w: %v", ErrEditRejected, err)
	}
	if !report.Acceptable() {
		return report, ErrEditRejected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fetched {
		return report, ErrNoOrders
	}
	s.working = report.Orders
	s.errors = append(append([]order.ValidationError(nil), s.faulty...), report.Errors...)
	s.document, s.renderErr = nil, nil
	s.log.Info("working orders replaced", "orders", len(report.Orders), "errors", len(report.Errors))
	return report, nil
}

// WorkingOrdersJSON is the pretty-printed working copy for the manual edit view.
func (s *State) WorkingOrdersJSON() ([]byte, error) {
	return snapshot.Marshal(s.WorkingOrders())
}

func (s *State) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return order.CloneAll(s.orders)
}

func (s *State) WorkingOrders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return order.CloneAll(s.working)
}

func (s *State) ValidationErrors() []order.ValidationError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]order.ValidationError(nil), s.errors...)
}

func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Loading:       s.loading,
		Done:          s.done,
		Total:         s.total,
		Orders:        len(s.orders),
		WorkingOrders: len(s.working),
		Errors:        order.CountByKind(s.errors),
		Document:      s.document,
	}
	if s.runID != uuid.Nil {
		st.RunID = s.runID.String()
	}
	if s.fetched {
		at := s.fetchedAt
		st.FetchedAt = &at
	}
	if s.fetchErr != nil {
		st.FetchError = s.fetchErr.Error()
	}
	if s.renderErr != nil {
		st.RenderError = s.renderErr.Error()
	}
	return st
}

func (s *State) Totals() aggregate.Totals {
	return aggregate.ComputeTotals(s.WorkingOrders())
}

func (s *State) LocationOrders() aggregate.LocationOrders {
	return aggregate.ByLocation(s.WorkingOrders(), s.locations)
}

func (s *State) LocationTotals() map[string]aggregate.Totals {
	return aggregate.LocationTotals(s.WorkingOrders(), s.locations)
}

// Labels sequences the working copy onto the label grid for the given day.
func (s *State) Labels(ref time.Time) labels.Sheet {
	working := s.WorkingOrders()
	return labels.Sequence(
		aggregate.ComputeTotals(working),
		aggregate.ByLocation(working, s.locations),
		labels.ExtrasOrders(working, s.extrasName),
		ref,
		labels.Options{Catalog: s.catalog, Locations: s.locations, BestByWeekday: s.bestBy},
	)
}

// CurrentLabels sequences the working copy with today's date stamp.
func (s *State) CurrentLabels() labels.Sheet {
	return s.Labels(s.now())
}

// Render sequences today's labels and renders them. A failure is recorded for the
// labels feature only; orders and totals are untouched.
func (s *State) Render(ctx context.Context, renderer Renderer) (render.Document, error) {
	s.mu.Lock()
	if !s.fetched {
		s.mu.Unlock()
		return render.Document{}, ErrNoOrders
	}
	runID := s.runID
	s.mu.Unlock()

	doc, err := renderer.Render(ctx, s.CurrentLabels())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID {
		return doc, err
	}
	if err != nil {
		s.renderErr = err
		s.document = nil
		s.log.Error("render failed", "run_id", runID.String(), "error", err)
		return render.Document{}, err
	}
	s.renderErr = nil
	s.document = &doc
	return doc, nil
}
