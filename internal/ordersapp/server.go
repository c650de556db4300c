package ordersapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/phillip-england/orderprep/internal/aggregate"
	"github.com/phillip-england/orderprep/internal/app"
	"github.com/phillip-england/orderprep/internal/catalog"
	"github.com/phillip-england/orderprep/internal/config"
	"github.com/phillip-england/orderprep/internal/export"
	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/logging"
	"github.com/phillip-england/orderprep/internal/middleware"
	"github.com/phillip-england/orderprep/internal/render"
	"github.com/phillip-england/orderprep/internal/shop"
)

const (
	documentsPrefix = "/documents/"
	maxEditBytes    = 16 << 20
)

type server struct {
	state         *app.State
	fetcher       app.Fetcher
	renderer      app.Renderer
	locations     location.Table
	deliveryState string
	outputDir     string
	fetchTimeout  time.Duration
	log           *logging.Logger

	// baseCtx outlives a single request so a refresh started over HTTP keeps running
	// after the response is written.
	baseCtx context.Context
	runs    sync.WaitGroup

	// mu orders runs.Add against the shutdown Wait.
	mu      sync.Mutex
	closing bool
}

// Run loads the catalog and location table, then serves the order preparation API
// until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, log *logging.Logger) error {
	locations, err := location.LoadTable(cfg.LocationsPath)
	if err != nil {
		return fmt.Errorf("load locations: %w", err)
	}
	cat, err := catalog.Load(cfg.CatalogPath, cfg.ProductsDir)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	renderer, err := render.New(render.Options{
		OutputDir: cfg.OutputDir,
		URLPrefix: documentsPrefix,
		PDFCPUBin: cfg.PDFCPUBin,
		LogoPath:  cfg.LabelLogoPath,
		Footer:    cfg.LabelFooter,
		Author:    cfg.DocumentAuthor,
		Log:       log,
	})
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	s := &server{
		state: app.New(app.Options{
			Locations:     locations,
			Catalog:       cat,
			ExtrasName:    cfg.ExtrasName,
			BestByWeekday: cfg.BestByWeekday,
			Log:           log,
		}),
		fetcher:       shop.NewClient(cfg.ShopAPIBaseURL, &http.Client{Timeout: cfg.FetchTimeout}, log),
		renderer:      renderer,
		locations:     locations,
		deliveryState: cfg.DeliveryState,
		outputDir:     cfg.OutputDir,
		fetchTimeout:  cfg.FetchTimeout,
		log:           log.With("component", "http"),
		baseCtx:       ctx,
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "url", "http://localhost"+cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		s.close()
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/health", http.HandlerFunc(s.health))
	mux.Handle("/api/refresh", http.HandlerFunc(s.refresh))
	mux.Handle("/api/status", http.HandlerFunc(s.status))
	mux.Handle("/api/orders", http.HandlerFunc(s.ordersHandler))
	mux.Handle("/api/orders/original", http.HandlerFunc(s.originalOrders))
	mux.Handle("/api/validation-errors", http.HandlerFunc(s.validationErrors))
	mux.Handle("/api/totals", http.HandlerFunc(s.totals))
	mux.Handle("/api/location-totals", http.HandlerFunc(s.locationTotals))
	mux.Handle("/api/location-orders", http.HandlerFunc(s.locationOrders))
	mux.Handle("/api/deliveries", http.HandlerFunc(s.deliveries))
	mux.Handle("/api/deliveries.csv", http.HandlerFunc(s.deliveriesCSV))
	mux.Handle("/api/export.xlsx", http.HandlerFunc(s.workbook))
	mux.Handle("/api/labels", http.HandlerFunc(s.labelsHandler))
	mux.Handle(documentsPrefix, http.StripPrefix(documentsPrefix, http.FileServer(http.Dir(s.outputDir))))

	csp := strings.Join([]string{
		"default-src 'self'",
		"img-src 'self' data:",
		"object-src 'self'",
		"frame-ancestors 'none'",
	}, "; ")

	return middleware.Chain(
		mux,
		middleware.RequestLogger(s.log),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: csp}),
	)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// refresh starts a fetch in the background and answers 202; pass wait=true to block
// until the run finishes.
func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.state.Status().Loading {
		writeError(w, http.StatusConflict, app.ErrRunInProgress.Error())
		return
	}

	run := func() error {
		ctx := s.baseCtx
		if s.fetchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()
		}
		return s.state.Refresh(ctx, s.fetcher)
	}

	if parseBoolQueryValue(r.URL.Query().Get("wait")) {
		if err := run(); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, app.ErrRunInProgress) {
				status = http.StatusConflict
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.state.Status())
		return
	}

	if !s.startRun() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	go func() {
		defer s.runs.Done()
		if err := run(); err != nil && !errors.Is(err, app.ErrRunInProgress) {
			s.log.Warn("background refresh failed", "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// startRun registers a background refresh unless shutdown has begun.
func (s *server) startRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || s.baseCtx.Err() != nil {
		return false
	}
	s.runs.Add(1)
	return true
}

// close stops new background refreshes and waits for running ones.
func (s *server) close() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.runs.Wait()
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.state.Status())
}

func (s *server) ordersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.state.WorkingOrdersJSON()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "unable to encode orders")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case http.MethodPut:
		s.replaceOrders(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) replaceOrders(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEditBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	report, err := s.state.SetWorkingOrdersJSON(body)
	switch {
	case errors.Is(err, app.ErrNoOrders):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrEditRejected):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    err.Error(),
			"rejected": report.Rejected,
			"errors":   report.Errors,
		})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"orders": len(report.Orders),
			"errors": report.Errors,
		})
	}
}

func (s *server) originalOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.state.Orders())
}

func (s *server) validationErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.state.ValidationErrors())
}

type totalsResponse struct {
	Items      []totalsItem `json:"items"`
	TotalItems int          `json:"totalItems"`
}

type totalsItem struct {
	Title    string              `json:"title"`
	Variants []aggregate.Variant `json:"variants"`
}

// sortedTotals flattens a Totals map into collation order for clients that cannot
// rely on map key order.
func sortedTotals(t aggregate.Totals) totalsResponse {
	resp := totalsResponse{Items: []totalsItem{}, TotalItems: t.Count()}
	for _, title := range aggregate.SortedKeys(t) {
		resp.Items = append(resp.Items, totalsItem{Title: title, Variants: t[title].SortedVariants()})
	}
	return resp
}

func (s *server) totals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, sortedTotals(s.state.Totals()))
}

func (s *server) locationTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type locationTotals struct {
		Location string `json:"location"`
		totalsResponse
	}
	byLocation := s.state.LocationTotals()
	out := make([]locationTotals, 0, len(byLocation))
	for _, name := range aggregate.SortedKeys(byLocation) {
		out = append(out, locationTotals{Location: name, totalsResponse: sortedTotals(byLocation[name])})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) locationOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type customer struct {
		Key string `json:"key"`
		aggregate.CustomerOrder
	}
	type locationOrders struct {
		Location  string     `json:"location"`
		Customers []customer `json:"customers"`
	}
	byLocation := s.state.LocationOrders()
	out := make([]locationOrders, 0, len(byLocation))
	for _, name := range aggregate.SortedKeys(byLocation) {
		entry := locationOrders{Location: name, Customers: []customer{}}
		for _, key := range aggregate.SortedKeys(byLocation[name]) {
			entry.Customers = append(entry.Customers, customer{Key: key, CustomerOrder: byLocation[name][key]})
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) deliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	byLocation := s.state.LocationOrders()
	writeJSON(w, http.StatusOK, map[string]any{
		"locations": export.LocationViews(byLocation, s.locations),
		"header":    export.ManifestHeader,
		"rows":      nonNilRows(export.DeliveryRows(byLocation, s.locations, s.deliveryState)),
	})
}

func (s *server) deliveriesCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rows := export.DeliveryRows(s.state.LocationOrders(), s.locations, s.deliveryState)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="deliveries.csv"`)
	if err := export.WriteManifestCSV(w, rows); err != nil {
		s.log.Error("write deliveries csv", "error", err)
	}
}

func (s *server) workbook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	f, err := export.Workbook(export.WorkbookInput{
		Totals:         s.state.Totals(),
		LocationTotals: s.state.LocationTotals(),
		ByLocation:     s.state.LocationOrders(),
		Locations:      s.locations,
		DeliveryState:  s.deliveryState,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unable to build workbook")
		return
	}
	defer func() { _ = f.Close() }()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.xlsx"`)
	if _, err := f.WriteTo(w); err != nil {
		s.log.Error("write workbook", "error", err)
	}
}

// labelsHandler previews the slot layout on GET and renders the document on POST.
func (s *server) labelsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.state.CurrentLabels())
	case http.MethodPost:
		doc, err := s.state.Render(r.Context(), s.renderer)
		switch {
		case errors.Is(err, app.ErrNoOrders), errors.Is(err, render.ErrBusy):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, doc)
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func nonNilRows(rows [][]string) [][]string {
	if rows == nil {
		return [][]string{}
	}
	return rows
}

func parseBoolQueryValue(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
