// Package handlers implements the JSON HTTP API over the record store.
//
// Every route is served both at its bare path and under /api. Reads degrade to
// empty or default values while the store is disconnected; writes fail with 503.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/mpa-academy/schooladmin/internal/connection"
	"github.com/mpa-academy/schooladmin/internal/models"
	"github.com/mpa-academy/schooladmin/internal/rollover"
	"github.com/mpa-academy/schooladmin/internal/storage"
	"github.com/mpa-academy/schooladmin/internal/validation"
)

// StoreProvider hands out the current store connection.
// *connection.Manager implements it.
type StoreProvider interface {
	Store() (storage.Store, bool)
	State() connection.State
}

// Handler serves the HTTP API.
type Handler struct {
	stores    StoreProvider
	validate  *validation.Validator
	rollover  *rollover.Service
	opTimeout time.Duration
	now       func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithOpTimeout bounds the store work done for a single request.
// The academic year rollover is not bounded.
func WithOpTimeout(d time.Duration) Option {
	return func(h *Handler) { h.opTimeout = d }
}

// WithClock overrides the clock used for default term settings.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates a Handler. The rollover service is shared with any other caller
// in the process so concurrent rollovers are rejected.
func New(stores StoreProvider, validate *validation.Validator, ro *rollover.Service, opts ...Option) *Handler {
	h := &Handler{
		stores:    stores,
		validate:  validate,
		rollover:  ro,
		opTimeout: 5 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds every route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	routes := map[string]http.Handler{
		"/learners": &resource[models.Learner, *models.Learner]{
			h:          h,
			noun:       "learner",
			plural:     "learners",
			records:    storage.Records.Learners,
			beforeSave: prepareLearner,
		},
		"/fees": &resource[models.Fee, *models.Fee]{
			h:       h,
			noun:    "fee",
			plural:  "fees",
			records: storage.Records.Fees,
			beforeSave: func(ctx context.Context, store storage.Store, fee *models.Fee, _ bool) error {
				return checkLearnerExists(ctx, store, fee.AdmissionNo)
			},
		},
		"/books": &resource[models.Book, *models.Book]{
			h:       h,
			noun:    "book",
			plural:  "books",
			records: storage.Records.Books,
			beforeSave: func(ctx context.Context, store storage.Store, book *models.Book, _ bool) error {
				return checkLearnerExists(ctx, store, book.AdmissionNo)
			},
		},
		"/classBooks": &resource[models.ClassBook, *models.ClassBook]{
			h:       h,
			noun:    "class book",
			plural:  "class books",
			records: storage.Records.ClassBooks,
		},
		"/feeStructure":    http.HandlerFunc(h.feeStructure),
		"/termSettings":    http.HandlerFunc(h.termSettings),
		"/learnerArchives": http.HandlerFunc(h.learnerArchives),
		"/health":          http.HandlerFunc(h.health),
	}

	for path, handler := range routes {
		handler = h.withTimeout(handler)
		mux.Handle(path, handler)
		mux.Handle("/api"+path, handler)
	}

	// The rollover touches every learner in one transaction, so it is bounded
	// only by the client's request.
	newYear := http.HandlerFunc(h.newAcademicYear)
	mux.Handle("/newAcademicYear", newYear)
	mux.Handle("/api/newAcademicYear", newYear)
}

// withTimeout bounds the request context by the store operation timeout.
func (h *Handler) withTimeout(next http.Handler) http.Handler {
	if h.opTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.opTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
