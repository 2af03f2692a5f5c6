package ledger_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"ticket-ledger/internal/auth"
	"ticket-ledger/internal/holds"
	"ticket-ledger/internal/ledger"
	"ticket-ledger/internal/logger"
	"ticket-ledger/internal/models"
	"ticket-ledger/internal/sse"
	qr "ticket-ledger/internal/tickets/qr_generator"
	"ticket-ledger/internal/utils"
)

const maxEntriesPage = 500

type Handler struct {
	Ledger *ledger.Ledger
	// Holds is optional; without it seats are first come, first served.
	Holds       *holds.Holds
	QRGenerator *qr.QRGenerator
	// Stream must also be registered as a ledger publisher to receive entries.
	Stream *sse.JournalEmitter
	Logger *logger.Logger
	Clock  func() time.Time
}

func NewHandler(l *ledger.Ledger, h *holds.Holds, q *qr.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{
		Ledger:      l,
		Holds:       h,
		QRGenerator: q,
		Logger:      log,
		Clock:       time.Now,
	}
}

// RegisterRoutes mounts reads publicly and mutations behind authMW.
func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/ledger", func(r chi.Router) {
		r.Use(h.requestLogger)

		r.Get("/stats", h.GetStats)
		r.Get("/organizers/{address}", h.GetOrganizer)
		r.Get("/organizers/{address}/events", h.GetOrganizerEvents)
		r.Get("/events/{eventId}", h.GetEvent)
		r.Get("/events/{eventId}/seats", h.GetSeats)
		r.Get("/tickets/{tokenId}", h.GetTicket)
		r.Get("/tickets/{tokenId}/owner", h.GetOwner)
		r.Get("/tickets/{tokenId}/checked-in", h.GetCheckedIn)
		r.Get("/tickets/{tokenId}/metadata", h.GetMetadata)
		r.Get("/owners/{address}/tickets", h.GetTicketsOf)
		r.Get("/payouts/{address}", h.GetPayout)
		r.Get("/entries", h.GetEntries)
		r.Get("/entries/stream", h.StreamEntries)

		r.Group(func(r chi.Router) {
			r.Use(authMW)

			r.Post("/organizers", h.ApproveOrganizer)
			r.Delete("/organizers/{address}", h.RevokeOrganizer)

			r.Post("/events", h.CreateEvent)
			r.Post("/events/{eventId}/cancel", h.CancelEvent)
			r.Post("/events/{eventId}/occurred", h.MarkOccurred)
			r.Post("/events/{eventId}/withdraw", h.WithdrawOrganizer)
			r.Post("/events/{eventId}/seats/{seat}/hold", h.HoldSeat)
			r.Delete("/events/{eventId}/seats/{seat}/hold", h.ReleaseSeat)
			r.Post("/events/{eventId}/mint", h.Mint)

			r.Get("/tickets/{tokenId}/pass", h.GetPass)
			r.Post("/tickets/{tokenId}/listing", h.ListForSale)
			r.Delete("/tickets/{tokenId}/listing", h.Unlist)
			r.Post("/tickets/{tokenId}/buy", h.BuyResale)
			r.Post("/tickets/{tokenId}/refund", h.Refund)
			r.Post("/tickets/{tokenId}/checkin", h.CheckIn)
			r.Post("/checkin/pass", h.CheckInPass)

			r.Post("/payouts/claim", h.ClaimPayout)
			r.Post("/fees/withdraw", h.WithdrawFees)
		})
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(utils.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(utils.RequestIDHeader, requestID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.Logger.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		h.Logger.Debug("API", fmt.Sprintf("request %s served %d bytes", requestID, ww.BytesWritten()))
	})
}

// statusFor maps ledger error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, qr.ErrInvalidPass):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientPayment), errors.Is(err, ledger.ErrInsufficientFee):
		return http.StatusPaymentRequired
	case errors.Is(err, holds.ErrHeld):
		return http.StatusConflict
	case ledger.IsRejection(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, holds.ErrHeld):
		return "SeatHeld"
	case errors.Is(err, qr.ErrInvalidPass):
		return "InvalidPass"
	}
	return ledger.Code(err)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		message = "internal error"
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s rejected: %v", op, err))
	}
	writeJSON(w, status, utils.ErrorResponse(message, errorCode(err)))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	if resp, ok := body.(utils.APIResponse); ok {
		body = resp.WithRequestID(w.Header().Get(utils.RequestIDHeader))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) ok(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, successBody(message, data))
}

func successBody(message string, data interface{}) utils.APIResponse {
	return utils.SuccessResponse(message, data)
}

func errorBody(message, code string) utils.APIResponse {
	return utils.ErrorResponse(message, code)
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, ledger.ErrInvalidInput)
	}
	return nil
}

func uintParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, ledger.ErrInvalidInput)
	}
	return v, nil
}

func addressParam(r *http.Request) (models.Address, error) {
	addr, err := models.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ledger.ErrInvalidInput)
	}
	return addr, nil
}

func caller(r *http.Request) models.Address {
	return auth.CallerAddress(r.Context())
}

func idStrings(ids []uint64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatUint(id, 10)
	}
	return out
}

type amountResponse struct {
	Amount uint64 `json:"amount,string"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "Ledger statistics", h.Ledger.Stats())
}

func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	from := uint64(1)
	if raw := r.URL.Query().Get("from"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, "GetEntries", fmt.Errorf("invalid from %q: %w", raw, ledger.ErrInvalidInput))
			return
		}
		from = v
	}
	limit := maxEntriesPage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			h.writeError(w, "GetEntries", fmt.Errorf("invalid limit %q: %w", raw, ledger.ErrInvalidInput))
			return
		}
		if v < limit {
			limit = v
		}
	}

	entries := h.Ledger.Entries(from, limit)
	if entries == nil {
		entries = []models.Entry{}
	}
	h.ok(w, fmt.Sprintf("%d journal entries", len(entries)), entries)
}
