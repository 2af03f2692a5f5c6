package ledger_api

import (
	"fmt"
	"net/http"

	"ticket-ledger/internal/ledger"
	"ticket-ledger/internal/models"
)

type organizerRequest struct {
	Address string `json:"address"`
}

type organizerResponse struct {
	Address  models.Address `json:"address"`
	Approved bool           `json:"approved"`
}

type createEventRequest struct {
	models.EventParams
	Fee uint64 `json:"fee,string"`
}

type createEventResponse struct {
	EventID uint64 `json:"eventId,string"`
}

type mintRequest struct {
	Seat    uint64 `json:"seat,string"`
	Payment uint64 `json:"payment,string"`
}

type mintResponse struct {
	TokenID uint64 `json:"tokenId,string"`
}

type seatsResponse struct {
	EventID uint64   `json:"eventId,string"`
	Taken   []string `json:"taken"`
}

type holdResponse struct {
	EventID uint64         `json:"eventId,string"`
	Seat    uint64         `json:"seat,string"`
	Holder  models.Address `json:"holder"`
}

func (h *Handler) ApproveOrganizer(w http.ResponseWriter, r *http.Request) {
	var req organizerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, "ApproveOrganizer", err)
		return
	}
	addr, err := models.ParseAddress(req.Address)
	if err != nil {
		h.writeError(w, "ApproveOrganizer", fmt.Errorf("%v: %w", err, ledger.ErrInvalidInput))
		return
	}
	if err := h.Ledger.ApproveOrganizer(r.Context(), caller(r), addr); err != nil {
		h.writeError(w, "ApproveOrganizer", err)
		return
	}
	h.ok(w, "Organizer approved", organizerResponse{Address: addr, Approved: true})
}

func (h *Handler) RevokeOrganizer(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.writeError(w, "RevokeOrganizer", err)
		return
	}
	if err := h.Ledger.RevokeOrganizer(r.Context(), caller(r), addr); err != nil {
		h.writeError(w, "RevokeOrganizer", err)
		return
	}
	h.ok(w, "Organizer revoked", organizerResponse{Address: addr, Approved: false})
}

func (h *Handler) GetOrganizer(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.writeError(w, "GetOrganizer", err)
		return
	}
	h.ok(w, "Organizer status", organizerResponse{Address: addr, Approved: h.Ledger.IsApprovedOrganizer(addr)})
}

func (h *Handler) GetOrganizerEvents(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.writeError(w, "GetOrganizerEvents", err)
		return
	}
	h.ok(w, "Organizer events", idStrings(h.Ledger.OrganizerEvents(addr)))
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, "CreateEvent", err)
		return
	}
	id, err := h.Ledger.CreateEvent(r.Context(), caller(r), req.EventParams, req.Fee)
	if err != nil {
		h.writeError(w, "CreateEvent", err)
		return
	}
	writeJSON(w, http.StatusCreated, successBody("Event created", createEventResponse{EventID: id}))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "eventId")
	if err != nil {
		h.writeError(w, "GetEvent", err)
		return
	}
	ev, err := h.Ledger.GetEvent(id)
	if err != nil {
		h.writeError(w, "GetEvent", err)
		return
	}
	h.ok(w, "Event details", ev)
}

func (h *Handler) GetSeats(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "eventId")
	if err != nil {
		h.writeError(w, "GetSeats", err)
		return
	}
	seats, err := h.Ledger.SeatsTaken(id)
	if err != nil {
		h.writeError(w, "GetSeats", err)
		return
	}
	h.ok(w, "Seats taken", seatsResponse{EventID: id, Taken: idStrings(seats)})
}

func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "eventId")
	if err != nil {
		h.writeError(w, "CancelEvent", err)
		return
	}
	if err := h.Ledger.CancelEvent(r.Context(), caller(r), id); err != nil {
		h.writeError(w, "CancelEvent", err)
		return
	}
	h.ok(w, "Event cancelled", createEventResponse{EventID: id})
}

func (h *Handler) MarkOccurred(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "eventId")
	if err != nil {
		h.writeError(w, "MarkOccurred", err)
		return
	}
	if err := h.Ledger.MarkEventOccurred(r.Context(), caller(r), id); err != nil {
		h.writeError(w, "MarkOccurred", err)
		return
	}
	h.ok(w, "Event marked as occurred", createEventResponse{EventID: id})
}

func (h *Handler) WithdrawOrganizer(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "eventId")
	if err != nil {
		h.writeError(w, "WithdrawOrganizer", err)
		return
	}
	amount, err := h.Ledger.WithdrawOrganizer(r.Context(), caller(r), id)
	if err != nil {
		h.writeError(w, "WithdrawOrganizer", err)
		return
	}
	h.ok(w, "Escrow credited to payout account", amountResponse{Amount: amount})
}

func (h *Handler) seatParams(r *http.Request) (uint64, uint64, error) {
	eventID, err := uintParam(r, "eventId")
	if err != nil {
		return 0, 0, err
	}
	seat, err := uintParam(r, "seat")
	if err != nil {
		return 0, 0, err
	}
	return eventID, seat, nil
}

func (h *Handler) HoldSeat(w http.ResponseWriter, r *http.Request) {
	if h.Holds == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("Seat holds are disabled", "Unavailable"))
		return
	}
	eventID, seat, err := h.seatParams(r)
	if err != nil {
		h.writeError(w, "HoldSeat", err)
		return
	}
	ev, err := h.Ledger.GetEvent(eventID)
	if err != nil {
		h.writeError(w, "HoldSeat", err)
		return
	}
	if seat >= ev.MaxSeats {
		h.writeError(w, "HoldSeat", fmt.Errorf("seat %d of %d: %w", seat, ev.MaxSeats, ledger.ErrSeatOutOfRange))
		return
	}

	held, err := h.Holds.Hold(r.Context(), eventID, seat, caller(r))
	if err != nil {
		h.writeError(w, "HoldSeat", err)
		return
	}
	if !held {
		current, _ := h.Holds.Holder(r.Context(), eventID, seat)
		resp := errorBody(fmt.Sprintf("seat %d of event %d is held by another buyer", seat, eventID), "SeatHeld")
		resp.Data = holdResponse{EventID: eventID, Seat: seat, Holder: current}
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	h.ok(w, "Seat held", holdResponse{EventID: eventID, Seat: seat, Holder: caller(r)})
}

func (h *Handler) ReleaseSeat(w http.ResponseWriter, r *http.Request) {
	if h.Holds == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("Seat holds are disabled", "Unavailable"))
		return
	}
	eventID, seat, err := h.seatParams(r)
	if err != nil {
		h.writeError(w, "ReleaseSeat", err)
		return
	}
	if err := h.Holds.Release(r.Context(), eventID, seat, caller(r)); err != nil {
		h.writeError(w, "ReleaseSeat", err)
		return
	}
	h.ok(w, "Seat released", holdResponse{EventID: eventID, Seat: seat})
}

func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	eventID, err := uintParam(r, "eventId")
	if err != nil {
		h.writeError(w, "Mint", err)
		return
	}
	var req mintRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, "Mint", err)
		return
	}

	buyer := caller(r)
	if h.Holds != nil {
		if err := h.Holds.CheckMint(r.Context(), eventID, req.Seat, buyer); err != nil {
			h.writeError(w, "Mint", err)
			return
		}
	}

	tokenID, err := h.Ledger.Mint(r.Context(), buyer, eventID, req.Seat, req.Payment)
	if err != nil {
		h.writeError(w, "Mint", err)
		return
	}

	if h.Holds != nil {
		if err := h.Holds.Release(r.Context(), eventID, req.Seat, buyer); err != nil {
			h.Logger.Warn("HOLDS", fmt.Sprintf("Mint of ticket %d left a stale hold: %v", tokenID, err))
		}
	}
	writeJSON(w, http.StatusCreated, successBody("Ticket minted", mintResponse{TokenID: tokenID}))
}
