package ledger_api

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"ticket-ledger/internal/ledger"
	"ticket-ledger/internal/models"
	"ticket-ledger/internal/tickets/metadata"
	qr "ticket-ledger/internal/tickets/qr_generator"
)

type listingRequest struct {
	Price uint64 `json:"price,string"`
}

type buyRequest struct {
	Payment uint64 `json:"payment,string"`
}

type passRequest struct {
	Pass string `json:"pass"`
}

type ownerResponse struct {
	TokenID uint64         `json:"tokenId,string"`
	Owner   models.Address `json:"owner"`
}

type checkedInResponse struct {
	TokenID   uint64 `json:"tokenId,string"`
	CheckedIn bool   `json:"checkedIn"`
}

type metadataResponse struct {
	Document metadata.Document `json:"document"`
	TokenURI string            `json:"tokenUri"`
}

type passResponse struct {
	TokenID uint64 `json:"tokenId,string"`
	Pass    string `json:"pass"`
	// QRCode is a base64 PNG encoding of Pass.
	QRCode string `json:"qrCode"`
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "tokenId")
	if err != nil {
		h.writeError(w, "GetTicket", err)
		return
	}
	t, err := h.Ledger.GetTicket(id)
	if err != nil {
		h.writeError(w, "GetTicket", err)
		return
	}
	h.ok(w, "Ticket details", t)
}

func (h *Handler) GetOwner(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "tokenId")
	if err != nil {
		h.writeError(w, "GetOwner", err)
		return
	}
	owner, err := h.Ledger.OwnerOf(id)
	if err != nil {
		h.writeError(w, "GetOwner", err)
		return
	}
	h.ok(w, "Ticket owner", ownerResponse{TokenID: id, Owner: owner})
}

func (h *Handler) GetCheckedIn(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "tokenId")
	if err != nil {
		h.writeError(w, "GetCheckedIn", err)
		return
	}
	checkedIn, err := h.Ledger.IsCheckedIn(id)
	if err != nil {
		h.writeError(w, "GetCheckedIn", err)
		return
	}
	h.ok(w, "Check-in status", checkedInResponse{TokenID: id, CheckedIn: checkedIn})
}

func (h *Handler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "tokenId")
	if err != nil {
		h.writeError(w, "GetMetadata", err)
		return
	}
	t, err := h.Ledger.GetTicket(id)
	if err != nil {
		h.writeError(w, "GetMetadata", err)
		return
	}
	ev, err := h.Ledger.GetEvent(t.OccasionID)
	if err != nil {
		h.writeError(w, "GetMetadata", err)
		return
	}
	uri, err := metadata.TokenURI(t, ev)
	if err != nil {
		h.writeError(w, "GetMetadata", err)
		return
	}
	h.ok(w, "Ticket metadata", metadataResponse{Document: metadata.Build(t, ev), TokenURI: uri})
}

func (h *Handler) GetTicketsOf(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.writeError(w, "GetTicketsOf", err)
		return
	}
	h.ok(w, "Tickets owned", idStrings(h.Ledger.TicketsOf(addr)))
}

// GetPass issues a sealed entry pass for the caller's own ticket.
func (h *Handler) GetPass(w http.ResponseWriter, r *http.Request) {
	if h.QRGenerator == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("Entry passes are disabled", "Unavailable"))
		return
	}
	id, err := uintParam(r, "tokenId")
	if err != nil {
		h.writeError(w, "GetPass", err)
		return
	}
	t, err := h.Ledger.GetTicket(id)
	if err != nil {
		h.writeError(w, "GetPass", err)
		return
	}
	if t.Owner != caller(r) {
		h.writeError(w, "GetPass", fmt.Errorf("ticket %d: %s is not the owner: %w", id, caller(r), ledger.ErrUnauthorized))
		return
	}
	if t.Refunded || t.CheckedIn {
		h.writeError(w, "GetPass", fmt.Errorf("ticket %d can no longer be used for entry: %w", id, ledger.ErrInvalidState))
		return
	}

	png, token, err := h.QRGenerator.GenerateEncryptedQR(t, h.Clock())
	if err != nil {
		h.writeError(w, "GetPass", fmt.Errorf("failed to generate entry pass: %w", err))
		return
	}
	h.Logger.LogSecurity("PASS_ISSUED", fmt.Sprintf("ticket %d for %s", id, t.Owner))
	h.ok(w, "Entry pass issued", passResponse{
		TokenID: id,
		Pass:    token,
		QRCode:  base64.StdEncoding.EncodeToString(png),
	})
}

func (h *Handler) ListForSale(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "tokenId")
	if err != nil {
		h.writeError(w, "ListForSale", err)
		return
	}
	var req listingRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, "ListForSale", err)
		return
	}
	if err := h.Ledger.ListForSale(r.Context(), caller(r), id, req.Price); err != nil {
		h.writeError(w, "ListForSale", err)
		return
	}
	h.ok(w, "Ticket listed for resale", mintResponse{TokenID: id})
}

func (h *Handler) Unlist(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "tokenId")
	if err != nil {
		h.writeError(w, "Unlist", err)
		return
	}
	if err := h.Ledger.Unlist(r.Context(), caller(r), id); err != nil {
		h.writeError(w, "Unlist", err)
		return
	}
	h.ok(w, "Ticket listing removed", mintResponse{TokenID: id})
}

func (h *Handler) BuyResale(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "tokenId")
	if err != nil {
		h.writeError(w, "BuyResale", err)
		return
	}
	var req buyRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, "BuyResale", err)
		return
	}
	if err := h.Ledger.BuyResale(r.Context(), caller(r), id, req.Payment); err != nil {
		h.writeError(w, "BuyResale", err)
		return
	}
	h.ok(w, "Ticket purchased", ownerResponse{TokenID: id, Owner: caller(r)})
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "tokenId")
	if err != nil {
		h.writeError(w, "Refund", err)
		return
	}
	amount, err := h.Ledger.RefundAttendee(r.Context(), caller(r), id)
	if err != nil {
		h.writeError(w, "Refund", err)
		return
	}
	h.ok(w, "Refund credited to payout account", amountResponse{Amount: amount})
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "tokenId")
	if err != nil {
		h.writeError(w, "CheckIn", err)
		return
	}
	if err := h.Ledger.CheckIn(r.Context(), caller(r), id); err != nil {
		h.writeError(w, "CheckIn", err)
		return
	}
	h.ok(w, "Ticket checked in", checkedInResponse{TokenID: id, CheckedIn: true})
}

// CheckInPass checks in the ticket named by a scanned entry pass. A pass stops
// working once the ticket changes hands.
func (h *Handler) CheckInPass(w http.ResponseWriter, r *http.Request) {
	if h.QRGenerator == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("Entry passes are disabled", "Unavailable"))
		return
	}
	var req passRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, "CheckInPass", err)
		return
	}
	pass, err := h.QRGenerator.OpenPass(req.Pass)
	if err != nil {
		h.Logger.LogSecurity("PASS_REJECTED", err.Error())
		h.writeError(w, "CheckInPass", err)
		return
	}

	t, err := h.Ledger.GetTicket(pass.TokenID)
	if err != nil {
		h.writeError(w, "CheckInPass", err)
		return
	}
	if t.OccasionID != pass.EventID {
		h.writeError(w, "CheckInPass", fmt.Errorf("%w: event mismatch", qr.ErrInvalidPass))
		return
	}
	if t.Owner != pass.Owner {
		h.Logger.LogSecurity("PASS_STALE", fmt.Sprintf("ticket %d pass issued to %s, owner is %s", t.TokenID, pass.Owner, t.Owner))
		h.writeError(w, "CheckInPass", fmt.Errorf("ticket %d changed hands after the pass was issued: %w", t.TokenID, ledger.ErrInvalidState))
		return
	}

	if err := h.Ledger.CheckIn(r.Context(), caller(r), pass.TokenID); err != nil {
		h.writeError(w, "CheckInPass", err)
		return
	}
	h.ok(w, "Ticket checked in", checkedInResponse{TokenID: pass.TokenID, CheckedIn: true})
}
