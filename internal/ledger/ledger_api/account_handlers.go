package ledger_api

import (
	"net/http"

	"ticket-ledger/internal/models"
)

type payoutResponse struct {
	Address models.Address `json:"address"`
	Pending uint64         `json:"pending,string"`
}

func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.writeError(w, "GetPayout", err)
		return
	}
	h.ok(w, "Pending payout", payoutResponse{Address: addr, Pending: h.Ledger.PendingPayout(addr)})
}

func (h *Handler) ClaimPayout(w http.ResponseWriter, r *http.Request) {
	amount, err := h.Ledger.ClaimPayout(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, "ClaimPayout", err)
		return
	}
	h.ok(w, "Payout claimed", amountResponse{Amount: amount})
}

func (h *Handler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	amount, err := h.Ledger.WithdrawFees(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, "WithdrawFees", err)
		return
	}
	h.ok(w, "Fees credited to administrator payout account", amountResponse{Amount: amount})
}
