package metadata

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"math/big"

	"github.com/shopspring/decimal"

	"ticket-ledger/internal/models"
)

// weiDecimals is the number of decimal places between wei and ETH.
const weiDecimals = 18

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Document is the token metadata served for a ticket.
type Document struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// FormatEther renders a wei amount as a decimal ETH string.
func FormatEther(wei uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(wei), -weiDecimals).String()
}

func status(t models.Ticket, ev models.Event) string {
	switch {
	case t.Refunded:
		return "Refunded"
	case t.CheckedIn:
		return "Checked in"
	case ev.Cancelled:
		return "Event cancelled"
	case t.IsForSale:
		return "Listed for resale"
	default:
		return "Valid"
	}
}

// Build assembles the metadata document. The event's image URL wins when
// set; otherwise a generated SVG ticket face is embedded.
func Build(t models.Ticket, ev models.Event) Document {
	image := ev.ImageURL
	if image == "" {
		image = "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(SVG(t, ev)))
	}

	return Document{
		Name:        fmt.Sprintf("%s #%d", ev.Title, t.TokenID),
		Description: fmt.Sprintf("Seat %d at %s, %s %s", t.SeatNumber, ev.Location, ev.Date, ev.Time),
		Image:       image,
		Attributes: []Attribute{
			{TraitType: "Event", Value: ev.Title},
			{TraitType: "Event ID", Value: fmt.Sprintf("%d", ev.ID)},
			{TraitType: "Seat", Value: fmt.Sprintf("%d", t.SeatNumber)},
			{TraitType: "Date", Value: ev.Date},
			{TraitType: "Time", Value: ev.Time},
			{TraitType: "Location", Value: ev.Location},
			{TraitType: "Price (ETH)", Value: FormatEther(ev.Price)},
			{TraitType: "Status", Value: status(t, ev)},
		},
	}
}

// TokenURI encodes the document as a base64 JSON data URI.
func TokenURI(t models.Ticket, ev models.Event) (string, error) {
	data, err := json.Marshal(Build(t, ev))
	if err != nil {
		return "", err
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// SVG draws a plain ticket face with the event and seat.
func SVG(t models.Ticket, ev models.Event) string {
	esc := html.EscapeString
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="400" height="220" viewBox="0 0 400 220">`+
		`<rect width="400" height="220" rx="16" fill="#1e1b4b"/>`+
		`<text x="24" y="48" font-family="sans-serif" font-size="22" fill="#ffffff">%s</text>`+
		`<text x="24" y="84" font-family="sans-serif" font-size="14" fill="#c7d2fe">%s %s</text>`+
		`<text x="24" y="108" font-family="sans-serif" font-size="14" fill="#c7d2fe">%s</text>`+
		`<text x="24" y="160" font-family="sans-serif" font-size="28" fill="#fbbf24">Seat %d</text>`+
		`<text x="24" y="196" font-family="monospace" font-size="12" fill="#a5b4fc">Ticket #%d · %s</text>`+
		`</svg>`,
		esc(ev.Title), esc(ev.Date), esc(ev.Time), esc(ev.Location), t.SeatNumber, t.TokenID, esc(status(t, ev)))
}
