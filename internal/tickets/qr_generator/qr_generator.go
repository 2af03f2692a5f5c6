package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"ticket-ledger/internal/models"
)

// ErrInvalidPass covers every pass that fails to decode or authenticate.
var ErrInvalidPass = errors.New("invalid entry pass")

// Pass is the sealed content of an entry QR code.
type Pass struct {
	ID       string         `json:"id"`
	TokenID  uint64         `json:"tokenId,string"`
	EventID  uint64         `json:"eventId,string"`
	Owner    models.Address `json:"owner"`
	IssuedAt int64          `json:"issuedAt"`
}

type QRGenerator struct {
	aead cipher.AEAD
}

func NewQRGenerator(secret string) (*QRGenerator, error) {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &QRGenerator{aead: aead}, nil
}

// IssuePass seals a pass for the ticket's current owner.
func (q *QRGenerator) IssuePass(ticket models.Ticket, now time.Time) (string, error) {
	data, err := json.Marshal(Pass{
		ID:       uuid.NewString(),
		TokenID:  ticket.TokenID,
		EventID:  ticket.OccasionID,
		Owner:    ticket.Owner,
		IssuedAt: now.Unix(),
	})
	if err != nil {
		return "", err
	}

	nonce := make([]byte, q.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := q.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// OpenPass authenticates and decodes a pass produced by IssuePass.
func (q *QRGenerator) OpenPass(token string) (Pass, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Pass{}, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	ns := q.aead.NonceSize()
	if len(raw) <= ns {
		return Pass{}, fmt.Errorf("%w: too short", ErrInvalidPass)
	}
	data, err := q.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return Pass{}, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}

	var p Pass
	if err := json.Unmarshal(data, &p); err != nil {
		return Pass{}, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	return p, nil
}

// GenerateEncryptedQR renders a freshly issued pass as a PNG QR code.
func (q *QRGenerator) GenerateEncryptedQR(ticket models.Ticket, now time.Time) ([]byte, string, error) {
	token, err := q.IssuePass(ticket, now)
	if err != nil {
		return nil, "", err
	}
	png, err := qrcode.Encode(token, qrcode.Medium, 256)
	if err != nil {
		return nil, "", err
	}
	return png, token, nil
}
