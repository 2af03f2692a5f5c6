package qr_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-ledger/internal/models"
	qr "ticket-ledger/internal/tickets/qr_generator"
)

var ticket = models.Ticket{
	TokenID:    12,
	OccasionID: 3,
	SeatNumber: 7,
	Owner:      "0x00000000000000000000000000000000000000c3",
}

func TestPassRoundTrip(t *testing.T) {
	gen, err := qr.NewQRGenerator("test-secret-key")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	token, err := gen.IssuePass(ticket, now)
	require.NoError(t, err)

	pass, err := gen.OpenPass(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), pass.TokenID)
	assert.Equal(t, uint64(3), pass.EventID)
	assert.Equal(t, ticket.Owner, pass.Owner)
	assert.Equal(t, now.Unix(), pass.IssuedAt)
	assert.NotEmpty(t, pass.ID)

	again, err := gen.IssuePass(ticket, now)
	require.NoError(t, err)
	assert.NotEqual(t, token, again, "every pass gets a fresh nonce")
}

func TestPassTamperRejected(t *testing.T) {
	gen, err := qr.NewQRGenerator("test-secret-key")
	require.NoError(t, err)
	token, err := gen.IssuePass(ticket, time.Now())
	require.NoError(t, err)

	b := []byte(token)
	idx := len(b) / 2
	if b[idx] == 'A' {
		b[idx] = 'B'
	} else {
		b[idx] = 'A'
	}
	_, err = gen.OpenPass(string(b))
	assert.ErrorIs(t, err, qr.ErrInvalidPass)

	_, err = gen.OpenPass("!!not-base64!!")
	assert.ErrorIs(t, err, qr.ErrInvalidPass)

	_, err = gen.OpenPass("")
	assert.ErrorIs(t, err, qr.ErrInvalidPass)

	other, err := qr.NewQRGenerator("another-secret")
	require.NoError(t, err)
	_, err = other.OpenPass(token)
	assert.ErrorIs(t, err, qr.ErrInvalidPass)
}

func TestGenerateEncryptedQR(t *testing.T) {
	gen, err := qr.NewQRGenerator("test-secret-key")
	require.NoError(t, err)

	png, token, err := gen.GenerateEncryptedQR(ticket, time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	pass, err := gen.OpenPass(token)
	require.NoError(t, err)
	assert.Equal(t, ticket.TokenID, pass.TokenID)
}
