package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponseCarriesKindAndRequestID(t *testing.T) {
	resp := ErrorResponse("seat 3 of event 1 is taken", "SeatTaken").WithRequestID("req-7")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.Equal(t, false, body["success"])
	assert.Equal(t, "SeatTaken", body["error"])
	assert.Equal(t, "req-7", body["requestId"])
	assert.NotContains(t, body, "data")
	assert.Equal(t, "UTC", resp.Timestamp.Location().String())
}

func TestSuccessResponseOmitsEmptyRequestID(t *testing.T) {
	raw, err := json.Marshal(SuccessResponse("ok", map[string]string{"tokenId": "1"}))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "requestId")
	assert.Contains(t, string(raw), `"tokenId":"1"`)
}
