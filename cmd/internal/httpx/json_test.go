package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusConflict, "conflict", "email already exists")

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "conflict", body.Error.Code)
	assert.Equal(t, "email already exists", body.Error.Message)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	cases := []struct {
		name    string
		body    string
		max     int64
		wantErr bool
	}{
		{"ok", `{"email":"a@b.c"}`, 0, false},
		{"unknown field", `{"email":"a@b.c","admin":true}`, 0, true},
		{"trailing data", `{"email":"a@b.c"}{"email":"x"}`, 0, true},
		{"too large", `{"email":"` + strings.Repeat("a", 64) + `"}`, 16, true},
		{"not json", `email=a`, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			var p payload
			err := DecodeJSON(rr, r, tc.max, &p)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a@b.c", p.Email)
		})
	}
}
