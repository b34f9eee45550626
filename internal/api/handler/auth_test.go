package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthHandler() *Handler {
	return &Handler{JWTSecret: []byte("test-secret")}
}

func TestJWTRoundTrip(t *testing.T) {
	h := newAuthHandler()

	token, err := h.generateJWT("anon-123")
	require.NoError(t, err)

	anonID, err := h.validateAndGetAnonID(token)
	require.NoError(t, err)
	assert.Equal(t, "anon-123", anonID)
}

func TestJWTWrongSecretRejected(t *testing.T) {
	h := newAuthHandler()
	token, err := h.generateJWT("anon-123")
	require.NoError(t, err)

	other := &Handler{JWTSecret: []byte("different-secret")}
	_, err = other.validateAndGetAnonID(token)
	assert.Error(t, err)
}

func TestJWTGarbageRejected(t *testing.T) {
	h := newAuthHandler()
	_, err := h.validateAndGetAnonID("not.a.token")
	assert.Error(t, err)
	_, err = h.validateAndGetAnonID("")
	assert.Error(t, err)
}

func TestGetAnonID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAuthHandler()

	router := gin.New()
	router.GET("/anonid", h.GetAnonID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/anonid", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Token  string `json:"token"`
		AnonID string `json:"anon_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	require.NotEmpty(t, body.AnonID)

	// The issued token authenticates as the issued anon id.
	anonID, err := h.validateAndGetAnonID(body.Token)
	require.NoError(t, err)
	assert.Equal(t, body.AnonID, anonID)
}
