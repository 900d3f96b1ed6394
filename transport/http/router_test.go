package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/gamegate/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func init() {
	gin.SetMode(gin.TestMode)
}

func get(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := SetupRouter(&service.Stats{}, testSecret)
	rec := get(router, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsRequiresToken(t *testing.T) {
	router := SetupRouter(&service.Stats{}, testSecret)

	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/stats", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/stats", "garbage").Code)

	other, err := IssueOperatorToken([]byte("another-secret-another-secret-xx"), "ops", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/stats", other).Code)

	expired, err := IssueOperatorToken(testSecret, "ops", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/stats", expired).Code)

	wrongAudience, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{"someone-else"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(testSecret)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/stats", wrongAudience).Code)
}

func TestStats(t *testing.T) {
	stats := &service.Stats{}
	stats.Connections.Add(3)
	stats.Admitted.Add(2)
	stats.Solved.Add(1)
	router := SetupRouter(stats, testSecret)

	token, err := IssueOperatorToken(testSecret, "alice", time.Minute)
	require.NoError(t, err)

	rec := get(router, "/api/stats", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Operator string                `json:"operator"`
		Stats    service.StatsSnapshot `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.Operator)
	assert.Equal(t, int64(3), body.Stats.Connections)
	assert.Equal(t, int64(2), body.Stats.Admitted)
	assert.Equal(t, int64(1), body.Stats.Solved)
}
