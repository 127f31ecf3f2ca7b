package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/mocks"
	"dm-service/internal/telemetry"
)

type staticStats map[string]int

func (s staticStats) Stats() map[string]int { return s }

func TestDebugStreamsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.log", "dm-service", "test")
	router := gin.New()
	router.Use(withSession(testSession))
	RegisterDebugRoutes(router, staticStats{"conversation": 2, "chats": 1}, emitter, true)

	publisher.On("Publish", mock.Anything, "audit.log", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.UserID != nil && *env.UserID == "u1" &&
			env.RequestID == "req-7" &&
			strings.Contains(env.Payload.Text, "3 open")
	})).Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/debug/streams", nil)
	req.Header.Set("X-Request-ID", "req-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Streams map[string]int `json:"streams"`
		Total   int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 2, body.Streams["conversation"])
	publisher.AssertExpectations(t)
}

func TestDebugStreamsWithoutAuditEmitter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterDebugRoutes(router, staticStats{}, nil, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/streams", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"streams":{},"total":0}`, rec.Body.String())
}

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterDebugRoutes(router, staticStats{}, nil, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/streams", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
