package presencehandler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presencehub/internal/presence"
)

type fixedConns int

func (f fixedConns) ConnectionCount() int { return int(f) }

func newEngine(t *testing.T) (*gin.Engine, *presence.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := presence.NewRegistry()
	reg.Register("c1", "alice")
	reg.Register("c2", "bob")
	_, err := reg.CreateGroup("g1", "Team", "c1")
	require.NoError(t, err)
	_, err = reg.JoinGroup("g1", "c2")
	require.NoError(t, err)

	engine := gin.New()
	New(reg, fixedConns(3)).Register(engine)
	return engine, reg
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandler(t *testing.T) {
	engine, _ := newEngine(t)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{
			name:     "health",
			path:     "/healthz",
			wantCode: http.StatusOK,
			wantBody: `{"status":"ok","connections":3,"users":2,"groups":1}`,
		},
		{
			name:     "users",
			path:     "/users",
			wantCode: http.StatusOK,
			wantBody: `[{"id":"c1","displayName":"alice"},{"id":"c2","displayName":"bob"}]`,
		},
		{
			name:     "groups",
			path:     "/groups",
			wantCode: http.StatusOK,
			wantBody: `[{"id":"g1","name":"Team","createdBy":"c1","members":["c1","c2"]}]`,
		},
		{
			name:     "group",
			path:     "/groups/g1",
			wantCode: http.StatusOK,
			wantBody: `{"id":"g1","name":"Team","createdBy":"c1","members":["c1","c2"]}`,
		},
		{
			name:     "group members",
			path:     "/groups/g1/members",
			wantCode: http.StatusOK,
			wantBody: `{"group":{"id":"g1","name":"Team","createdBy":"c1","members":["c1","c2"]},
			            "members":[{"id":"c1","displayName":"alice"},{"id":"c2","displayName":"bob"}]}`,
		},
		{
			name:     "unknown group",
			path:     "/groups/nope",
			wantCode: http.StatusNotFound,
			wantBody: `{"error":"group not found"}`,
		},
		{
			name:     "unknown group members",
			path:     "/groups/nope/members",
			wantCode: http.StatusNotFound,
			wantBody: `{"error":"group not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(engine, tt.path)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestHandler_EmptyRegistryListsAsArrays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	New(presence.NewRegistry(), fixedConns(0)).Register(engine)

	assert.JSONEq(t, `[]`, get(engine, "/users").Body.String())
	assert.JSONEq(t, `[]`, get(engine, "/groups").Body.String())
}
