package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandeypooja21/code-sync/internal/domain"
	httpHandler "github.com/pandeypooja21/code-sync/internal/handler/http"
	"github.com/pandeypooja21/code-sync/internal/middleware"
	"github.com/pandeypooja21/code-sync/internal/service"
	"github.com/pandeypooja21/code-sync/internal/store"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID, displayName string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":      userID,
		"display_name": displayName,
		"exp":          time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// newTestRouter wires the workspace endpoints against an in-memory store, the
// same routing shape the bootstrap sets up.
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	st := store.New()
	workspaceService := service.NewWorkspaceService(st, nil, nil)
	handler := httpHandler.NewWorkspaceHandler(workspaceService)

	router := gin.New()
	api := router.Group("/api").Use(middleware.Auth(testSecret))
	api.POST("/workspaces", handler.Create)
	api.GET("/workspaces/:id", handler.Get)
	api.DELETE("/workspaces/:id", handler.Delete)
	return router
}

func doRequest(router *gin.Engine, method, path, token string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestWorkspaceHandler_Create(t *testing.T) {
	router := newTestRouter()
	token := signToken(t, "alice", "Alice")

	w := doRequest(router, http.MethodPost, "/api/workspaces", token, []byte(`{"name":"my project"}`))
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "my project", snap.Name)
	assert.Equal(t, "alice", snap.OwnerID)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, "Alice", snap.Members[0].DisplayName)
}

func TestWorkspaceHandler_Create_MissingName(t *testing.T) {
	router := newTestRouter()
	token := signToken(t, "alice", "Alice")

	w := doRequest(router, http.MethodPost, "/api/workspaces", token, []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkspaceHandler_Auth(t *testing.T) {
	router := newTestRouter()

	w := doRequest(router, http.MethodPost, "/api/workspaces", "", []byte(`{"name":"x"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "no token")

	badToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "alice"})
	signed, err := badToken.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)
	w = doRequest(router, http.MethodPost, "/api/workspaces", signed, []byte(`{"name":"x"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "wrong signature")
}

func TestWorkspaceHandler_Get_ErrorMapping(t *testing.T) {
	router := newTestRouter()
	aliceToken := signToken(t, "alice", "Alice")
	bobToken := signToken(t, "bob", "Bob")

	w := doRequest(router, http.MethodPost, "/api/workspaces", aliceToken, []byte(`{"name":"p"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))

	w = doRequest(router, http.MethodGet, "/api/workspaces/"+snap.WorkspaceID, aliceToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Non-members are rejected, unknown workspaces are not found.
	w = doRequest(router, http.MethodGet, "/api/workspaces/"+snap.WorkspaceID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doRequest(router, http.MethodGet, "/api/workspaces/nope", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkspaceHandler_Delete(t *testing.T) {
	router := newTestRouter()
	aliceToken := signToken(t, "alice", "Alice")
	bobToken := signToken(t, "bob", "Bob")

	w := doRequest(router, http.MethodPost, "/api/workspaces", aliceToken, []byte(`{"name":"p"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))

	w = doRequest(router, http.MethodDelete, "/api/workspaces/"+snap.WorkspaceID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/workspaces/"+snap.WorkspaceID, aliceToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/workspaces/"+snap.WorkspaceID, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
