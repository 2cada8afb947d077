package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prepdeck/prepdeck/internal/auth"
	"github.com/prepdeck/prepdeck/internal/health"
	"github.com/prepdeck/prepdeck/internal/prep/audit"
	"github.com/prepdeck/prepdeck/internal/prep/sessions"
)

const (
	testSecret = "test-secret"
	testIssuer = "prepdeck-test"
)

type testServer struct {
	router   *gin.Engine
	recorder audit.Recorder
	issuer   *auth.Issuer
}

func newTestServer(t *testing.T, legacyList bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	recorder := audit.NewRecorder(audit.NewInMemoryStore())

	as := &AppState{
		Sessions:        sessions.NewSessionService(sessions.NewInMemoryStore(), logger),
		Audit:           recorder,
		Health:          health.NewManager(logger),
		Verifier:        auth.NewVerifier(testSecret, testIssuer),
		Logger:          logger,
		AllowedOrigins:  []string{"*"},
		MaxRequestSize:  1 << 20,
		LegacyListShape: legacyList,
	}

	return &testServer{
		router:   NewRouter(as),
		recorder: recorder,
		issuer:   auth.NewIssuer(testSecret, testIssuer, time.Hour),
	}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := s.issuer.Issue(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type sessionEnvelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Session *sessions.Session `json:"session"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *testServer) createSession(t *testing.T, userID string, body any) *sessions.Session {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/sessions/create", userID, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode[sessionEnvelope](t, w)
	require.True(t, env.Success)
	return env.Session
}

func TestCreateSessionWithOneQuestion(t *testing.T) {
	s := newTestServer(t, false)

	session := s.createSession(t, "U1", map[string]any{
		"role":          "Backend Developer",
		"experience":    2,
		"topicsToFocus": "Node.js",
		"description":   "",
		"questions":     []map[string]string{{"question": "What is the event loop?", "answer": "..."}},
	})

	assert.Equal(t, "U1", session.Owner)
	assert.Equal(t, sessions.Experience("2"), session.Experience)
	require.Len(t, session.Questions, 1)
	assert.Equal(t, "What is the event loop?", session.Questions[0].Question)
	assert.Equal(t, session.ID, session.Questions[0].SessionID)
	assert.False(t, session.Questions[0].IsPinned)
}

func TestCreateSessionFailures(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodPost, "/api/sessions/create", "U1", `{"role":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/sessions/create", "U1", map[string]any{"role": "SRE"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Server Error."}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/sessions/create", "", map[string]any{"role": "SRE"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateSessionWronglyTypedFieldsIsServerError(t *testing.T) {
	s := newTestServer(t, false)

	for _, body := range []string{
		`{"role":5,"experience":"2","topicsToFocus":"Go"}`,
		`{"role":"SRE","experience":"2","topicsToFocus":"Go","questions":"x"}`,
	} {
		w := s.do(t, http.MethodPost, "/api/sessions/create", "U1", body)
		assert.Equal(t, http.StatusInternalServerError, w.Code, body)
		assert.JSONEq(t, `{"success":false,"message":"Server Error."}`, w.Body.String())
	}

	w := s.do(t, http.MethodGet, "/api/sessions/my-sessions", "U1", nil)
	assert.JSONEq(t, `{"success":true,"sessions":[]}`, w.Body.String())
}

func TestGetSessionByID(t *testing.T) {
	s := newTestServer(t, false)
	created := s.createSession(t, "U1", map[string]any{
		"role":          "Backend Developer",
		"experience":    "2",
		"topicsToFocus": "Node.js",
		"questions":     []map[string]string{{"question": "q1", "answer": "a1"}, {"question": "q2", "answer": "a2"}},
	})

	w := s.do(t, http.MethodGet, "/api/sessions/"+created.ID.String(), "U1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode[sessionEnvelope](t, w)
	require.Len(t, env.Session.Questions, 2)
	assert.Equal(t, "q1", env.Session.Questions[0].Question)
	assert.Equal(t, "q2", env.Session.Questions[1].Question)
	for _, q := range env.Session.Questions {
		assert.False(t, q.IsPinned)
	}

	// readable by any authenticated caller
	w = s.do(t, http.MethodGet, "/api/sessions/"+created.ID.String(), "U2", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/sessions/does-not-exist", "U1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Session not found"}`, w.Body.String())
}

func TestListMySessions(t *testing.T) {
	s := newTestServer(t, false)
	body := map[string]any{"role": "SRE", "experience": "5", "topicsToFocus": "Linux"}
	first := s.createSession(t, "U1", body)
	second := s.createSession(t, "U1", body)
	s.createSession(t, "U2", body)

	w := s.do(t, http.MethodGet, "/api/sessions/my-sessions", "U1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decode[struct {
		Success  bool                `json:"success"`
		Sessions []*sessions.Session `json:"sessions"`
	}](t, w)
	assert.True(t, env.Success)
	require.Len(t, env.Sessions, 2)
	ids := []string{env.Sessions[0].ID.String(), env.Sessions[1].ID.String()}
	assert.ElementsMatch(t, []string{first.ID.String(), second.ID.String()}, ids)
	for _, session := range env.Sessions {
		assert.Equal(t, "U1", session.Owner)
		assert.NotNil(t, session.Questions)
	}

	w = s.do(t, http.MethodGet, "/api/sessions/my-sessions", "U3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"sessions":[]}`, w.Body.String())
}

func TestListMySessionsLegacyShape(t *testing.T) {
	s := newTestServer(t, true)
	s.createSession(t, "U1", map[string]any{"role": "SRE", "experience": "5", "topicsToFocus": "Linux"})

	w := s.do(t, http.MethodGet, "/api/sessions/my-sessions", "U1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]*sessions.Session](t, w)
	assert.Len(t, list, 1)

	w = s.do(t, http.MethodGet, "/api/sessions/my-sessions", "U9", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestDeleteSessionAsOwner(t *testing.T) {
	s := newTestServer(t, false)
	created := s.createSession(t, "U1", map[string]any{
		"role":          "SRE",
		"experience":    "5",
		"topicsToFocus": "Linux",
		"questions":     []map[string]string{{"question": "q1", "answer": "a1"}},
	})
	path := "/api/sessions/" + created.ID.String()

	w := s.do(t, http.MethodDelete, path, "U1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode[sessionEnvelope](t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "Session deleted Successfully", env.Message)
	assert.Equal(t, created.ID, env.Session.ID)
	require.Len(t, env.Session.Questions, 1)
	assert.Equal(t, "q1", env.Session.Questions[0].Question)

	w = s.do(t, http.MethodGet, path, "U1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, path, "U1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSessionAsAnotherUser(t *testing.T) {
	s := newTestServer(t, false)
	created := s.createSession(t, "U1", map[string]any{
		"role":          "SRE",
		"experience":    "5",
		"topicsToFocus": "Linux",
		"questions":     []map[string]string{{"question": "q1", "answer": "a1"}},
	})
	path := "/api/sessions/" + created.ID.String()

	w := s.do(t, http.MethodDelete, path, "U2", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Not authorized to delete this session"}`, w.Body.String())

	w = s.do(t, http.MethodGet, path, "U1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[sessionEnvelope](t, w).Session.Questions, 1)
}

func TestAuditTrailRecordsCalls(t *testing.T) {
	s := newTestServer(t, false)
	created := s.createSession(t, "U1", map[string]any{"role": "SRE", "experience": "5", "topicsToFocus": "Linux"})
	s.do(t, http.MethodDelete, "/api/sessions/"+created.ID.String(), "U2", nil)

	ctx := context.Background()
	assert.Eventually(t, func() bool {
		logs, err := s.recorder.ListForSession(ctx, created.ID.String(), 0)
		return err == nil && len(logs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	logs, err := s.recorder.ListForUser(ctx, "U2", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.OperationDeleteSession, logs[0].Operation)
	assert.False(t, logs[0].Success)
	assert.Equal(t, http.StatusUnauthorized, logs[0].StatusCode)
	assert.NotEmpty(t, logs[0].ErrorMsg)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, w)["status"])
}

type auditEnvelope struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Logs    []*audit.SessionAuditLog `json:"logs"`
}

func TestSessionAuditTrailIsOwnerOnly(t *testing.T) {
	s := newTestServer(t, false)
	created := s.createSession(t, "U1", map[string]any{"role": "SRE", "experience": "5", "topicsToFocus": "Linux"})
	path := "/api/sessions/" + created.ID.String()
	s.do(t, http.MethodGet, path, "U1", nil)

	var env auditEnvelope
	require.Eventually(t, func() bool {
		w := s.do(t, http.MethodGet, path+"/audit", "U1", nil)
		if w.Code != http.StatusOK {
			return false
		}
		env = decode[auditEnvelope](t, w)
		return len(env.Logs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, env.Success)
	operations := []string{env.Logs[0].Operation, env.Logs[1].Operation}
	assert.ElementsMatch(t, []string{audit.OperationCreateSession, audit.OperationGetSession}, operations)

	w := s.do(t, http.MethodGet, path+"/audit", "U2", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Not authorized to view this session"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/sessions/"+created.ID.String()+"0/audit", "U1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, path+"/audit?limit=abc", "U1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, path+"/audit?limit=1", "U1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[auditEnvelope](t, w).Logs, 1)
}

func TestMyAuditTrail(t *testing.T) {
	s := newTestServer(t, false)
	s.createSession(t, "U1", map[string]any{"role": "SRE", "experience": "5", "topicsToFocus": "Linux"})
	s.do(t, http.MethodGet, "/api/sessions/my-sessions", "U1", nil)
	s.do(t, http.MethodGet, "/api/sessions/my-sessions", "U2", nil)

	var env auditEnvelope
	require.Eventually(t, func() bool {
		w := s.do(t, http.MethodGet, "/api/sessions/audit/mine", "U1", nil)
		if w.Code != http.StatusOK {
			return false
		}
		env = decode[auditEnvelope](t, w)
		return len(env.Logs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	for _, entry := range env.Logs {
		assert.Equal(t, "U1", entry.UserID)
	}

	w := s.do(t, http.MethodGet, "/api/sessions/audit/mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
