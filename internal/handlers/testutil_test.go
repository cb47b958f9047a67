package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/storeit/backend/internal/config"
	"github.com/storeit/backend/internal/database"
	"github.com/storeit/backend/internal/docstore"
	"github.com/storeit/backend/internal/identity"
	"github.com/storeit/backend/internal/mailer"
	"github.com/storeit/backend/internal/middleware"
	"github.com/storeit/backend/internal/services"
	"github.com/storeit/backend/internal/storage"
	"github.com/storeit/backend/pkg/logger"
	"github.com/storeit/backend/pkg/utils"
	"gorm.io/gorm"
)

const testCookieName = "storeit-session"

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
}

func (m *captureMailer) SendOneTimeCode(_ context.Context, to string, msg mailer.CodeMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[to] = msg.Code
	m.sent++
	return nil
}

func (m *captureMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	store  docstore.Store
	blobs  *storage.MemoryStore
	views  *services.ViewVersions
	mailer *captureMailer
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.SetOutput(io.Discard)
		utils.ConfigureJWT("handlers-test-jwt-secret", 24)
		utils.ConfigureSealing("handlers-test-sealing-secret")
	})

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	env := &testEnv{
		db:     db,
		store:  docstore.NewGormStore(db),
		blobs:  storage.NewMemoryStore("http://blobs.test"),
		views:  services.NewViewVersions(),
		mailer: &captureMailer{},
	}

	auditService := services.NewAuditService(db, env.blobs)
	t.Cleanup(auditService.Close)

	provider := identity.NewLocalProvider(db, env.mailer, config.OTPConfig{
		TTL:         15 * time.Minute,
		MaxAttempts: 5,
		Digits:      6,
		Issuer:      "StoreIt",
	})
	fileService := services.NewFileService(env.store, env.blobs, env.views, auditService, 2*1024*1024*1024)
	authService := services.NewAuthService(env.store, provider, auditService, "https://avatars.test/placeholder.jpg")
	authMiddleware := middleware.NewAuthMiddleware(services.NewSessionManager(provider, env.store), testCookieName, false)

	env.app = NewApp(Routes{
		Auth:           NewAuthHandler(authService, authMiddleware),
		Users:          NewUsersHandler(),
		Files:          NewFilesHandler(fileService, env.views),
		Audit:          NewAuditHandler(db),
		AuthMiddleware: authMiddleware,
		AllowOrigins:   "http://localhost:3000",
		BodyLimit:      10 * 1024 * 1024,
	})
	return env
}

// signUp runs the full code flow and returns the session cookie header.
func (env *testEnv) signUp(t *testing.T, fullName, email string) map[string]string {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/sign-up", map[string]any{
		"fullName": fullName,
		"email":    email,
	}, nil)
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusOK)
	accountID := body["data"].(map[string]any)["accountId"].(string)

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/verify", map[string]any{
		"accountId": accountID,
		"code":      env.mailer.code(email),
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	cookie := sessionCookie(resp)
	if cookie == "" {
		t.Fatalf("expected a session cookie after verify")
	}
	return cookieHeaders(cookie)
}

func sessionCookie(resp *http.Response) string {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == testCookieName {
			return cookie.Value
		}
	}
	return ""
}

func cookieHeaders(value string) map[string]string {
	return map[string]string{"Cookie": testCookieName + "=" + value}
}

func withHeader(headers map[string]string, key, value string) map[string]string {
	out := map[string]string{key: value}
	for k, v := range headers {
		out[k] = v
	}
	return out
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func performUpload(t *testing.T, app *fiber.App, filename, content string, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed creating form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed writing form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	return performRequest(t, app, http.MethodPost, "/api/files/upload", &buf, withHeader(headers, "Content-Type", writer.FormDataContentType()))
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func documentNames(t *testing.T, body map[string]any) []string {
	t.Helper()
	docs := body["data"].(map[string]any)["documents"].([]any)
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc.(map[string]any)["name"].(string))
	}
	return names
}
