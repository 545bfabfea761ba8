package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobBoard/internal/analytics"
	"jobBoard/internal/application"
	"jobBoard/internal/auth"
	"jobBoard/internal/auth/authtest"
	"jobBoard/internal/config"
	"jobBoard/internal/content"
	"jobBoard/internal/database"
	"jobBoard/internal/database/dbtest"
	"jobBoard/internal/jobs"
	"jobBoard/internal/mail"
)

const testCookieName = "admin_session"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[objectName] = b
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://files.example.invalid/" + objectKey, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	redis   *miniredis.Miniredis
	catalog *jobs.Catalog
	storage *fakeStorage
	sender  *fakeSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := dbtest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	priv, pub := authtest.KeyPair(t)
	authService, err := auth.NewAuthService(priv, pub, time.Hour)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newFakeStorage()
	sender := &fakeSender{}
	catalog := jobs.NewCatalog(db, time.UTC)
	notifier := mail.NewNotifier(sender, "Green Tara", "admin@example.com", mail.WithLogger(logger))
	workflow := application.NewWorkflow(db, catalog, store, notifier, application.Options{
		MaxBytes:      5 * 1024 * 1024,
		MaxAdditional: 3,
		Logger:        logger,
	})

	router := NewRouter(&config.Config{}, logger)
	RegisterRoutes(router, Dependencies{
		DB:            db,
		Redis:         rdb,
		AuthService:   authService,
		Revocations:   auth.NewRevocationList(rdb),
		Catalog:       catalog,
		Workflow:      workflow,
		Content:       content.NewStore(db, store, "", 0, logger),
		Analytics:     analytics.NewAggregator(db, time.UTC),
		Signer:        store,
		LoginPolicy:   LoginPolicy{RateLimitPerHour: 20, LockThreshold: 3, LockTTL: time.Minute, MinPasswordLength: 8},
		CookieName:    testCookieName,
		DocumentTTL:   time.Minute,
		MaxBytes:      5 * 1024 * 1024,
		MaxAdditional: 3,
	})

	return &testServer{router: router, db: db, redis: mr, catalog: catalog, storage: store, sender: sender}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createAdmin(t *testing.T, username, password string, mustChange bool) *database.AdminUser {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &database.AdminUser{Username: username, PasswordHash: hash, IsStaff: true, MustChangePassword: mustChange}
	if err := s.db.Create(user).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return user
}

// login 登录并返回会话 Cookie。
func (s *testServer) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": username, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", w.Code, w.Body.String())
	}
	return sessionCookie(t, w)
}

func (s *testServer) adminSession(t *testing.T) *http.Cookie {
	t.Helper()
	s.createAdmin(t, "admin", "s3cret-pass", false)
	return s.login(t, "admin", "s3cret-pass")
}

func (s *testServer) createJob(t *testing.T, in jobs.Input) *database.Job {
	t.Helper()
	job, err := s.catalog.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

type formFile struct {
	field, name string
	data        []byte
}

func applicationForm(t *testing.T, fields map[string]string, files []formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return body, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[map[string]any](t, w)
	if got["status"] != "ok" || got["message"] != "Server is running" {
		t.Fatalf("unexpected body: %v", got)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Fatalf("correlation id header missing")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/api/health", nil)
	w := s.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("jobboard_http_requests_total")) {
		t.Fatalf("request counter not exported")
	}
}

func uintStr(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
