package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/josh-segal/text-me-assistant/internal/config"
	"github.com/josh-segal/text-me-assistant/internal/db"
	"github.com/josh-segal/text-me-assistant/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Environment = config.EnvDevelopment
	cfg.Database.DSN = "file:" + filepath.Join(t.TempDir(), "test.db")
	cfg.Escalation.ManagerNumber = "+15550001111"
	cfg.Admin.PasswordHash = string(hash)
	cfg.JWT.Secret = "test-secret"
	return cfg
}

func setupTestServer(t *testing.T, cfg *config.Config) *http.Server {
	t.Helper()
	srv, cleanup, err := SetupServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		cleanup()
	})
	return srv
}

func do(srv *http.Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, srv *http.Server) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(srv, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func webhookForm(body, sid string) url.Values {
	return url.Values{
		"Body":       {body},
		"From":       {"+15551234567"},
		"To":         {"+15550000000"},
		"MessageSid": {sid},
	}
}

func sendSMS(srv *http.Server, body, sid string) *httptest.ResponseRecorder {
	return postWebhook(srv, webhookForm(body, sid))
}

func postWebhook(srv *http.Server, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/sms/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(srv, req)
}

func TestSetupServer(t *testing.T) {
	srv := setupTestServer(t, testConfig(t))
	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)

	t.Run("nil config", func(t *testing.T) {
		srv, cleanup, err := SetupServer(nil)
		assert.Error(t, err)
		assert.Nil(t, srv)
		assert.Nil(t, cleanup)
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Server.Port = -1
		srv, _, err := SetupServer(cfg)
		assert.Error(t, err)
		assert.Nil(t, srv)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database.Driver = "mysql"
		_, _, err := SetupServer(cfg)
		assert.Error(t, err)
	})

	t.Run("missing manager number", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Escalation.ManagerNumber = ""
		_, _, err := SetupServer(cfg)
		assert.ErrorContains(t, err, "manager phone number")
	})

	t.Run("production rejects default jwt secret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Environment = "production"
		cfg.Server.PublicURL = "https://sms.example.com"
		cfg.JWT.Secret = config.DefaultJWTSecret
		_, _, err := SetupServer(cfg)
		assert.ErrorContains(t, err, "JWT secret")
	})

	t.Run("production requires public url for signature checks", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Environment = "production"
		_, _, err := SetupServer(cfg)
		assert.ErrorContains(t, err, "public URL")
	})

	t.Run("production requires twilio credentials", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Environment = "production"
		cfg.Server.PublicURL = "https://sms.example.com"
		_, _, err := SetupServer(cfg)
		assert.ErrorContains(t, err, "SMS sender")
	})

	t.Run("cleanup is idempotent", func(t *testing.T) {
		_, cleanup, err := SetupServer(testConfig(t))
		require.NoError(t, err)
		cleanup()
		cleanup()
	})

	t.Run("listen host", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = 9090
		srv := setupTestServer(t, cfg)
		assert.Equal(t, "127.0.0.1:9090", srv.Addr)
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupTestServer(t, testConfig(t))

	w := do(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, serviceName, resp["service"])
	assert.Equal(t, version, resp["version"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = do(srv, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
}

func TestWebhookFlow(t *testing.T) {
	srv := setupTestServer(t, testConfig(t))

	w := sendSMS(srv, "What are your hours?", "SM1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "open daily from 08:00 to 23:00")

	w = sendSMS(srv, "Someone is hurt", "SM2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "forward this to a manager")

	bad := webhookForm("hello", "SM3")
	bad.Set("From", "5551234567")
	w = postWebhook(srv, bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please try again.")

	token := login(t, srv)
	authed := func(method, target string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return do(srv, req)
	}

	w = authed(http.MethodGet, "/api/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs, 2)
	assert.Equal(t, "Someone is hurt", logs[0]["message_content"])
	assert.Equal(t, true, logs[0]["was_escalated"])
	assert.Equal(t, "SM2", logs[0]["message_sid"])
	assert.Equal(t, false, logs[1]["was_escalated"])

	w = authed(http.MethodGet, "/api/messages?escalated=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	assert.Len(t, logs, 1)

	id := int64(logs[0]["id"].(float64))
	w = authed(http.MethodGet, "/api/messages/"+strconv.FormatInt(id, 10), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = authed(http.MethodGet, "/api/messages/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = authed(http.MethodGet, "/api/escalations/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recent struct {
		Escalations []string `json:"escalations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recent))
	assert.Len(t, recent.Escalations, 1)

	w = sendSMS(srv, "Someone is still hurt", "SM4")
	require.Equal(t, http.StatusOK, w.Code, "cooldown does not fail the webhook")

	w = authed(http.MethodPost, "/api/escalations", []byte(`{"original_message":"again","from_number":"+15551234567"}`))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = authed(http.MethodPost, "/api/escalations", []byte(`{"original_message":"leak","from_number":"+15559990000","importance_score":0.8}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), services.EscalationSentMessage)

	w = authed(http.MethodPost, "/api/classify", []byte(`{"body":"I want a refund"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"refund"`)
}

func TestWebhookMediaOnly(t *testing.T) {
	srv := setupTestServer(t, testConfig(t))

	form := webhookForm("", "MM1")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", "https://api.twilio.com/media/ME1")
	w := postWebhook(srv, form)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "forward this to a manager")

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Authorization", "Bearer "+login(t, srv))
	w = do(srv, req)
	require.Equal(t, http.StatusOK, w.Code)

	var logs []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "", logs[0]["message_content"])
	assert.Equal(t, "MM1", logs[0]["message_sid"])
	assert.Equal(t, true, logs[0]["was_escalated"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := setupTestServer(t, testConfig(t))

	for _, target := range []string{"/api/messages", "/api/messages/1", "/api/escalations/recent"} {
		w := do(srv, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"wrong-password"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusUnauthorized, do(srv, req).Code)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitHealthy(t *testing.T, addr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
}

func waitStopped(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartServerWithContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)

	srv, cleanup, err := SetupServer(cfg)
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- StartServerWithContext(ctx, srv)
	}()

	waitHealthy(t, srv.Addr)
	cancel()
	waitStopped(t, done)
}

// Webhooks accepted before shutdown must still be answered and logged: the
// store stays open until the server has drained.
func TestShutdownDrainsWebhooks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)

	srv, cleanup, err := SetupServer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- StartServerWithContext(ctx, srv)
	}()
	waitHealthy(t, srv.Addr)

	client := &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
		Timeout:   5 * time.Second,
	}

	const webhooks = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		codes     []int
		firstOnce sync.Once
	)
	first := make(chan struct{})
	for i := 0; i < webhooks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			form := webhookForm("What are your hours?", "SM"+strconv.Itoa(i))
			resp, err := client.PostForm("http://"+srv.Addr+"/api/sms/webhook", form)
			if err != nil {
				// arrived after the listener closed
				return
			}
			resp.Body.Close()

			mu.Lock()
			codes = append(codes, resp.StatusCode)
			mu.Unlock()
			firstOnce.Do(func() { close(first) })
		}(i)
	}

	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("no webhook was answered")
	}
	cancel()
	waitStopped(t, done)
	cleanup()
	wg.Wait()

	require.NotEmpty(t, codes)
	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}

	store, err := db.NewDatabase(cfg.Database.DSN)
	require.NoError(t, err)
	defer store.Close()

	logs, err := store.ListLogs(context.Background(), db.LogFilter{Limit: webhooks * 2})
	require.NoError(t, err)
	assert.Len(t, logs, len(codes), "every answered webhook is logged")
}

func TestStartServerWithContext_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv := &http.Server{Addr: l.Addr().String(), Handler: http.NotFoundHandler()}
	err = StartServerWithContext(context.Background(), srv)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "9091")
	t.Setenv("APP_ENV", config.EnvDevelopment)
	t.Setenv("MANAGER_PHONE_NUMBER", "+15550001111")

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9091, cfg.Server.Port)
	assert.True(t, cfg.IsDevelopment())

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	t.Setenv("PORT", "not-a-port")
	_, err = loadConfig("")
	assert.Error(t, err)

	t.Setenv("PORT", "9091")
	t.Setenv("APP_ENV", "production")
	_, err = loadConfig("")
	assert.ErrorContains(t, err, "JWT secret", "placeholder secret is rejected outside development")
}
