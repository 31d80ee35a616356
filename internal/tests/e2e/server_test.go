package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/you/medrecsvc/internal/app"
	"github.com/you/medrecsvc/internal/config"
)

const configRoot = "../../../config"

const testConfigTemplate = `
app:
  port: 0
database:
  driver: sqlite
  dsn: %q
redis:
  addr: %q
jwt:
  key_dir: %q
  issuer: medrecsvc-e2e
  access_ttl: 15m
  refresh_ttl: 24h
otp:
  ttl: 30m
  length: 6
  max_attempts: 3
  resend_window: 30s
  expose_code: true
signup:
  pending_ttl: 1h
casbin:
  model_path: %q
  policy_path: %q
  ownership_rules_path: %q
`

// TestServer is the full service running in-process on sqlite and miniredis
type TestServer struct {
	t         *testing.T
	Server    *httptest.Server
	Container *app.Container
	Redis     *miniredis.Miniredis
}

// NewTestServer wires the service the same way the binary does, through config.LoadFrom and the container
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	dir := t.TempDir()

	yml := fmt.Sprintf(testConfigTemplate,
		filepath.Join(dir, "medrec.db"),
		mr.Addr(),
		filepath.Join(dir, "keys"),
		filepath.Join(configRoot, "rbac_model.conf"),
		filepath.Join(configRoot, "policy.csv"),
		filepath.Join(configRoot, "ownership_rules.yml"),
	)
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := config.LoadFrom(path, config.EnvOverrides{})
	require.NoError(t, err)

	container, err := app.NewContainer(context.Background(), cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(container.Router())
	t.Cleanup(func() {
		srv.Close()
		_ = container.Close()
	})

	return &TestServer{t: t, Server: srv, Container: container, Redis: mr}
}

// Response is the decoded JSON envelope
type Response struct {
	Status     int
	Success    bool                   `json:"success"`
	Data       map[string]interface{} `json:"data"`
	Error      string                 `json:"error"`
	Code       string                 `json:"code"`
	Field      string                 `json:"field"`
	RetryAfter int64                  `json:"retry_after"`
}

// Do sends a JSON request. token, when set, goes in the Authorization header.
func (s *TestServer) Do(method, path string, body interface{}, token string) *Response {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.Server.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Server.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	out := &Response{Status: resp.StatusCode}
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	return out
}

func (r *Response) str(key string) string {
	v, _ := r.Data[key].(string)
	return v
}

// signupAndVerify runs the signup flow for role and returns the verify-otp response
func (s *TestServer) signupAndVerify(role string, fields map[string]string) *Response {
	s.t.Helper()

	resp := s.Do(http.MethodPost, "/auth/"+role+"/signup", fields, "")
	require.Equal(s.t, http.StatusCreated, resp.Status, resp.Error)

	sent := s.Do(http.MethodPost, "/auth/"+role+"/send-otp", map[string]string{"email": fields["email"]}, "")
	require.Equal(s.t, http.StatusOK, sent.Status, sent.Error)

	verified := s.Do(http.MethodPost, "/auth/"+role+"/verify-otp", map[string]string{
		"email": fields["email"],
		"otp":   sent.str("otp"),
		"token": sent.str("token"),
	}, "")
	require.Equal(s.t, http.StatusCreated, verified.Status, verified.Error)
	return verified
}

func doctorFields() map[string]string {
	return map[string]string{
		"username": "drjane",
		"email":    "Jane.Doe@Clinic.example",
		"mobile":   "5551234567",
		"password": "Secret123!",
	}
}

func patientFields() map[string]string {
	return map[string]string{
		"username": "johnp",
		"email":    "john@mail.example",
		"mobile":   "5559876543",
		"password": "Passw0rd!",
	}
}
