package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/api"
	"github.com/rysavy-ondrej/project-inventor/internal/auth"
	"github.com/rysavy-ondrej/project-inventor/internal/config"
	"github.com/rysavy-ondrej/project-inventor/internal/crypto"
	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/logging"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
	"github.com/rysavy-ondrej/project-inventor/internal/testutil"
)

const (
	testAuthPassword     = "login-secret"
	testRootPassword     = "root-secret"
	testNewTestsPassword = "new-tests-secret"
)

func newTestServer(t *testing.T) (*httptest.Server, *dao.Set) {
	t.Helper()
	db := testutil.SetupTestDatabase(t)
	set := dao.NewSet(db)

	cfg := &config.Config{}
	cfg.Authentication.Password = testAuthPassword
	cfg.Authorization.RootPassword = testRootPassword
	cfg.Authorization.NewTestsPassword = testNewTestsPassword
	cfg.Logging.APIMaxLogsSizeInt = 1_000_000

	sessions := auth.NewSessionSigner("session-key", time.Hour)
	verifier := auth.NewVerifier(set.Nonces, time.Minute, false)

	dir := t.TempDir()
	debugSink, err := logging.OpenSink(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	accountingSink, err := logging.OpenSink(filepath.Join(dir, "accounting.log"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = debugSink.Close()
		_ = accountingSink.Close()
	})

	configPath := filepath.Join(dir, "config.ini")
	server := api.NewServer(cfg, configPath, set, sessions, verifier, debugSink, accountingSink)
	return httptest.NewServer(server.Handler()), set
}

func sign(req *http.Request, body []byte, secret string) {
	clientTime := fmt.Sprintf("%d", time.Now().Unix())
	nonce := fmt.Sprintf("nonce-%d", time.Now().UnixNano())
	canonicalBody, _ := crypto.CanonicalJSON(body)
	message := req.Method + req.URL.Path + req.URL.RawQuery + canonicalBody + clientTime + nonce + secret
	req.Header.Set(auth.HeaderTime, clientTime)
	req.Header.Set(auth.HeaderNonce, nonce)
	req.Header.Set(auth.HeaderHMAC, crypto.Hash(message))
}

func mintSession(t *testing.T, baseURL string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"username": "orchestrator-1",
		"password": crypto.Hash("orchestrator-1" + testAuthPassword),
	})
	resp, err := http.Post(baseURL+"/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func TestAuthTimeHandler_Unauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/auth/time")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Time float64 `json:"time"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.InDelta(t, float64(time.Now().Unix()), out.Time, 5)
}

func TestAuthTokenHandler_RejectsBadCredentials(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{
		"username": "orchestrator-1",
		"password": "wrong-digest",
	})
	resp, err := http.Post(srv.URL+"/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTestLifecycle_CreateGet(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	token := mintSession(t, srv.URL)

	createBody, _ := json.Marshal(map[string]any{
		"name":        "probe-1",
		"description": "a test",
		"state":       "enabled",
		"test_params": `{"target":"example.com"}`,
		"timeout":     30,
		"key_ro":      "ro-secret",
		"key_rw":      "rw-secret",
	})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/test", bytes.NewReader(createBody))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	sign(req, createBody, testNewTestsPassword)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created struct {
		IDTest int64  `json:"id_test"`
		KeyRO  string `json:"key_ro"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotZero(t, created.IDTest)

	getPath := fmt.Sprintf("/test/%d", created.IDTest)
	getReq, _ := http.NewRequest(http.MethodGet, srv.URL+getPath, nil)
	getReq.Header.Set("Authorization", "Bearer "+token)
	sign(getReq, nil, created.KeyRO)

	getResp, err := http.DefaultClient.Do(getReq)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestTestGetHandler_RejectsWrongKey(t *testing.T) {
	srv, set := newTestServer(t)
	defer srv.Close()

	token := mintSession(t, srv.URL)

	ctx := context.Background()
	created, err := set.Tests.Create(ctx, nil, &models.Test{
		Name:       "probe-2",
		State:      models.TestStateDisabled,
		TestParams: "{}",
		Timeout:    30,
		KeyRO:      "actual-ro-secret",
		KeyRW:      "actual-rw-secret",
		Created:    time.Now(),
	}, dao.TxNone)
	require.NoError(t, err)

	getPath := fmt.Sprintf("/test/%d", created.IDTest)
	getReq, _ := http.NewRequest(http.MethodGet, srv.URL+getPath, nil)
	getReq.Header.Set("Authorization", "Bearer "+token)
	sign(getReq, nil, "not-the-right-key")

	resp, err := http.DefaultClient.Do(getReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
