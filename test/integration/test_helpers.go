//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"go-social-feed/internal/app"
	"go-social-feed/internal/config"
	"go-social-feed/internal/model"
)

type envelope struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Error      string            `json:"error"`
	Code       string            `json:"code"`
	Pagination *model.Pagination `json:"pagination"`
}

func testConfig() *config.Config {
	return &config.Config{
		ServerPort:              "0",
		ServerReadHeaderTimeout: 10 * time.Second,
		ServerWriteTimeout:      30 * time.Second,
		ServerIdleTimeout:       120 * time.Second,
		RequestTimeout:          10 * time.Second,
		ShutdownTimeout:         5 * time.Second,
		StorageDriver:           config.StorageDriverMemory,
		JWTAccessSecret:         "integration-access-secret",
		JWTRefreshSecret:        "integration-refresh-secret",
		JWTAccessTTL:            15 * time.Minute,
		JWTRefreshTTL:           7 * 24 * time.Hour,
		BcryptCost:              4,
		RefreshSweepInterval:    time.Hour,
		CORSOrigins:             []string{"*"},
		RateLimitRPM:            0,
		AuthRateLimitRPM:        10000,
		LogFormat:               "json",
	}
}

func newServer(t *testing.T, mutate ...func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	a, err := app.Build(context.Background(), cfg)
	require.NoError(t, err)

	server := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		server.Close()
		a.Close()
	})
	return server
}

func doJSON(t *testing.T, method string, url string, body any, accessToken string) (*http.Response, envelope) {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func decodeData(t *testing.T, env envelope, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func signup(t *testing.T, baseURL string) model.AuthResult {
	t.Helper()

	req := model.SignupRequest{
		Username: fmt.Sprintf("user_%d", gofakeit.Number(100000, 999999)),
		Email:    gofakeit.Email(),
		Password: gofakeit.Password(true, true, true, false, false, 12),
	}

	resp, env := doJSON(t, http.MethodPost, baseURL+"/auth/signup", req, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)

	var result model.AuthResult
	decodeData(t, env, &result)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)
	return result
}
