//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/proxydesk/proxydesk/internal/users"
)

func seedPool(t *testing.T, env *TestEnv, urls []string) {
	t.Helper()
	if _, _, err := env.ProxyStore.InsertBatch(context.Background(), urls); err != nil {
		t.Fatalf("seeding proxies: %v", err)
	}
}

func TestClaimFinalizeFlow(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterAndLogin(t, env, "claimer1")
	seedPool(t, env, []string{
		"http://10.1.0.1:8080", "http://10.1.0.2:8080", "http://10.1.0.3:8080",
	})

	// Availability before any claim.
	resp := DoRequest(t, env, "GET", "/api/v1/proxies/availability", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("availability: status %d", resp.StatusCode)
	}
	data := ParseResponse(t, resp)["data"].(map[string]any)
	if got := int(data["used_today"].(float64)); got != 0 {
		t.Fatalf("used_today = %d, want 0", got)
	}

	// Stage a claim of two.
	resp = DoRequest(t, env, "POST", "/api/v1/proxies/claim", map[string]any{"amount": 2}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d", resp.StatusCode)
	}
	claim := ParseResponse(t, resp)["data"].(map[string]any)
	if urls := claim["urls"].([]any); len(urls) != 2 {
		t.Fatalf("staged %d urls, want 2", len(urls))
	}

	// Finalize it.
	resp = DoRequest(t, env, "POST", "/api/v1/proxies/claim/finalize", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)["data"].(map[string]any)
	if got := int(result["finalized"].(float64)); got != 2 {
		t.Fatalf("finalized = %d, want 2", got)
	}
	if got := int(result["used_today"].(float64)); got != 2 {
		t.Fatalf("used_today = %d, want 2", got)
	}

	// Finalizing again without a stage is a 404.
	resp = DoRequest(t, env, "POST", "/api/v1/proxies/claim/finalize", nil, token)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("double finalize: status %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	// The finalized proxies are gone from the pool.
	count, err := env.ProxyStore.CountUnused(context.Background())
	if err != nil {
		t.Fatalf("counting pool: %v", err)
	}
	if count != 1 {
		t.Fatalf("pool = %d, want 1", count)
	}
}

func TestClaimExhaustionTriggersCooldown(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterAndLogin(t, env, "claimer2")
	seedPool(t, env, []string{
		"http://10.2.0.1:8080", "http://10.2.0.2:8080",
		"http://10.2.0.3:8080", "http://10.2.0.4:8080",
	})

	user, err := env.UserSvc.GetByUsername(context.Background(), "claimer2")
	if err != nil {
		t.Fatalf("loading user: %v", err)
	}
	if _, err := env.UserSvc.UpdateLimits(context.Background(), users.RoleAdmin, user.ID.String(), 2, 24); err != nil {
		t.Fatalf("setting limit: %v", err)
	}

	resp := DoRequest(t, env, "POST", "/api/v1/proxies/claim", map[string]any{"all": true}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim all: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = DoRequest(t, env, "POST", "/api/v1/proxies/claim/finalize", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)["data"].(map[string]any)
	if result["cooldown_until"] == nil {
		t.Fatal("cooldown_until not set after exhausting the daily limit")
	}

	// Further claims are rejected with 429 while the gate is closed.
	resp = DoRequest(t, env, "POST", "/api/v1/proxies/claim", map[string]any{"amount": 1}, token)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("claim in cooldown: status %d, want 429", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestFinalizeAsDownload(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterAndLogin(t, env, "downloader")
	seedPool(t, env, []string{"http://10.4.0.1:8080", "http://10.4.0.2:8080"})

	resp := DoRequest(t, env, "POST", "/api/v1/proxies/claim", map[string]any{"amount": 2}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Finalizing with ?format=txt hands the batch back as a file.
	resp = DoRequest(t, env, "POST", "/api/v1/proxies/claim/finalize?format=txt", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize txt: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("finalize content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd == "" {
		t.Fatal("finalize download missing Content-Disposition")
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("downloaded %d urls, want 2", len(lines))
	}

	// The batch was consumed even though the response was a file.
	count, err := env.ProxyStore.CountUnused(context.Background())
	if err != nil {
		t.Fatalf("counting pool: %v", err)
	}
	if count != 0 {
		t.Fatalf("pool = %d, want 0", count)
	}
}

func TestBatchLimitEditRequiresRole(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterAndLogin(t, env, "plainuser")

	body := map[string]any{"updates": []map[string]any{
		{"user_id": "00000000-0000-0000-0000-000000000000", "daily_limit": 1, "cooldown_hours": 1},
	}}
	resp := DoRequest(t, env, "POST", "/api/v1/limits/batch", body, token)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("limits batch as user: status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestExportDownload(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterAndLogin(t, env, "exporter")
	seedPool(t, env, []string{"http://10.3.0.1:8080"})

	resp := DoRequest(t, env, "POST", "/api/v1/proxies/claim", map[string]any{"amount": 1}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = DoRequest(t, env, "POST", "/api/v1/proxies/claim/finalize", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = DoRequest(t, env, "GET", "/api/v1/export?format=txt", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export txt: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("export content type = %q", ct)
	}
	resp.Body.Close()

	resp = DoRequest(t, env, "GET", "/api/v1/export?format=xlsx", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export xlsx: status %d", resp.StatusCode)
	}
	resp.Body.Close()
}
