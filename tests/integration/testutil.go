//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/proxydesk/proxydesk/internal/audit"
	"github.com/proxydesk/proxydesk/internal/auth"
	"github.com/proxydesk/proxydesk/internal/export"
	"github.com/proxydesk/proxydesk/internal/limits"
	"github.com/proxydesk/proxydesk/internal/proxies"
	"github.com/proxydesk/proxydesk/internal/quota"
	"github.com/proxydesk/proxydesk/internal/router"
	"github.com/proxydesk/proxydesk/internal/users"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	UserSvc     *users.Service
	Claimer     *proxies.Claimer
	ProxyStore  *proxies.PostgresStore
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "proxydesk_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/proxydesk_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jwtManager := auth.NewJWTManager(
		"test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-lng!",
		15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)

	userRepo := users.NewPostgresRepository(pool)
	userSvc := users.NewService(userRepo, nil, logger, 15, 24)

	usageRepo := quota.NewPostgresRepository(pool)
	tracker := quota.NewTracker(usageRepo, time.UTC)

	proxyStore := proxies.NewPostgresStore(pool)
	stageStore := proxies.NewStageStore(redisClient, 15*time.Minute)
	claimer := proxies.NewClaimer(proxyStore, stageStore, userSvc, tracker, nil, logger, 100)

	editor := limits.NewEditor(userSvc, nil, logger)
	auditRepo := audit.NewPostgresRepository(pool)

	handler := router.New(router.Deps{
		Handlers: router.Handlers{
			Auth:    auth.NewHandler(authSvc, users.NewAccountsAdapter(userSvc)),
			Users:   users.NewHandler(userSvc),
			Proxies: proxies.NewHandler(claimer, userSvc),
			Limits:  limits.NewHandler(editor),
			Quota:   quota.NewHandler(tracker, userSvc),
			Export:  export.NewHandler(tracker),
			Audit:   audit.NewHandler(auditRepo),
		},
		AuthService: authSvc,
		Pool:        pool,
		Redis:       redisClient,
	})

	server := httptest.NewServer(handler)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		UserSvc:     userSvc,
		Claimer:     claimer,
		ProxyStore:  proxyStore,
	}
	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

func RegisterAndLogin(t *testing.T, env *TestEnv, username string) string {
	t.Helper()
	body := map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse-battery",
	}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	tokens := data["tokens"].(map[string]any)
	return tokens["access_token"].(string)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
