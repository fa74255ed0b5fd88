//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sceneit/apiserver/config"
	"github.com/sceneit/apiserver/internal/db"
	"github.com/sceneit/apiserver/internal/server"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	serverPort = 18080
	testDBName = "sceneit_e2e"
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "mongo", "redis", "mailpit"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	configureEnv()
	cfg := config.LoadConfig()

	if err := waitForMongo(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "mongo not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestReviewLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()

	author := newSession(t)
	authorName := signup(t, author, baseURL, fmt.Sprintf("author_%d@example.com", suffix))
	fan := newSession(t)
	signup(t, fan, baseURL, fmt.Sprintf("fan_%d@example.com", suffix))

	var saved struct {
		ReviewID string `json:"reviewId"`
	}
	status := call(t, author, http.MethodPatch, baseURL+"/api/v1/movies/save-review/949",
		map[string]any{"review": "A tense masterpiece.", "movieName": "Heat"}, &saved)
	if status != http.StatusOK {
		t.Fatalf("save review: unexpected status %d", status)
	}
	if len(saved.ReviewID) != 8 {
		t.Fatalf("unexpected review id %q", saved.ReviewID)
	}

	status = call(t, fan, http.MethodPatch, baseURL+"/api/v1/movies/toggle-review-like/"+saved.ReviewID, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("like review: unexpected status %d", status)
	}

	var listed struct {
		Count   int `json:"count"`
		Reviews []struct {
			ReviewID  string `json:"reviewId"`
			LikeCount int    `json:"likeCount"`
		} `json:"reviews"`
	}
	status = call(t, fan, http.MethodGet, baseURL+"/api/v1/movies/reviews/949", nil, &listed)
	if status != http.StatusOK {
		t.Fatalf("list reviews: unexpected status %d", status)
	}
	found := false
	for _, review := range listed.Reviews {
		if review.ReviewID == saved.ReviewID {
			found = true
			if review.LikeCount != 1 {
				t.Fatalf("expected 1 like, got %d", review.LikeCount)
			}
		}
	}
	if !found {
		t.Fatalf("review %s not listed", saved.ReviewID)
	}

	status = call(t, fan, http.MethodDelete, baseURL+"/api/v1/movies/delete-review/"+authorName+"/"+saved.ReviewID, nil, nil)
	if status != http.StatusForbidden {
		t.Fatalf("foreign delete: expected 403, got %d", status)
	}

	status = call(t, author, http.MethodDelete, baseURL+"/api/v1/movies/delete-review/"+authorName+"/"+saved.ReviewID, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete review: unexpected status %d", status)
	}
}

func TestAdminMayModerateReviews(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()

	author := newSession(t)
	authorName := signup(t, author, baseURL, fmt.Sprintf("writer_%d@example.com", suffix))
	admin := newSession(t)
	adminName := signup(t, admin, baseURL, fmt.Sprintf("admin_%d@example.com", suffix))

	if err := promoteUserToAdmin(adminName); err != nil {
		t.Fatalf("promote user: %v", err)
	}

	var saved struct {
		ReviewID string `json:"reviewId"`
	}
	if status := call(t, author, http.MethodPatch, baseURL+"/api/v1/movies/save-review/680",
		map[string]any{"review": "Overrated."}, &saved); status != http.StatusOK {
		t.Fatalf("save review: unexpected status %d", status)
	}

	status := call(t, admin, http.MethodDelete, baseURL+"/api/v1/movies/delete-review/"+authorName+"/"+saved.ReviewID, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("admin delete: unexpected status %d", status)
	}
}

func newSession(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func signup(t *testing.T, client *http.Client, baseURL, email string) string {
	t.Helper()
	var body struct {
		Data struct {
			User struct {
				Username string `json:"username"`
			} `json:"user"`
		} `json:"data"`
	}
	status := call(t, client, http.MethodPost, baseURL+"/api/v1/auth/signup", map[string]any{
		"name":            "E2E Tester",
		"email":           email,
		"age":             30,
		"password":        "testpass123!",
		"confirmPassword": "testpass123!",
	}, &body)
	if status != http.StatusCreated {
		t.Fatalf("signup: unexpected status %d", status)
	}
	if body.Data.User.Username == "" {
		t.Fatalf("signup: missing username")
	}
	return body.Data.User.Username
}

func call(t *testing.T, client *http.Client, method, url string, payload any, out any) int {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func promoteUserToAdmin(username string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.LoadConfig()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	res, err := db.Database(client, cfg).Collection(db.UsersCollection).UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$set": bson.M{"role": "admin"}, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount != 1 {
		return fmt.Errorf("user %s not found", username)
	}
	return nil
}

func configureEnv() {
	_ = os.Setenv("APP_ENV", "test")
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("MONGO_URI", "mongodb://localhost:27017")
	_ = os.Setenv("MONGO_DB", testDBName)
	_ = os.Setenv("REDIS_ADDR", "localhost:6379")
	_ = os.Setenv("MAIL_TRANSPORT", "smtp")
	_ = os.Setenv("SMTP_SERVER", "localhost:1025")
	_ = os.Setenv("AVATAR_BACKEND", "local")
	_ = os.Setenv("AVATAR_DIR", filepath.Join(os.TempDir(), "sceneit-e2e-avatars"))
}

func waitForMongo(ctx context.Context, cfg config.Config) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		client, err := db.Open(ctx, cfg)
		if err == nil {
			_ = client.Disconnect(context.Background())
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("mongo ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string, cfg config.Config) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")
	dsn := fmt.Sprintf("%s/%s", cfg.Mongo.URI, cfg.Mongo.DBName)

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer(ctx context.Context, cfg config.Config) (*server.Server, error) {
	srv, err := server.New(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
