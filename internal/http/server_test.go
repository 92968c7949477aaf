package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tasktide/internal/admission"
	"tasktide/internal/db"
	"tasktide/internal/repository"
	"tasktide/internal/storage"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TASKTIDE_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("TASKTIDE_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	return pool
}

func newTestApp(t *testing.T, pool *pgxpool.Pool) *httptest.Server {
	t.Helper()
	cfg := testConfig()
	store := repository.NewStore(pool)
	engine := admission.NewEngine(store, 5)
	blobs, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store error: %v", err)
	}
	app := httptest.NewServer(NewServer(cfg, store, engine, blobs, nil).Router())
	t.Cleanup(app.Close)
	return app
}

type registeredUser struct {
	ID       string
	Username string
	Token    string
}

func registerAndLogin(t *testing.T, appURL, role string) registeredUser {
	t.Helper()
	suffix := uuid.NewString()[:8]
	username := role + "-" + suffix
	password := "dev-password"

	resp := postJSON(t, appURL+"/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.local",
		"password": password,
		"role":     role,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	var user struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	decodeBody(t, resp, &user)
	if user.Role != role {
		t.Fatalf("expected role %s, got %s", role, user.Role)
	}

	resp = postJSON(t, appURL+"/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, resp, &login)

	return registeredUser{ID: user.ID, Username: username, Token: login.AccessToken}
}

func postJSON(t *testing.T, url, token string, body interface{}) *http.Response {
	t.Helper()
	return request(t, http.MethodPost, url, token, body)
}

func request(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func TestServerJoinFlow(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app := newTestApp(t, pool)

	rep := registerAndLogin(t, app.URL, "class_rep")
	student := registerAndLogin(t, app.URL, "student")

	resp := postJSON(t, app.URL+"/servers/", rep.Token, map[string]string{
		"name":        "CS101",
		"description": "Intro to CS",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create server status %d", resp.StatusCode)
	}
	var server struct {
		ID       string `json:"id"`
		JoinCode string `json:"join_code"`
	}
	decodeBody(t, resp, &server)
	if len(server.JoinCode) != 6 {
		t.Fatalf("expected 6-char join code, got %q", server.JoinCode)
	}

	// First redemption joins.
	resp = postJSON(t, app.URL+"/servers/join", student.Token, map[string]string{"join_code": server.JoinCode})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("join status %d", resp.StatusCode)
	}

	// Repeating the same call is an idempotent success.
	resp = postJSON(t, app.URL+"/servers/join", student.Token, map[string]string{"join_code": server.JoinCode})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat join status %d", resp.StatusCode)
	}

	// Exactly one membership row.
	resp = request(t, http.MethodGet, app.URL+"/servers/"+server.ID+"/members", rep.Token, nil)
	defer resp.Body.Close()
	var members []struct {
		UserID string `json:"user_id"`
	}
	decodeBody(t, resp, &members)
	count := 0
	for _, member := range members {
		if member.UserID == student.ID {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected 1 membership for student, got %d", count)
	}

	// Unknown code is a 404.
	resp = postJSON(t, app.URL+"/servers/join", student.Token, map[string]string{"join_code": "ZZZZZ0"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", resp.StatusCode)
	}

	// Missing code is a validation error.
	resp = postJSON(t, app.URL+"/servers/join", student.Token, map[string]string{"join_code": ""})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty code, got %d", resp.StatusCode)
	}

	// The joined server shows up in the student's listing.
	resp = request(t, http.MethodGet, app.URL+"/servers/", student.Token, nil)
	defer resp.Body.Close()
	var servers []struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &servers)
	found := false
	for _, listed := range servers {
		if listed.ID == server.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected joined server in listing")
	}
}

func TestGroupCapacityFlow(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app := newTestApp(t, pool)

	rep := registerAndLogin(t, app.URL, "class_rep")
	userA := registerAndLogin(t, app.URL, "student")
	userB := registerAndLogin(t, app.URL, "student")

	_, unitID := createServerAndUnit(t, app.URL, rep.Token)

	resp := postJSON(t, app.URL+"/groups/", rep.Token, map[string]interface{}{
		"unit_id":     unitID,
		"name":        "Team A",
		"max_members": 1,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create group status %d", resp.StatusCode)
	}
	var group struct {
		ID         string `json:"id"`
		MaxMembers int    `json:"max_members"`
	}
	decodeBody(t, resp, &group)
	if group.MaxMembers != 1 {
		t.Fatalf("expected max_members 1, got %d", group.MaxMembers)
	}

	resp = postJSON(t, app.URL+"/groups/"+group.ID+"/join", userA.Token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first join status %d", resp.StatusCode)
	}

	resp = postJSON(t, app.URL+"/groups/"+group.ID+"/join", userB.Token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 full, got %d", resp.StatusCode)
	}

	// A member of a full group sees already_member, not full.
	resp = postJSON(t, app.URL+"/groups/"+group.ID+"/join", userA.Token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 already member, got %d", resp.StatusCode)
	}

	resp = request(t, http.MethodGet, app.URL+"/groups/"+group.ID+"/members", rep.Token, nil)
	defer resp.Body.Close()
	var members []struct {
		UserID string `json:"user_id"`
	}
	decodeBody(t, resp, &members)
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
}

func TestConcurrentGroupJoinsNeverOvershoot(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app := newTestApp(t, pool)

	rep := registerAndLogin(t, app.URL, "class_rep")
	_, unitID := createServerAndUnit(t, app.URL, rep.Token)

	max := 3
	resp := postJSON(t, app.URL+"/groups/", rep.Token, map[string]interface{}{
		"unit_id":     unitID,
		"name":        "Race Team",
		"max_members": max,
	})
	defer resp.Body.Close()
	var group struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &group)

	const contenders = 10
	tokens := make([]string, contenders)
	for i := range tokens {
		tokens[i] = registerAndLogin(t, app.URL, "student").Token
	}

	var wg sync.WaitGroup
	statuses := make([]int, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := postJSON(t, app.URL+"/groups/"+group.ID+"/join", tokens[i], nil)
			statuses[i] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	joined := 0
	for _, status := range statuses {
		if status == http.StatusCreated {
			joined++
		} else if status != http.StatusBadRequest {
			t.Fatalf("unexpected status %d", status)
		}
	}
	if joined != max {
		t.Fatalf("expected exactly %d admissions, got %d", max, joined)
	}

	resp = request(t, http.MethodGet, app.URL+"/groups/"+group.ID+"/members", rep.Token, nil)
	defer resp.Body.Close()
	var members []struct {
		UserID string `json:"user_id"`
	}
	decodeBody(t, resp, &members)
	if len(members) != max {
		t.Fatalf("expected %d members, got %d", max, len(members))
	}
}

func TestResourceUploadRecordsCaller(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app := newTestApp(t, pool)

	lecturer := registerAndLogin(t, app.URL, "lecturer")
	_, unitID := createServerAndUnit(t, app.URL, lecturer.Token)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("unit_id", unitID)
	_ = form.WriteField("title", "Week 1 Notes")
	_ = form.WriteField("resource_type", "document")
	// The form may claim any uploader; the server must ignore it.
	_ = form.WriteField("uploaded_by", uuid.NewString())
	part, err := form.CreateFormFile("file", "notes.pdf")
	if err != nil {
		t.Fatalf("form error: %v", err)
	}
	fmt.Fprint(part, "lecture notes")
	_ = form.Close()

	req, err := http.NewRequest(http.MethodPost, app.URL+"/resources/", &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+lecturer.Token)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d", resp.StatusCode)
	}
	var resource struct {
		ID         string `json:"id"`
		UploadedBy string `json:"uploaded_by"`
	}
	decodeBody(t, resp, &resource)
	if resource.UploadedBy != lecturer.ID {
		t.Fatalf("expected uploaded_by %s, got %s", lecturer.ID, resource.UploadedBy)
	}

	// Listing is scoped by unit.
	listResp := request(t, http.MethodGet, app.URL+"/resources/?unit_id="+unitID, lecturer.Token, nil)
	defer listResp.Body.Close()
	var resources []struct {
		ID string `json:"id"`
	}
	decodeBody(t, listResp, &resources)
	if len(resources) != 1 || resources[0].ID != resource.ID {
		t.Fatalf("expected uploaded resource in unit listing")
	}

	// The stored payload comes back on download.
	downloadResp := request(t, http.MethodGet, app.URL+"/resources/"+resource.ID+"/download", lecturer.Token, nil)
	defer downloadResp.Body.Close()
	if downloadResp.StatusCode != http.StatusOK {
		t.Fatalf("download status %d", downloadResp.StatusCode)
	}
	data, err := io.ReadAll(downloadResp.Body)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(data) != "lecture notes" {
		t.Fatalf("unexpected download payload %q", data)
	}
}

func createServerAndUnit(t *testing.T, appURL, token string) (string, string) {
	t.Helper()
	resp := postJSON(t, appURL+"/servers/", token, map[string]string{"name": "CS101"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create server status %d", resp.StatusCode)
	}
	var server struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &server)

	resp = postJSON(t, appURL+"/units/", token, map[string]string{
		"server_id": server.ID,
		"name":      "Calculus I",
		"code":      "MAT101",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create unit status %d", resp.StatusCode)
	}
	var unit struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &unit)
	return server.ID, unit.ID
}
