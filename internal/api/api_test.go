package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/leftoverlink/internal/auth"
	"github.com/erazemk/leftoverlink/internal/db"
	"github.com/erazemk/leftoverlink/internal/model"
	"github.com/erazemk/leftoverlink/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testPasscode  = "dorm-passcode"
	testMaxImage  = 1 << 20
)

type testEnv struct {
	server *httptest.Server
	repo   *store.MemoryRepository
	token  string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	hash, err := auth.HashPasscode(testPasscode)
	if err != nil {
		t.Fatalf("HashPasscode: %v", err)
	}
	if err := store.SetPasscodeHash(ctx, database, hash); err != nil {
		t.Fatalf("SetPasscodeHash: %v", err)
	}

	repo := store.NewMemoryRepository(nil, nil)
	if err := store.Seed(ctx, repo, []model.Listing{
		model.NewListing("Leftover Pasta", "Penne with marinara sauce.", "Dorm A", []string{model.TagVegetarian}, nil),
		model.NewListing("Half a Pizza", "Pepperoni pizza from last night.", "Apartment 3C", []string{model.TagNutFree}, nil),
	}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	server := httptest.NewServer(NewRouter(database, repo, testJWTSecret, testMaxImage))
	t.Cleanup(server.Close)

	env := &testEnv{server: server, repo: repo}
	env.token = env.login(t, "ana", testPasscode, http.StatusOK)
	return env
}

func (e *testEnv) login(t *testing.T, name, passcode string, wantStatus int) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name, "passcode": passcode})
	resp, err := http.Post(e.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("login: expected %d, got %d", wantStatus, resp.StatusCode)
	}
	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	return loginResp["token"]
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeListings(t *testing.T, resp *http.Response) []listingView {
	t.Helper()
	var views []listingView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decoding listings: %v", err)
	}
	return views
}

func viewTitles(views []listingView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Title)
	}
	return out
}

func testPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 128, 0, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	env.login(t, "ana", "wrong-passcode", http.StatusUnauthorized)
	env.login(t, "", testPasscode, http.StatusBadRequest)
	env.login(t, "   ", testPasscode, http.StatusBadRequest)
	env.login(t, strings.Repeat("x", MaxNameLength+1), testPasscode, http.StatusBadRequest)

	claims, err := auth.ValidateToken(testJWTSecret, env.token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Resident != "ana" {
		t.Errorf("expected resident 'ana', got %q", claims.Resident)
	}
}

func TestLoginWithoutPasscodeConfigured(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, store.NewMemoryRepository(nil, nil), testJWTSecret, testMaxImage))
	t.Cleanup(server.Close)

	env := &testEnv{server: server}
	env.login(t, "ana", "anything", http.StatusServiceUnavailable)
}

func TestListAndFilter(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Leftover Pasta", "Half a Pizza"}},
		{"?q=pizza", []string{"Half a Pizza"}},
		{"?q=%20%20", []string{"Leftover Pasta", "Half a Pizza"}},
		{"?tag=Vegetarian", []string{"Leftover Pasta"}},
		{"?tag=All", []string{"Leftover Pasta", "Half a Pizza"}},
		{"?q=leftover&tag=Nut-Free", []string{}},
	}

	for _, tt := range tests {
		resp := env.do(t, "GET", "/api/listings"+tt.query, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.query, resp.StatusCode)
		}
		got := viewTitles(decodeListings(t, resp))
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("%q: expected %v, got %v", tt.query, tt.want, got)
		}
	}
}

func TestCreateListingFlow(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/listings", env.token, map[string]any{
		"title":        "Vegan Salad",
		"description":  "Mixed greens with quinoa.",
		"location":     "Dorm B",
		"dietary_tags": []string{"Vegan", " Vegan ", "Halal"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created listingView
	json.NewDecoder(resp.Body).Decode(&created)
	if created.ID == "" {
		t.Fatal("expected an id")
	}
	if created.PostedBy != "ana" {
		t.Errorf("expected posted_by 'ana', got %q", created.PostedBy)
	}
	if strings.Join(created.DietaryTags, ",") != "Vegan,Halal" {
		t.Errorf("unexpected tags: %v", created.DietaryTags)
	}
	if created.TimeAgo != "Just now" {
		t.Errorf("expected 'Just now', got %q", created.TimeAgo)
	}

	// Newest first.
	resp = env.do(t, "GET", "/api/listings", "", nil)
	got := viewTitles(decodeListings(t, resp))
	if len(got) != 3 || got[0] != "Vegan Salad" {
		t.Errorf("expected new listing first, got %v", got)
	}

	resp = env.do(t, "GET", "/api/listings/"+created.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for new listing, got %d", resp.StatusCode)
	}
}

func TestCreateListingValidation(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing title", map[string]any{"description": "d", "location": "l"}, http.StatusBadRequest},
		{"blank description", map[string]any{"title": "t", "description": "  ", "location": "l"}, http.StatusBadRequest},
		{"missing location", map[string]any{"title": "t", "description": "d"}, http.StatusBadRequest},
		{"unknown field", map[string]any{"title": "t", "description": "d", "location": "l", "price": 3}, http.StatusBadRequest},
		{"bad image", map[string]any{"title": "t", "description": "d", "location": "l", "image": []byte("GIF89a")}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		resp := env.do(t, "POST", "/api/listings", env.token, tt.body)
		if resp.StatusCode != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, resp.StatusCode)
		}
	}

	if n := len(env.repo.Listings()); n != 2 {
		t.Errorf("rejected listings must not be stored, have %d", n)
	}
}

func TestCreateListingWithImage(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/listings", env.token, map[string]any{
		"title":       "Fruit Bowl",
		"description": "Assorted fruits.",
		"location":    "Student Center",
		"image":       testPNG(300, 200),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created listingView
	json.NewDecoder(resp.Body).Decode(&created)
	if !created.HasImage || created.ImageSize == "" {
		t.Errorf("expected image metadata, got %+v", created)
	}

	resp = env.do(t, "GET", "/api/listings/"+created.ID+"/image", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for image, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}

	resp = env.do(t, "GET", "/api/listings/"+created.ID+"/thumbnail", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for thumbnail, got %d", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}
	if b := img.Bounds(); b.Dx() != b.Dy() {
		t.Errorf("expected a square thumbnail, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestImageMissing(t *testing.T) {
	env := setupTestServer(t)
	id := env.repo.Listings()[0].ID

	for _, path := range []string{"/api/listings/" + id + "/image", "/api/listings/nope/thumbnail"} {
		resp := env.do(t, "GET", path, "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestDeleteListing(t *testing.T) {
	env := setupTestServer(t)
	id := env.repo.Listings()[0].ID

	resp := env.do(t, "DELETE", "/api/listings/"+id, env.token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if n := len(env.repo.Listings()); n != 1 {
		t.Errorf("expected 1 listing, got %d", n)
	}

	// Unknown ids are a no-op.
	resp = env.do(t, "DELETE", "/api/listings/"+id, env.token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 for unknown id, got %d", resp.StatusCode)
	}
	if n := len(env.repo.Listings()); n != 1 {
		t.Errorf("expected 1 listing, got %d", n)
	}

	resp = env.do(t, "GET", "/api/listings/"+id, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestRefresh(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/listings/refresh?tag=Nut-Free", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := viewTitles(decodeListings(t, resp)); len(got) != 1 || got[0] != "Half a Pizza" {
		t.Errorf("unexpected refresh result: %v", got)
	}
	if n := len(env.repo.Listings()); n != 2 {
		t.Errorf("refresh changed the store: %d listings", n)
	}
}

func TestTags(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "GET", "/api/tags", "", nil)
	var tags []string
	json.NewDecoder(resp.Body).Decode(&tags)
	if len(tags) != 5 || tags[0] != model.TagAll {
		t.Errorf("unexpected tags: %v", tags)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/listings", "", map[string]string{"title": "t", "description": "d", "location": "l"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for anonymous post, got %d", resp.StatusCode)
	}

	resp = env.do(t, "DELETE", "/api/listings/x", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/auth/logout", env.token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = env.do(t, "POST", "/api/listings", env.token, map[string]string{"title": "t", "description": "d", "location": "l"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

// readEvent returns the data line of the next server-sent event.
func readEvent(t *testing.T, r *bufio.Reader) []listingView {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			if event != "listings" {
				t.Fatalf("unexpected event %q", event)
			}
			var views []listingView
			if err := json.Unmarshal([]byte(data), &views); err != nil {
				t.Fatalf("decoding event: %v", err)
			}
			return views
		}
	}
}

func TestStream(t *testing.T) {
	env := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", env.server.URL+"/api/listings/stream?tag=Vegan", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	events := bufio.NewReader(resp.Body)
	if got := readEvent(t, events); len(got) != 0 {
		t.Errorf("expected empty initial view, got %v", viewTitles(got))
	}

	salad := model.NewListing("Vegan Salad", "Greens.", "Dorm B", []string{model.TagVegan}, nil)
	env.repo.Add(ctx, salad)
	if got := viewTitles(readEvent(t, events)); len(got) != 1 || got[0] != "Vegan Salad" {
		t.Errorf("expected salad after add, got %v", got)
	}

	// Listings outside the filter still trigger a recomputation.
	env.repo.Add(ctx, model.NewListing("Soup", "Chicken soup.", "Dorm C", nil, nil))
	if got := viewTitles(readEvent(t, events)); len(got) != 1 {
		t.Errorf("expected unchanged view, got %v", got)
	}

	env.repo.Delete(ctx, salad.ID)
	if got := readEvent(t, events); len(got) != 0 {
		t.Errorf("expected empty view after delete, got %v", viewTitles(got))
	}
}

// stalledWriter is a ResponseWriter whose first Write blocks until release
// is closed, like a client that stopped reading.
type stalledWriter struct {
	header  http.Header
	writing chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStalledWriter() *stalledWriter {
	return &stalledWriter{
		header:  make(http.Header),
		writing: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (w *stalledWriter) Header() http.Header { return w.header }
func (w *stalledWriter) WriteHeader(int)     {}
func (w *stalledWriter) Flush()              {}

func (w *stalledWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.writing) })
	<-w.release
	return len(p), nil
}

func TestStreamDropsSlowClient(t *testing.T) {
	repo := store.NewMemoryRepository(nil, nil)
	h := &ListingsHandler{Repo: repo, MaxImageBytes: testMaxImage}

	w := newStalledWriter()
	req := httptest.NewRequest("GET", "/api/listings/stream", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Stream(w, req)
	}()

	select {
	case <-w.writing:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never wrote its first event")
	}

	// The handler is stuck writing; every Add must still return.
	added := make(chan struct{})
	go func() {
		defer close(added)
		for i := 0; i < StreamBuffer+2; i++ {
			repo.Add(context.Background(), model.NewListing("Soup", "Soup.", "Dorm A", nil, nil))
		}
	}()
	select {
	case <-added:
	case <-time.After(5 * time.Second):
		t.Fatal("store blocked on a slow stream client")
	}

	close(w.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("slow stream client was not disconnected")
	}

	if n := len(repo.Listings()); n != StreamBuffer+2 {
		t.Errorf("expected %d listings, got %d", StreamBuffer+2, n)
	}
}
