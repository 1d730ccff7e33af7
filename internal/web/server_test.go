package web

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/revision/internal/domain"
	"github.com/conorfennell/revision/internal/generate"
	"github.com/conorfennell/revision/internal/knol"
	"github.com/conorfennell/revision/internal/review"
	"github.com/conorfennell/revision/internal/storage"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options, cards ...domain.Card) (*Server, *review.Session) {
	t.Helper()
	session, err := review.Open(context.Background(), storage.NewMemoryStore(), review.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("review.Open() error = %v", err)
	}
	if len(cards) > 0 {
		if _, err := session.Seed(context.Background(), cards); err != nil {
			t.Fatalf("Seed() error = %v", err)
		}
	}
	srv, err := NewServer(session, opts)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv, session
}

func do(t *testing.T, srv http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestIndexAndDeck(t *testing.T) {
	srv, _ := newTestServer(t, Options{}, domain.Card{Question: "Capital of France", Answer: "Paris"})

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Revision Scheduler") {
		t.Fatalf("GET / = %d %q", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/deck", nil))
	if !strings.Contains(rec.Body.String(), "<strong>1</strong>") {
		t.Errorf("GET /deck body = %q, want one due card", rec.Body.String())
	}
}

func TestReviewFlow(t *testing.T) {
	srv, session := newTestServer(t, Options{}, domain.Card{Question: "Capital of France", Answer: "Paris"})
	id := knol.ID("Capital of France")

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/review/next", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "Capital of France") || strings.Contains(body, "Paris") {
		t.Fatalf("GET /review/next body = %q, want question without answer", body)
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/review/"+id+"/answer", nil))
	body = rec.Body.String()
	if !strings.Contains(body, "Paris") {
		t.Fatalf("GET answer body = %q, want answer", body)
	}
	for _, g := range domain.Grades() {
		if !strings.Contains(body, `value="`+g.String()+`"`) {
			t.Errorf("answer is missing grade button %s", g)
		}
	}

	rec = do(t, srv, postForm("/review/"+id, url.Values{"grade": {"Good"}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST review = %d %q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "no cards due") {
		t.Errorf("after last review body = %q, want empty deck", rec.Body.String())
	}

	cs, _ := session.Card(id)
	if cs.Repetitions != 1 || cs.Interval != 6 {
		t.Errorf("card after Good = %+v, want repetitions 1 interval 6", cs)
	}
}

func TestPostReviewErrors(t *testing.T) {
	srv, _ := newTestServer(t, Options{}, domain.Card{Question: "q", Answer: "a"})
	id := knol.ID("q")

	tests := []struct {
		name string
		path string
		form url.Values
		want int
	}{
		{"invalid grade", "/review/" + id, url.Values{"grade": {"Perfect"}}, http.StatusBadRequest},
		{"missing grade", "/review/" + id, url.Values{}, http.StatusBadRequest},
		{"unknown card", "/review/nope", url.Values{"grade": {"Good"}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, postForm(tt.path, tt.form))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/review/nope/answer", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("answer of unknown card = %d, want 404", rec.Code)
	}
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t, Options{}, domain.Card{Question: "q", Answer: "a"})

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /export = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "user_progress.json") {
		t.Errorf("Content-Disposition = %q", got)
	}
	cards, err := storage.Unmarshal(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Unmarshal(export) error = %v", err)
	}
	if _, ok := cards[knol.ID("q")]; !ok || len(cards) != 1 {
		t.Errorf("exported cards = %v", cards)
	}
}

func TestImport(t *testing.T) {
	srv, session := newTestServer(t, Options{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("deck", "deck.md")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("Q: one\nA: 1\n---\nQ: two\nA: 2\n---\nQ: dangling\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /import = %d %q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "2 cards added") {
		t.Errorf("import body = %q", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "no answer") {
		t.Errorf("import body = %q, want the parse problem reported", rec.Body.String())
	}
	if session.Len() != 2 {
		t.Errorf("session.Len() = %d, want 2", session.Len())
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/import", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("import without file = %d, want 400", rec.Code)
	}
}

func TestGenerate(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv, _ := newTestServer(t, Options{})
		rec := do(t, srv, postForm("/generate", url.Values{"note": {"go"}}))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("partial", func(t *testing.T) {
		calls := 0
		gen := generate.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
			calls++
			if calls > 2 {
				return "", errors.New("quota exceeded")
			}
			return "What is a goroutine?", nil
		})
		srv, session := newTestServer(t, Options{
			Generator: gen,
			Questions: generate.Options{Count: 5, Attempts: 1},
		})
		rec := do(t, srv, postForm("/generate", url.Values{"note": {"goroutines"}}))
		body := rec.Body.String()
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(body, "Generated 2 Questions") || !strings.Contains(body, "quota exceeded") {
			t.Errorf("body = %q", body)
		}
		if session.Len() != 0 {
			t.Errorf("generation changed the deck: %d cards", session.Len())
		}
	})

	t.Run("empty note", func(t *testing.T) {
		gen := generate.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
			return "q", nil
		})
		srv, _ := newTestServer(t, Options{Generator: gen})
		rec := do(t, srv, postForm("/generate", url.Values{"note": {"  "}}))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestSync(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/sync", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("sync without sources = %d, want 404", rec.Code)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "deck.md"), []byte("Q: synced\nA: yes\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv, session := newTestServer(t, Options{Sources: []string{dir}, ReposDir: t.TempDir()})
	rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/sync", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "1 new") {
		t.Fatalf("POST /sync = %d %q", rec.Code, rec.Body.String())
	}
	if _, ok := session.Card(knol.ID("synced")); !ok {
		t.Error("synced card missing from session")
	}
}
