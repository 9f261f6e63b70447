package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"agriassist/internal/assistant"
	"agriassist/internal/domain"
)

type fakeClassifier struct {
	calls  int
	result domain.Classification
}

func (f *fakeClassifier) Classify(ctx context.Context, imageBytes []byte) domain.Classification {
	f.calls++
	return f.result
}
func (f *fakeClassifier) Name() string                      { return "fake-classifier" }
func (f *fakeClassifier) Healthy(ctx context.Context) error { return nil }

type fakeNarrator struct {
	calls  int
	answer string
	err    error
}

func (f *fakeNarrator) Narrate(ctx context.Context, p string) (string, error) {
	f.calls++
	return f.answer, f.err
}
func (f *fakeNarrator) Name() string                      { return "fake-narrator" }
func (f *fakeNarrator) Healthy(ctx context.Context) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestWeb(t *testing.T, clf *fakeClassifier, narr *fakeNarrator, classifierReady bool) *Web {
	t.Helper()
	asst := assistant.New(assistant.Config{Classifier: clf, Narrator: narr, Logger: testLogger()})
	return NewWeb(WebConfig{
		Assistant:       asst,
		Sessions:        assistant.NewSessions(testLogger()),
		ClassifierReady: classifierReady,
		NarratorReady:   true,
		NarratorName:    "fake-narrator",
		Logger:          testLogger(),
	})
}

func postForm(t *testing.T, h http.Handler, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postMultipart(t *testing.T, h http.Handler, question string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mp := multipart.NewWriter(body)
	if question != "" {
		_ = mp.WriteField("question", question)
	}
	if image != nil {
		part, err := mp.CreateFormFile("image", "leaf.jpg")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(image)
	}
	_ = mp.Close()

	req := httptest.NewRequest(http.MethodPost, "/ask", body)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, rec.Body.String())
	}
	return out
}

func TestAskRejectsEmptySubmission(t *testing.T) {
	clf := &fakeClassifier{}
	narr := &fakeNarrator{answer: "unused"}
	w := newTestWeb(t, clf, narr, true)

	rec := postForm(t, w.Handler(), url.Values{})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if clf.calls != 0 || narr.calls != 0 {
		t.Error("no remote calls may be made for an empty submission")
	}
}

func TestAskTextOnly(t *testing.T) {
	clf := &fakeClassifier{}
	narr := &fakeNarrator{answer: "Try a balanced NPK fertilizer."}
	w := newTestWeb(t, clf, narr, true)

	rec := postForm(t, w.Handler(), url.Values{"question": {"Why are my tomato leaves yellow?"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["answer"]; got != narr.answer {
		t.Errorf("answer = %q", got)
	}
	if clf.calls != 0 {
		t.Error("classifier must not run for text-only submissions")
	}
}

func TestAskWithImage(t *testing.T) {
	clf := &fakeClassifier{result: domain.Classification{Report: json.RawMessage(`{"is_plant":true}`)}}
	narr := &fakeNarrator{answer: "Looks healthy."}
	w := newTestWeb(t, clf, narr, true)

	rec := postMultipart(t, w.Handler(), "is it healthy?", []byte("jpeg-bytes"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if clf.calls != 1 {
		t.Errorf("classifier called %d times, want 1", clf.calls)
	}
	if got := decodeBody(t, rec)["answer"]; got != narr.answer {
		t.Errorf("answer = %q", got)
	}
}

func TestAskClassifierFailureIs502(t *testing.T) {
	clf := &fakeClassifier{result: domain.ClassificationFailure("plant.id returned 500: upstream down")}
	narr := &fakeNarrator{answer: "narrated anyway"}
	w := newTestWeb(t, clf, narr, true)

	rec := postMultipart(t, w.Handler(), "", []byte("jpeg-bytes"))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(decodeBody(t, rec)["error"], "upstream down") {
		t.Error("502 body should carry the upstream error detail")
	}
}

func TestAskNarrationFailureIs500(t *testing.T) {
	clf := &fakeClassifier{result: domain.Classification{Report: json.RawMessage(`{}`)}}
	narr := &fakeNarrator{err: context.DeadlineExceeded}
	w := newTestWeb(t, clf, narr, true)

	rec := postMultipart(t, w.Handler(), "", []byte("jpeg-bytes"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", rec.Code, rec.Body.String())
	}
}

func TestAskImageWithoutClassifierCredentialIs503(t *testing.T) {
	clf := &fakeClassifier{}
	narr := &fakeNarrator{answer: "unused"}
	w := newTestWeb(t, clf, narr, false)

	rec := postMultipart(t, w.Handler(), "what is this?", []byte("jpeg-bytes"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", rec.Code, rec.Body.String())
	}
	if clf.calls != 0 || narr.calls != 0 {
		t.Error("no remote calls may be made when the needed credential is absent")
	}

	// Text-only still works: only the image path is disabled.
	rec = postForm(t, w.Handler(), url.Values{"question": {"hello"}})
	if rec.Code != http.StatusOK {
		t.Errorf("text path should stay available, status = %d", rec.Code)
	}
}

func TestSessionCookieScopesConversation(t *testing.T) {
	clf := &fakeClassifier{}
	narr := &fakeNarrator{answer: "ok"}
	w := newTestWeb(t, clf, narr, true)
	h := w.Handler()

	rec := postForm(t, h, url.Values{"question": {"first"}})
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie set")
	}

	// Same cookie continues the same conversation: greeting + 2 turns each.
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(url.Values{"question": {"second"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatal(rec2.Body.String())
	}

	conv := w.sessions.GetOrCreate(cookie.Value)
	if conv.Len() != 5 { // greeting + 2 submissions * 2 turns
		t.Errorf("conversation length = %d, want 5", conv.Len())
	}
}

func TestStatusEndpoint(t *testing.T) {
	w := newTestWeb(t, &fakeClassifier{}, &fakeNarrator{}, true)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fake-narrator") {
		t.Errorf("status body missing narrator name: %s", rec.Body.String())
	}
}
