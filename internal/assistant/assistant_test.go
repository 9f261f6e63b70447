package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"agriassist/internal/domain"
	"agriassist/internal/prompt"
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
	prompts []string
	answer  string
	err     error
}

func (f *fakeNarrator) Narrate(ctx context.Context, p string) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.answer, f.err
}
func (f *fakeNarrator) Name() string                      { return "fake-narrator" }
func (f *fakeNarrator) Healthy(ctx context.Context) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestAssistant(clf *fakeClassifier, narr *fakeNarrator) *Assistant {
	return New(Config{Classifier: clf, Narrator: narr, Logger: testLogger()})
}

func TestTextOnlyNeverCallsClassifier(t *testing.T) {
	clf := &fakeClassifier{}
	narr := &fakeNarrator{answer: "Yellow leaves usually mean nitrogen deficiency."}
	a := newTestAssistant(clf, narr)
	conv := domain.NewConversation("c1")

	res, err := a.Respond(t.Context(), conv, TurnInput{Text: "Why are my tomato leaves yellow?"})
	if err != nil {
		t.Fatal(err)
	}

	if clf.calls != 0 {
		t.Errorf("classifier called %d times for a text-only submission", clf.calls)
	}
	if len(narr.prompts) != 1 {
		t.Fatalf("narrator called %d times, want 1", len(narr.prompts))
	}
	if !strings.Contains(narr.prompts[0], "Why are my tomato leaves yellow?") {
		t.Error("narration prompt does not carry the literal question")
	}
	if res.Answer != narr.answer {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.Classification != nil {
		t.Error("text-only turn should not produce a classification")
	}
	if conv.Len() != 3 { // greeting + user + assistant
		t.Errorf("conversation length = %d, want 3", conv.Len())
	}
}

func TestImageSubmissionClassifiesExactlyOnce(t *testing.T) {
	report := json.RawMessage(`{"is_plant":true,"health_assessment":{"is_healthy":true,"diseases":[]}}`)
	isPlant := true
	clf := &fakeClassifier{result: domain.Classification{Report: report, IsPlant: &isPlant}}
	narr := &fakeNarrator{answer: "Your plant looks healthy."}
	a := newTestAssistant(clf, narr)
	conv := domain.NewConversation("c1")

	res, err := a.Respond(t.Context(), conv, TurnInput{Image: []byte("jpeg"), ImageName: "leaf.jpg"})
	if err != nil {
		t.Fatal(err)
	}

	if clf.calls != 1 {
		t.Errorf("classifier called %d times, want exactly 1", clf.calls)
	}
	if len(narr.prompts) != 1 {
		t.Fatalf("narrator called %d times, want 1", len(narr.prompts))
	}
	// The classification reaches the composer before the narrator runs.
	if !strings.Contains(narr.prompts[0], clf.result.PromptText()) {
		t.Error("narration prompt does not embed the classification")
	}
	if !strings.Contains(narr.prompts[0], prompt.DefaultImageQuestion) {
		t.Error("missing question was not defaulted")
	}
	if res.Classification == nil || res.Classification.Failed() {
		t.Error("classification should be carried in the result")
	}

	if conv.Len() != 3 {
		t.Fatalf("conversation length = %d, want 3", conv.Len())
	}
	userTurn := conv.Turns[1]
	if userTurn.Role != domain.RoleUser || !userTurn.HasImage() || userTurn.ImageName != "leaf.jpg" {
		t.Errorf("user turn does not carry the image: %+v", userTurn)
	}
}

func TestClassifierFailureStillNarrates(t *testing.T) {
	clf := &fakeClassifier{result: domain.ClassificationFailure("plant.id request: connection refused")}
	narr := &fakeNarrator{answer: "I could not analyze the image, but here is general advice."}
	a := newTestAssistant(clf, narr)
	conv := domain.NewConversation("c1")

	res, err := a.Respond(t.Context(), conv, TurnInput{Text: "what is wrong?", Image: []byte("jpeg")})
	if err != nil {
		t.Fatal(err)
	}

	if len(narr.prompts) != 1 {
		t.Fatal("narrator should still be invoked after a classifier failure")
	}
	if !strings.Contains(narr.prompts[0], "connection refused") {
		t.Error("classifier error was not embedded into the narration prompt")
	}
	if res.Classification == nil || !res.Classification.Failed() {
		t.Error("result should expose the failed classification")
	}
	if conv.Len() != 3 {
		t.Errorf("turn did not complete: conversation length = %d", conv.Len())
	}
}

func TestNarrationFailureCompletesTurn(t *testing.T) {
	isPlant := true
	clf := &fakeClassifier{result: domain.Classification{Report: json.RawMessage(`{"is_plant":true}`), IsPlant: &isPlant}}
	narr := &fakeNarrator{err: errors.New("quota exceeded")}
	a := newTestAssistant(clf, narr)
	conv := domain.NewConversation("c1")

	res, err := a.Respond(t.Context(), conv, TurnInput{Image: []byte("jpeg")})
	if err != nil {
		t.Fatal(err)
	}

	if res.NarrationErr == nil {
		t.Error("narration error should be surfaced in the result")
	}
	if !strings.Contains(res.Answer, "quota exceeded") {
		t.Errorf("fallback answer should embed the error detail: %q", res.Answer)
	}
	if conv.Len() != 3 {
		t.Errorf("turn must still complete: conversation length = %d", conv.Len())
	}
	if conv.Turns[2].Text != res.Answer {
		t.Error("assistant turn text should be the fallback string")
	}
}

func TestEmptySubmissionRejectedBeforeAnyCall(t *testing.T) {
	clf := &fakeClassifier{}
	narr := &fakeNarrator{}
	a := newTestAssistant(clf, narr)
	conv := domain.NewConversation("c1")

	_, err := a.Respond(t.Context(), conv, TurnInput{Text: "   "})
	if !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("expected ErrEmptySubmission, got %v", err)
	}
	if clf.calls != 0 || len(narr.prompts) != 0 {
		t.Error("no remote call may be attempted for an empty submission")
	}
	if conv.Len() != 1 {
		t.Errorf("conversation must be untouched, length = %d", conv.Len())
	}
}

func TestConversationGrowsByTwoPerSubmission(t *testing.T) {
	clf := &fakeClassifier{result: domain.Classification{Report: json.RawMessage(`{}`)}}
	narr := &fakeNarrator{answer: "ok"}
	a := newTestAssistant(clf, narr)
	conv := domain.NewConversation("c1")

	inputs := []TurnInput{
		{Text: "first question"},
		{Text: "about this photo", Image: []byte("jpeg")},
		{Image: []byte("jpeg2")},
	}
	for i, in := range inputs {
		before := conv.Len()
		if _, err := a.Respond(t.Context(), conv, in); err != nil {
			t.Fatalf("submission %d: %v", i, err)
		}
		if conv.Len() != before+2 {
			t.Errorf("submission %d: conversation grew by %d, want 2", i, conv.Len()-before)
		}
	}
}

func TestSessionsSeedAndReset(t *testing.T) {
	s := NewSessions(testLogger())

	conv := s.GetOrCreate("web_abc")
	if conv.Len() != 1 || conv.Turns[0].Role != domain.RoleAssistant || conv.Turns[0].Text != domain.Greeting {
		t.Errorf("new conversation is not seeded with the greeting: %+v", conv.Turns)
	}
	if again := s.GetOrCreate("web_abc"); again != conv {
		t.Error("GetOrCreate must return the same conversation for the same session")
	}
	if other := s.GetOrCreate("web_xyz"); other == conv {
		t.Error("distinct sessions must not share a conversation")
	}

	s.Reset("web_abc")
	if fresh := s.GetOrCreate("web_abc"); fresh == conv {
		t.Error("Reset must discard the old conversation")
	}
}
