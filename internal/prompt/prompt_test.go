package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"agriassist/internal/domain"
)

func TestTextOnlyEmbedsQuestion(t *testing.T) {
	q := "Why are my tomato leaves yellow?"
	p := TextOnly(q)
	if !strings.Contains(p, q) {
		t.Errorf("prompt does not contain the question:\n%s", p)
	}
	if !strings.Contains(p, "agricultural assistant") {
		t.Errorf("prompt lacks persona framing:\n%s", p)
	}
}

func TestTextOnlyDeterministic(t *testing.T) {
	q := "When should I sow wheat?"
	if TextOnly(q) != TextOnly(q) {
		t.Error("TextOnly is not deterministic")
	}
}

func TestWithClassificationEmbedsReportVerbatim(t *testing.T) {
	report := json.RawMessage(`{"is_plant":true,"health_assessment":{"is_healthy":false,"diseases":[{"name":"late blight","probability":0.91}]}}`)
	c := domain.Classification{Report: report}

	p := WithClassification("what is this?", c)

	if !strings.Contains(p, c.PromptText()) {
		t.Errorf("prompt does not embed the rendered classification:\n%s", p)
	}
	if !strings.Contains(p, "late blight") {
		t.Error("prompt lost classification content")
	}
	if !strings.Contains(p, "Organic Solutions") || !strings.Contains(p, "Chemical Solutions") {
		t.Error("prompt lacks the treatment list instructions")
	}
	if !strings.Contains(p, "what is this?") {
		t.Error("prompt does not carry the farmer's question")
	}
}

func TestWithClassificationDeterministic(t *testing.T) {
	c := domain.Classification{Report: json.RawMessage(`{"is_plant":true}`)}
	a := WithClassification("q", c)
	b := WithClassification("q", c)
	if a != b {
		t.Error("WithClassification is not deterministic for identical inputs")
	}
}

func TestWithClassificationDefaultQuestion(t *testing.T) {
	c := domain.Classification{Report: json.RawMessage(`{}`)}
	p := WithClassification("   ", c)
	if !strings.Contains(p, DefaultImageQuestion) {
		t.Errorf("missing question was not replaced by the default placeholder:\n%s", p)
	}
}

func TestWithClassificationEmbedsFailure(t *testing.T) {
	c := domain.ClassificationFailure("plant.id request: connection refused")
	p := WithClassification("help", c)
	if !strings.Contains(p, "connection refused") {
		t.Errorf("prompt does not carry the classifier error:\n%s", p)
	}
	if !strings.Contains(p, `"error"`) {
		t.Errorf("classifier failure is not rendered as an error document:\n%s", p)
	}
}
