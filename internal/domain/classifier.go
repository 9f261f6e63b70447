package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// DiseaseSuggestion is one candidate diagnosis extracted from a classifier
// report. Treatment stays raw JSON: the narration model interprets it, this
// system does not.
type DiseaseSuggestion struct {
	Name        string          `json:"name"`
	Probability float64         `json:"probability"`
	Treatment   json.RawMessage `json:"treatment,omitempty"`
}

// Classification is the outcome of one classifier call: either the raw
// diagnostic report, passed through verbatim to the narration prompt, or a
// failure message. Callers must check Failed() before treating the report
// as valid diagnostic data.
type Classification struct {
	// Report is the service's response body, unmodified. Only set on success.
	Report json.RawMessage
	// IsPlant and Suggestions are convenience views decoded from Report.
	IsPlant     *bool
	Suggestions []DiseaseSuggestion
	// Err is set when the call failed (transport, non-2xx, malformed body,
	// missing credential). Failure is terminal for the turn; no retries.
	Err string
}

// ClassificationFailure builds the failure arm of the union.
func ClassificationFailure(format string, args ...any) Classification {
	return Classification{Err: fmt.Sprintf(format, args...)}
}

func (c Classification) Failed() bool { return c.Err != "" }

// PromptText renders the classification for verbatim embedding into a
// narration prompt: the indented raw report on success, or a small JSON
// error document on failure.
func (c Classification) PromptText() string {
	if c.Failed() {
		doc, _ := json.MarshalIndent(map[string]string{"error": c.Err}, "", "  ")
		return string(doc)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, c.Report, "", "  "); err != nil {
		return string(c.Report)
	}
	return buf.String()
}

// Classifier diagnoses plant health from raw image bytes. Failures are
// reported inside the Classification itself so a turn can still complete
// with the error narrated to the user.
type Classifier interface {
	Classify(ctx context.Context, imageBytes []byte) Classification
	Name() string
	Healthy(ctx context.Context) error
}
