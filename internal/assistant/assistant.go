// Package assistant holds the conversation orchestrator: it decides which
// remote services a submission needs, sequences the calls, and appends the
// resulting turns to the conversation.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"agriassist/internal/domain"
	"agriassist/internal/metrics"
	"agriassist/internal/prompt"
)

// ErrEmptySubmission is returned when a submission carries neither text nor
// an image. No remote call is made and the conversation is untouched.
var ErrEmptySubmission = errors.New("submission needs a question, an image, or both")

// TurnInput is one user submission.
type TurnInput struct {
	Text      string
	Image     []byte
	ImageName string
}

// Result is the outcome of one completed turn. The turn always completes
// once input validation passes: remote failures are narrated to the user,
// and the adapters use Classification/NarrationErr to map status codes.
type Result struct {
	Answer         string
	Classification *domain.Classification
	NarrationErr   error
}

type Assistant struct {
	classifier domain.Classifier
	narrator   domain.Narrator
	logger     *slog.Logger
}

type Config struct {
	Classifier domain.Classifier
	Narrator   domain.Narrator
	Logger     *slog.Logger
}

func New(cfg Config) *Assistant {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Assistant{
		classifier: cfg.Classifier,
		narrator:   cfg.Narrator,
		logger:     cfg.Logger,
	}
}

// Respond processes one submission to completion. An image selects the
// classify-then-narrate path; text alone goes straight to narration. The
// calls are strictly sequential because the narration prompt embeds the
// classifier's output. On success or narrated failure the conversation
// grows by exactly two turns.
func (a *Assistant) Respond(ctx context.Context, conv *domain.Conversation, in TurnInput) (*Result, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Image) == 0 {
		return nil, ErrEmptySubmission
	}

	res := &Result{}
	var narrationPrompt string
	if len(in.Image) > 0 {
		metrics.ClassifierCalls.Inc()
		c := a.classifier.Classify(ctx, in.Image)
		if c.Failed() {
			metrics.ClassifierFailures.Inc()
			a.logger.Warn("classification failed", "classifier", a.classifier.Name(), "err", c.Err)
		}
		res.Classification = &c
		narrationPrompt = prompt.WithClassification(text, c)
	} else {
		narrationPrompt = prompt.TextOnly(text)
	}

	metrics.NarratorCalls.Inc()
	answer, err := a.narrator.Narrate(ctx, narrationPrompt)
	if err != nil {
		metrics.NarratorFailures.Inc()
		a.logger.Warn("narration failed", "narrator", a.narrator.Name(), "err", err)
		answer = fallbackAnswer(err)
		res.NarrationErr = err
	}
	res.Answer = answer

	conv.Append(domain.Turn{
		Role:      domain.RoleUser,
		Text:      text,
		Image:     in.Image,
		ImageName: in.ImageName,
	})
	conv.Append(domain.Turn{
		Role: domain.RoleAssistant,
		Text: answer,
	})
	metrics.TurnsTotal.Inc()

	return res, nil
}

// fallbackAnswer is the user-displayable text for a failed narration call.
func fallbackAnswer(err error) string {
	return fmt.Sprintf("Sorry, I encountered an error trying to reach the AI model: %v. Please try again in a moment.", err)
}
