// Package classifier wraps the Plant.id health-assessment service.
package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"agriassist/internal/domain"
	"agriassist/internal/httpx"
)

const (
	healthAssessmentPath = "/health_assessment"
	maxErrorBodyBytes    = 512
)

// diseaseDetails are the detail fields requested per disease suggestion.
var diseaseDetails = []string{"common_names", "description", "treatment", "url"}

// PlantID implements domain.Classifier against the Plant.id v2 API.
type PlantID struct {
	apiKey  string
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

type Config struct {
	APIKey  string
	APIBase string
	Logger  *slog.Logger
}

func NewPlantID(cfg Config) *PlantID {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.plant.id/v2"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PlantID{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		client:  httpx.NewClient(httpx.DefaultTimeout),
		logger:  cfg.Logger,
	}
}

func (p *PlantID) Name() string { return "plant.id" }

func (p *PlantID) Healthy(ctx context.Context) error {
	if p.apiKey == "" {
		return fmt.Errorf("plant.id: no API key configured")
	}
	return nil
}

type healthRequest struct {
	Images         []string `json:"images"`
	DiseaseDetails []string `json:"disease_details"`
}

// healthReport decodes just enough of the response to expose the
// convenience fields; the full body is passed through verbatim.
type healthReport struct {
	IsPlant          *bool `json:"is_plant"`
	HealthAssessment struct {
		Diseases []struct {
			Name           string  `json:"name"`
			Probability    float64 `json:"probability"`
			DiseaseDetails struct {
				Treatment json.RawMessage `json:"treatment"`
			} `json:"disease_details"`
		} `json:"diseases"`
	} `json:"health_assessment"`
}

// Classify sends one health-assessment request for the given image bytes.
// All failures come back in the Classification's error arm; the caller
// embeds them into the narration prompt instead of aborting the turn.
func (p *PlantID) Classify(ctx context.Context, imageBytes []byte) domain.Classification {
	if p.apiKey == "" {
		return domain.ClassificationFailure("plant.id: no API key configured")
	}
	if len(imageBytes) == 0 {
		return domain.ClassificationFailure("plant.id: empty image")
	}

	payload := healthRequest{
		Images:         []string{base64.StdEncoding.EncodeToString(imageBytes)},
		DiseaseDetails: diseaseDetails,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ClassificationFailure("plant.id: marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+healthAssessmentPath, bytes.NewReader(body))
	if err != nil {
		return domain.ClassificationFailure("plant.id: new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("plant.id request failed", "err", err)
		return domain.ClassificationFailure("plant.id request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		p.logger.Warn("plant.id returned error status", "status", resp.StatusCode)
		return domain.ClassificationFailure("plant.id returned %d: %s", resp.StatusCode, string(excerpt))
	}

	report, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ClassificationFailure("plant.id: read response: %v", err)
	}

	var probe healthReport
	if err := json.Unmarshal(report, &probe); err != nil {
		return domain.ClassificationFailure("plant.id: malformed response: %v", err)
	}

	out := domain.Classification{
		Report:  json.RawMessage(report),
		IsPlant: probe.IsPlant,
	}
	for _, d := range probe.HealthAssessment.Diseases {
		out.Suggestions = append(out.Suggestions, domain.DiseaseSuggestion{
			Name:        d.Name,
			Probability: d.Probability,
			Treatment:   d.DiseaseDetails.Treatment,
		})
	}

	p.logger.Debug("plant.id classification complete",
		"is_plant", probe.IsPlant != nil && *probe.IsPlant,
		"suggestions", len(out.Suggestions),
	)
	return out
}
