package mcq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"classquiz-service/internal/domain"
)

// RemoteStrategy asks a hosted text-generation endpoint for questions.
// Any transport error, non-200 status, or unparseable body is returned as
// an error so the chain can fall back to the local heuristic. The remote
// answer key is accepted after structural parsing only; there is no
// semantic verification.
type RemoteStrategy struct {
	url    string
	token  string
	client *http.Client
}

func NewRemoteStrategy(url, token string, timeout time.Duration) *RemoteStrategy {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &RemoteStrategy{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

type remoteRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters remoteParameters `json:"parameters"`
}

type remoteParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
}

type remoteResult struct {
	GeneratedText string `json:"generated_text"`
}

func (r *RemoteStrategy) Generate(ctx context.Context, text string, count int) ([]domain.Question, error) {
	if r.url == "" {
		return nil, fmt.Errorf("remote generation not configured")
	}

	payload, err := json.Marshal(remoteRequest{
		Inputs:     buildPrompt(text, count),
		Parameters: remoteParameters{MaxNewTokens: 180 * count, Temperature: 0.7},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote generation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote generation status %d", resp.StatusCode)
	}

	var results []remoteResult
	if err := json.Unmarshal(body, &results); err != nil || len(results) == 0 {
		return nil, fmt.Errorf("malformed remote response")
	}

	questions := parseRemoteQuestions(results[0].GeneratedText, count)
	if len(questions) == 0 {
		return nil, fmt.Errorf("remote response contained no questions")
	}
	return questions, nil
}

func buildPrompt(text string, count int) string {
	return fmt.Sprintf(
		"Create %d multiple choice questions from the text below. "+
			"Format each as:\nQUESTION: <text>\nA. <option>\nB. <option>\nC. <option>\nD. <option>\nANSWER: <letter>\n\nTEXT:\n%s",
		count, truncate(text, 3000))
}

// parseRemoteQuestions scans a QUESTION/A-D/ANSWER block response.
// Incomplete blocks are dropped rather than erroring; the caller decides
// whether zero parsed questions counts as failure.
func parseRemoteQuestions(text string, limit int) []domain.Question {
	var questions []domain.Question
	var current *domain.Question

	flush := func() {
		if current == nil {
			return
		}
		if current.Answered() && len(current.Options) == domain.MaxOptions && current.Text != "" {
			questions = append(questions, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "QUESTION:"):
			flush()
			current = &domain.Question{
				Text:          strings.TrimSpace(line[len("QUESTION:"):]),
				AutoGenerated: true,
			}
		case current != nil && optionLine.MatchString(line):
			if len(current.Options) < domain.MaxOptions {
				current.Options = append(current.Options, strings.TrimSpace(optionLine.FindStringSubmatch(line)[1]))
			}
		case current != nil && strings.HasPrefix(strings.ToUpper(line), "ANSWER:"):
			letter := strings.TrimSpace(strings.ToUpper(line[len("ANSWER:"):]))
			if len(letter) == 1 && letter[0] >= 'A' && letter[0] <= 'D' {
				current.CorrectAnswer = domain.AnswerIndex(int(letter[0] - 'A'))
			}
		}
		if limit > 0 && len(questions) >= limit {
			return questions
		}
	}
	flush()
	if limit > 0 && len(questions) > limit {
		questions = questions[:limit]
	}
	return questions
}
