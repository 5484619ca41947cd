package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/auth"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
	"classquiz-service/internal/mcq"
	"github.com/xuri/excelize/v2"
)

type apiFixture struct {
	server  *httptest.Server
	quizzes *memory.QuizStore
	records *memory.RecordStore
	token   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	quizzes := memory.NewQuizStore()
	records := memory.NewRecordStore()
	a := auth.New("teacher", "s3cret", "test-signing-key", time.Hour)
	generator := mcq.NewGenerator(mcq.NewHeuristicStrategy(
		mcq.RegexSplitter{}, mcq.FrequencyExtractor{}, 20, rand.New(rand.NewSource(1)),
	))
	quizService := app.NewQuizService(quizzes)
	attemptService := app.NewAttemptService(records)
	api := NewAPI(quizService, attemptService, generator, a)
	ws := NewWSHandler(quizService, attemptService, memory.NewAttemptRegistry())

	server := httptest.NewServer(NewRouter(api, ws, nil))
	t.Cleanup(server.Close)

	token, err := a.Login("teacher", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return &apiFixture{server: server, quizzes: quizzes, records: records, token: token}
}

func (f *apiFixture) do(t *testing.T, method, path string, body []byte, contentType string, authed bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func uploadBody(t *testing.T, filename, content string, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("document", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprint(fw, content)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return buf.Bytes(), mw.FormDataContentType()
}

const authoredDoc = `What gas do plants absorb during photosynthesis?
A. Carbon dioxide
B. Oxygen
C. Nitrogen
D. Helium

Which organ pumps blood through the human body?
A) The liver
B) The heart
C) The lungs
D) The kidneys
`

func TestLogin(t *testing.T) {
	f := newAPIFixture(t)

	body, _ := json.Marshal(map[string]string{"username": "teacher", "password": "s3cret"})
	resp := f.do(t, http.MethodPost, "/api/login", body, "application/json", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]string
	decodeBody(t, resp, &out)
	if out["token"] == "" {
		t.Fatal("expected a token")
	}

	body, _ = json.Marshal(map[string]string{"username": "teacher", "password": "wrong"})
	resp = f.do(t, http.MethodPost, "/api/login", body, "application/json", false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/quizzes", nil, "", false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestUploadExtractsAuthoredQuestions(t *testing.T) {
	f := newAPIFixture(t)

	body, contentType := uploadBody(t, "biology.txt", authoredDoc, nil)
	resp := f.do(t, http.MethodPost, "/api/quizzes", body, contentType, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var quiz quizView
	decodeBody(t, resp, &quiz)
	if quiz.ID != 1 {
		t.Fatalf("expected id 1, got %d", quiz.ID)
	}
	if quiz.Title != "biology" {
		t.Fatalf("expected title from filename, got %q", quiz.Title)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 parsed questions, got %d", len(quiz.Questions))
	}
	if quiz.Enabled || quiz.Open {
		t.Fatal("new quiz must start closed")
	}
	if quiz.AutoGenerated {
		t.Fatal("authored upload must not be flagged auto generated")
	}
}

func TestUploadGenerateMode(t *testing.T) {
	f := newAPIFixture(t)

	doc := "The water cycle moves moisture between oceans and sky. Evaporation lifts water vapor from warm surfaces. Condensation forms clouds when the vapor cools at altitude. Precipitation returns the water to rivers and soil."
	body, contentType := uploadBody(t, "water.txt", doc, map[string]string{"mode": "generate", "count": "3", "title": "Water Cycle"})
	resp := f.do(t, http.MethodPost, "/api/quizzes", body, contentType, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var quiz quizView
	decodeBody(t, resp, &quiz)
	if quiz.Title != "Water Cycle" {
		t.Fatalf("expected explicit title, got %q", quiz.Title)
	}
	if len(quiz.Questions) != 3 {
		t.Fatalf("expected 3 generated questions, got %d", len(quiz.Questions))
	}
	if !quiz.AutoGenerated {
		t.Fatal("generated quiz must be flagged auto generated")
	}
	for i, q := range quiz.Questions {
		if q.CorrectAnswer == nil {
			t.Fatalf("generated question %d has no answer key", i)
		}
	}
}

func TestUploadRejectsEmptyDocument(t *testing.T) {
	f := newAPIFixture(t)

	body, contentType := uploadBody(t, "empty.txt", "   \n", nil)
	resp := f.do(t, http.MethodPost, "/api/quizzes", body, contentType, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty document, got %d", resp.StatusCode)
	}
}

// flakyQuizStore persists nothing but keeps every mutation, mimicking a
// disk failure under the file store.
type flakyQuizStore struct {
	*memory.QuizStore
}

func (s *flakyQuizStore) Create(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	created, err := s.QuizStore.Create(ctx, quiz)
	if err != nil {
		return created, err
	}
	return created, fmt.Errorf("%w: disk full", domain.ErrPersistFailed)
}

func TestUploadPersistFailureKeepsQuiz(t *testing.T) {
	quizzes := &flakyQuizStore{QuizStore: memory.NewQuizStore()}
	a := auth.New("teacher", "s3cret", "test-signing-key", time.Hour)
	quizService := app.NewQuizService(quizzes)
	attemptService := app.NewAttemptService(memory.NewRecordStore())
	api := NewAPI(quizService, attemptService, mcq.NewGenerator(), a)
	ws := NewWSHandler(quizService, attemptService, memory.NewAttemptRegistry())
	server := httptest.NewServer(NewRouter(api, ws, nil))
	defer server.Close()

	token, err := a.Login("teacher", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	body, contentType := uploadBody(t, "biology.txt", authoredDoc, nil)
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/quizzes", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 despite persist failure, got %d", resp.StatusCode)
	}
	var quiz quizView
	decodeBody(t, resp, &quiz)
	if quiz.ID != 1 {
		t.Fatalf("expected the created quiz back, got %+v", quiz)
	}
	if quiz.Warning == "" {
		t.Fatal("expected a persist warning in the response")
	}

	kept, err := quizzes.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("quiz must stay in memory after a persist failure, got %d", len(kept))
	}
}

func TestSetAnswersAndToggle(t *testing.T) {
	f := newAPIFixture(t)

	body, contentType := uploadBody(t, "biology.txt", authoredDoc, nil)
	resp := f.do(t, http.MethodPost, "/api/quizzes", body, contentType, true)
	var quiz quizView
	decodeBody(t, resp, &quiz)

	answers, _ := json.Marshal(map[string][]int{"answers": {0, 1}})
	resp = f.do(t, http.MethodPut, fmt.Sprintf("/api/quizzes/%d/answers", quiz.ID), answers, "application/json", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &quiz)
	if quiz.Questions[0].CorrectAnswer == nil || *quiz.Questions[0].CorrectAnswer != 0 {
		t.Fatalf("answer key not applied: %+v", quiz.Questions[0].CorrectAnswer)
	}
	if quiz.Open {
		t.Fatal("keyed but disabled quiz must stay closed")
	}

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/quizzes/%d/toggle", quiz.ID), nil, "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &quiz)
	if !quiz.Enabled || !quiz.Open {
		t.Fatal("keyed and enabled quiz must be open")
	}

	wrong, _ := json.Marshal(map[string][]int{"answers": {0}})
	resp = f.do(t, http.MethodPut, fmt.Sprintf("/api/quizzes/%d/answers", quiz.ID), wrong, "application/json", true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for length mismatch, got %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/api/quizzes/999/toggle", nil, "", true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quiz, got %d", resp.StatusCode)
	}
}

func TestOpenQuizzesStripAnswers(t *testing.T) {
	f := newAPIFixture(t)

	_, err := f.quizzes.Create(context.Background(), domain.Quiz{
		Title:   "Open one",
		Enabled: true,
		Questions: []domain.Question{{
			Text:          "Which planet is known as the red planet?",
			Options:       []string{"Mars", "Venus", "Saturn", "Pluto"},
			CorrectAnswer: domain.AnswerIndex(0),
		}},
		DurationMinutes: 5,
	})
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	_, err = f.quizzes.Create(context.Background(), domain.Quiz{
		Title:   "Closed one",
		Enabled: false,
		Questions: []domain.Question{{
			Text:          "Placeholder?",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: domain.AnswerIndex(0),
		}},
		DurationMinutes: 5,
	})
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	resp := f.do(t, http.MethodGet, "/api/open-quizzes", nil, "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	raw, body := resp.Body, new(bytes.Buffer)
	body.ReadFrom(raw)
	raw.Close()
	if strings.Contains(body.String(), "correct_answer") {
		t.Fatalf("open quiz listing leaks the answer key: %s", body.String())
	}

	var views []studentQuizView
	if err := json.Unmarshal(body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 || views[0].Title != "Open one" {
		t.Fatalf("expected only the open quiz, got %+v", views)
	}
}

func TestRecordsAndExport(t *testing.T) {
	f := newAPIFixture(t)

	record := domain.StudentRecord{
		ID:           "rec-1",
		QuizID:       1,
		QuizTitle:    "Water cycle",
		StudentName:  "Alice",
		StudentEmail: "a@example.com",
		SubmittedAt:  time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC),
		Score:        1,
		Total:        2,
		Percentage:   50,
	}
	if err := f.records.Append(context.Background(), record); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	resp := f.do(t, http.MethodGet, "/api/records", nil, "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var records []domain.StudentRecord
	decodeBody(t, resp, &records)
	if len(records) != 1 || records[0].StudentName != "Alice" {
		t.Fatalf("unexpected records: %+v", records)
	}

	resp = f.do(t, http.MethodGet, "/api/records/export", nil, "", true)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	book, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows("Records")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(rows))
	}
	if rows[1][1] != "Alice" {
		t.Fatalf("unexpected exported row: %v", rows[1])
	}
}
