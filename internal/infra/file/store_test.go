package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"classquiz-service/internal/domain"
)

func TestQuizStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenQuizStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	first, err := store.Create(ctx, domain.Quiz{
		Title: "Water cycle",
		Questions: []domain.Question{
			{
				Text:          "What lifts moisture into the air from the oceans?",
				Options:       []string{"Evaporation", "Erosion", "Friction", ""},
				CorrectAnswer: domain.AnswerIndex(0),
			},
			{
				Text:    "Which process forms clouds in the atmosphere?",
				Options: []string{"Condensation", "Erosion", "", ""},
			},
		},
		Filename:        "water.pdf",
		Enabled:         true,
		DurationMinutes: 2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := store.Create(ctx, domain.Quiz{
		Title:           "Photosynthesis",
		Questions:       []domain.Question{{Text: "Which gas do plants absorb from air?", Options: []string{"CO2", "O2", "", ""}}},
		AutoGenerated:   true,
		DurationMinutes: 1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected sequential ids, got %d %d", first.ID, second.ID)
	}

	// reload from disk and compare the full id -> quiz mapping
	reloaded, err := OpenQuizStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	before, _ := store.List(ctx)
	after, _ := reloaded.List(ctx)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("round trip mismatch:\nbefore %+v\nafter %+v", before, after)
	}

	// counter must survive the reload
	third, err := reloaded.Create(ctx, domain.Quiz{
		Title:     "Cells",
		Questions: []domain.Question{{Text: "What is the powerhouse of the cell called?", Options: []string{"Mitochondria", "Ribosome", "", ""}}},
	})
	if err != nil {
		t.Fatalf("create after reload: %v", err)
	}
	if third.ID != 3 {
		t.Fatalf("expected counter continuation to 3, got %d", third.ID)
	}
}

func TestQuizStoreFileShape(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenQuizStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Create(ctx, domain.Quiz{
		Title:           "Shapes",
		Questions:       []domain.Question{{Text: "How many sides does a hexagon have in total?", Options: []string{"5", "6", "7", "8"}}},
		DurationMinutes: 1,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "quizzes.json"))
	if err != nil {
		t.Fatalf("read quizzes.json: %v", err)
	}
	var byID map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &byID); err != nil {
		t.Fatalf("parse quizzes.json: %v", err)
	}
	quiz, ok := byID["1"]
	if !ok {
		t.Fatalf("expected quiz under key \"1\", got %v", byID)
	}
	if quiz["title"] != "Shapes" || quiz["enabled"] != false {
		t.Fatalf("unexpected quiz shape: %v", quiz)
	}
	questions := quiz["questions"].([]interface{})
	q := questions[0].(map[string]interface{})
	if q["correct_answer"] != nil {
		t.Fatalf("unset answer must serialize as null, got %v", q["correct_answer"])
	}

	raw, err = os.ReadFile(filepath.Join(dir, "counter.json"))
	if err != nil {
		t.Fatalf("read counter.json: %v", err)
	}
	var counter map[string]int
	if err := json.Unmarshal(raw, &counter); err != nil {
		t.Fatalf("parse counter.json: %v", err)
	}
	if counter["quiz_counter"] != 1 {
		t.Fatalf("expected quiz_counter 1, got %v", counter)
	}
}

func TestRecordStoreAppendAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenRecordStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	record := domain.StudentRecord{
		ID:           "r-1",
		QuizID:       1,
		QuizTitle:    "Water cycle",
		StudentName:  "Alice",
		StudentEmail: "a@example.com",
		SubmittedAt:  time.Date(2025, 3, 10, 9, 1, 0, 0, time.UTC),
		Score:        1,
		Total:        2,
		Percentage:   50.00,
	}
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("append: %v", err)
	}

	reloaded, err := OpenRecordStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	records, _ := reloaded.List(ctx)
	if len(records) != 1 || !reflect.DeepEqual(records[0], record) {
		t.Fatalf("round trip mismatch: %+v", records)
	}
}

func TestOpenQuizStoreRejectsBadIDKey(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "quizzes.json"), []byte(`{"abc": {"title":"x"}}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := OpenQuizStore(dir); err == nil {
		t.Fatalf("expected error for non-numeric quiz id")
	}
}
