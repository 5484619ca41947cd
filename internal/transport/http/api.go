package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"classquiz-service/internal/app"
	"classquiz-service/internal/auth"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/extract"
	"classquiz-service/internal/mcq"
	"classquiz-service/internal/report"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

const maxUploadBytes = 10 << 20

// API carries the teacher-panel and student HTTP endpoints.
type API struct {
	quizzes   *app.QuizService
	attempts  *app.AttemptService
	generator *mcq.Generator
	auth      *auth.Auth
}

func NewAPI(quizzes *app.QuizService, attempts *app.AttemptService, generator *mcq.Generator, a *auth.Auth) *API {
	return &API{quizzes: quizzes, attempts: attempts, generator: generator, auth: a}
}

// NewRouter mounts the REST API and the attempt websocket endpoint.
func NewRouter(api *API, ws *WSHandler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Post("/api/login", api.handleLogin)
	r.Get("/api/open-quizzes", api.handleOpenQuizzes)
	r.Get("/ws/attempt", ws.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(api.auth.Middleware)
		r.Post("/api/quizzes", api.handleUpload)
		r.Get("/api/quizzes", api.handleListQuizzes)
		r.Get("/api/quizzes/{id}", api.handleGetQuiz)
		r.Put("/api/quizzes/{id}/answers", api.handleSetAnswers)
		r.Post("/api/quizzes/{id}/toggle", api.handleToggle)
		r.Get("/api/records", api.handleRecords)
		r.Get("/api/records/export", api.handleExport)
	})
	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid login payload", domain.ErrValidation))
		return
	}
	token, err := a.auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleUpload accepts a multipart document, extracts its text and turns
// it into a quiz. mode=extract parses pre-authored blocks, mode=generate
// runs the generator chain, and the default auto mode parses first and
// generates when nothing was found.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: invalid multipart form", domain.ErrValidation))
		return
	}
	f, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, fmt.Errorf("%w: document file is required", domain.ErrValidation))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		writeError(w, fmt.Errorf("read upload: %w", err))
		return
	}

	text, err := extract.Text(header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}

	mode := r.FormValue("mode")
	if mode == "" {
		mode = "auto"
	}
	count := 5
	if raw := r.FormValue("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count < 1 {
			writeError(w, fmt.Errorf("%w: count must be a positive number", domain.ErrValidation))
			return
		}
	}

	var (
		questions     []domain.Question
		autoGenerated bool
	)
	switch mode {
	case "extract":
		questions = mcq.Parse(text)
	case "generate":
		questions, err = a.generator.Generate(r.Context(), text, count)
		autoGenerated = true
	case "auto":
		questions = mcq.Parse(text)
		if len(questions) == 0 {
			questions, err = a.generator.Generate(r.Context(), text, count)
			autoGenerated = true
		}
	default:
		writeError(w, fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, mode))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if len(questions) == 0 {
		writeError(w, fmt.Errorf("%w: no questions found in document", domain.ErrNoContent))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	quiz, err := a.quizzes.Create(r.Context(), title, header.Filename, questions, autoGenerated)
	if errors.Is(err, domain.ErrPersistFailed) {
		log.Printf("persist uploaded quiz %d: %v", quiz.ID, err)
		writeJSON(w, http.StatusCreated, persistWarningView(quiz, err))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, teacherQuizView(quiz))
}

func (a *API) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.quizzes.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]quizView, 0, len(quizzes))
	for _, quiz := range quizzes {
		views = append(views, teacherQuizView(quiz))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := quizID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	quiz, err := a.quizzes.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teacherQuizView(quiz))
}

type setAnswersRequest struct {
	Answers []int `json:"answers"`
}

func (a *API) handleSetAnswers(w http.ResponseWriter, r *http.Request) {
	id, err := quizID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid answers payload", domain.ErrValidation))
		return
	}
	quiz, err := a.quizzes.SetAnswers(r.Context(), id, req.Answers)
	if errors.Is(err, domain.ErrPersistFailed) {
		log.Printf("set answers for quiz %d: %v", id, err)
		writeJSON(w, http.StatusOK, persistWarningView(quiz, err))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teacherQuizView(quiz))
}

func (a *API) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := quizID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	quiz, err := a.quizzes.ToggleEnabled(r.Context(), id)
	if errors.Is(err, domain.ErrPersistFailed) {
		log.Printf("toggle quiz %d: %v", id, err)
		writeJSON(w, http.StatusOK, persistWarningView(quiz, err))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teacherQuizView(quiz))
}

func (a *API) handleOpenQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.quizzes.OpenQuizzes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]studentQuizView, 0, len(quizzes))
	for _, quiz := range quizzes {
		views = append(views, newStudentQuizView(quiz))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := a.attempts.Records(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.StudentRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := a.attempts.Records(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="student_records.xlsx"`)
	if err := report.WriteXLSX(records, w); err != nil {
		log.Printf("export records: %v", err)
	}
}

// quizView is the teacher-panel representation, answer key included.
type quizView struct {
	ID              int               `json:"id"`
	Title           string            `json:"title"`
	Questions       []domain.Question `json:"questions"`
	Filename        string            `json:"filename"`
	Enabled         bool              `json:"enabled"`
	AutoGenerated   bool              `json:"auto_generated"`
	DurationMinutes int               `json:"duration_minutes"`
	Open            bool              `json:"open"`
	Warning         string            `json:"warning,omitempty"`
}

func teacherQuizView(quiz domain.Quiz) quizView {
	return quizView{
		ID:              quiz.ID,
		Title:           quiz.Title,
		Questions:       quiz.Questions,
		Filename:        quiz.Filename,
		Enabled:         quiz.Enabled,
		AutoGenerated:   quiz.AutoGenerated,
		DurationMinutes: quiz.DurationMinutes,
		Open:            quiz.OpenToStudents(),
	}
}

func persistWarningView(quiz domain.Quiz, err error) quizView {
	view := teacherQuizView(quiz)
	view.Warning = err.Error()
	return view
}

// studentQuizView strips the answer key before quizzes reach students.
type studentQuizView struct {
	ID              int                   `json:"id"`
	Title           string                `json:"title"`
	DurationMinutes int                   `json:"duration_minutes"`
	Questions       []studentQuestionView `json:"questions"`
}

type studentQuestionView struct {
	Text    string   `json:"question_text"`
	Options []string `json:"options"`
}

func newStudentQuizView(quiz domain.Quiz) studentQuizView {
	questions := make([]studentQuestionView, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		questions = append(questions, studentQuestionView{Text: q.Text, Options: q.Options})
	}
	return studentQuizView{
		ID:              quiz.ID,
		Title:           quiz.Title,
		DurationMinutes: quiz.DurationMinutes,
		Questions:       questions,
	}
}

func quizID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, fmt.Errorf("%w: quiz id must be numeric", domain.ErrValidation)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.Is(err, auth.ErrBadCredentials):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrQuizNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrQuizClosed):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrEmptyDocument), errors.Is(err, domain.ErrNoContent):
		status, message = http.StatusUnprocessableEntity, err.Error()
	default:
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"message": message})
}
