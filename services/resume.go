package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/interviewcoach/backend/metrics"
	"github.com/krshsl/interviewcoach/backend/models"
)

const (
	maxResumeBytes     = 1 << 20
	maxModelResumeSize = 15000 // characters sent to the model
	resumeTargetWords  = 400
)

// skillAliases maps a canonical skill to the spellings recognised in a resume.
// Aliases match whole words only. Bare "go" is left out because it is ordinary English.
var skillAliases = map[string][]string{
	"go":                 {"golang", "go developer", "go programming", "go services"},
	"python":             {"python"},
	"java":               {"java"},
	"javascript":         {"javascript", "js", "node.js"},
	"typescript":         {"typescript"},
	"sql":                {"sql", "postgres", "postgresql", "mysql"},
	"docker":             {"docker", "container", "containers", "containerized"},
	"kubernetes":         {"kubernetes", "k8s"},
	"aws":                {"aws", "amazon web services"},
	"gcp":                {"gcp", "google cloud"},
	"react":              {"react", "react.js"},
	"git":                {"git"},
	"linux":              {"linux"},
	"rest":               {"rest api", "rest apis", "restful"},
	"grpc":               {"grpc"},
	"ci/cd":              {"ci/cd", "continuous integration", "github actions", "jenkins"},
	"testing":            {"unit test", "unit tests", "testing", "tdd"},
	"machine learning":   {"machine learning", "ml"},
	"data analysis":      {"data analysis", "analytics", "pandas"},
	"communication":      {"communication", "presented", "stakeholder", "stakeholders"},
	"leadership":         {"led", "leadership", "mentored", "managed a team"},
	"agile":              {"agile", "scrum", "kanban"},
	"system design":      {"system design", "architecture", "distributed systems"},
	"product management": {"roadmap", "product strategy", "product management"},
}

// skillPatterns holds one whole-word matcher per skill
var skillPatterns = compileSkillPatterns(skillAliases)

func compileSkillPatterns(aliases map[string][]string) map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(aliases))
	for skill, spellings := range aliases {
		quoted := make([]string, len(spellings))
		for i, spelling := range spellings {
			quoted[i] = regexp.QuoteMeta(spelling)
		}
		patterns[skill] = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return patterns
}

// roleRequirements lists the skills expected for common target roles
var roleRequirements = map[string][]string{
	"backend engineer":    {"go", "sql", "docker", "rest", "testing", "git", "system design"},
	"frontend engineer":   {"javascript", "typescript", "react", "testing", "git"},
	"fullstack engineer":  {"javascript", "typescript", "react", "sql", "rest", "git", "testing"},
	"devops engineer":     {"docker", "kubernetes", "linux", "ci/cd", "aws", "git"},
	"data scientist":      {"python", "sql", "machine learning", "data analysis", "communication"},
	"engineering manager": {"leadership", "communication", "agile", "system design"},
	"product manager":     {"product management", "communication", "agile", "data analysis"},
}

var defaultRequirements = []string{"communication", "git", "testing"}

var resumeSections = map[string][]string{
	"experience": {"experience", "employment", "work history"},
	"education":  {"education", "degree", "university"},
	"skills":     {"skills", "technologies", "tech stack"},
}

// ResumeAnalyzer scores resumes against a target role
type ResumeAnalyzer struct {
	model   *GuardedModel
	metrics *metrics.Metrics
}

func NewResumeAnalyzer(model *GuardedModel, m *metrics.Metrics) *ResumeAnalyzer {
	return &ResumeAnalyzer{model: model, metrics: m}
}

// Analyze fills a ResumeAnalysis for content. The model only contributes the summary.
func (a *ResumeAnalyzer) Analyze(ctx context.Context, fileName, targetRole, content string) *models.ResumeAnalysis {
	content = strings.ToValidUTF8(content, "�")
	lower := " " + strings.ToLower(strings.Join(strings.Fields(content), " ")) + " "
	words := len(strings.Fields(content))

	skills := detectSkills(lower)
	required := requirementsFor(targetRole)
	have := make(map[string]bool, len(skills))
	for _, s := range skills {
		have[s] = true
	}
	var missing []string
	for _, s := range required {
		if !have[s] {
			missing = append(missing, s)
		}
	}

	var sections []string
	for _, name := range []string{"experience", "education", "skills"} {
		for _, marker := range resumeSections[name] {
			if strings.Contains(lower, marker) {
				sections = append(sections, name)
				break
			}
		}
	}

	coverage := float64(len(required)-len(missing)) / float64(len(required))
	score := 50*coverage + 30*float64(len(sections))/3 + 20*math.Min(float64(words)/resumeTargetWords, 1)

	analysis := &models.ResumeAnalysis{
		FileName:      fileName,
		TargetRole:    targetRole,
		Content:       content,
		Score:         round2(score),
		WordCount:     words,
		Skills:        models.NewStringList(skills),
		MissingSkills: models.NewStringList(missing),
		Sections:      models.NewStringList(sections),
		Suggestions:   models.NewStringList(resumeSuggestions(missing, sections, words)),
	}
	analysis.Summary = fmt.Sprintf("Found %d recognised skills and %d of 3 standard sections. Coverage for %s: %.0f%%.",
		len(skills), len(sections), roleLabel(targetRole), coverage*100)

	if summary, err := a.summarizeWithModel(ctx, targetRole, content); err == nil {
		analysis.Summary = summary
	}

	a.metrics.Resume()
	return analysis
}

func detectSkills(lower string) []string {
	var skills []string
	for skill, pattern := range skillPatterns {
		if pattern.MatchString(lower) {
			skills = append(skills, skill)
		}
	}
	sort.Strings(skills)
	return skills
}

func requirementsFor(targetRole string) []string {
	role := strings.ToLower(strings.TrimSpace(targetRole))
	if req, ok := roleRequirements[role]; ok {
		return req
	}
	if role == "" {
		return defaultRequirements
	}
	names := make([]string, 0, len(roleRequirements))
	for name := range roleRequirements {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.Contains(role, name) || strings.Contains(name, role) {
			return roleRequirements[name]
		}
	}
	return defaultRequirements
}

func roleLabel(targetRole string) string {
	if strings.TrimSpace(targetRole) == "" {
		return "a general role"
	}
	return targetRole
}

func resumeSuggestions(missing, sections []string, words int) []string {
	var out []string
	present := make(map[string]bool, len(sections))
	for _, s := range sections {
		present[s] = true
	}
	for _, name := range []string{"experience", "education", "skills"} {
		if !present[name] {
			out = append(out, fmt.Sprintf("Add a clearly titled %s section.", name))
		}
	}
	if len(missing) > 0 {
		out = append(out, "Highlight experience with: "+strings.Join(missing, ", ")+".")
	}
	if words < resumeTargetWords/2 {
		out = append(out, "Expand the resume with measurable results for each role.")
	}
	if words > resumeTargetWords*3 {
		out = append(out, "Shorten the resume, focus on the most relevant two pages.")
	}
	return out
}

func (a *ResumeAnalyzer) summarizeWithModel(ctx context.Context, targetRole, content string) (string, error) {
	if len(content) > maxModelResumeSize {
		content = content[:maxModelResumeSize] + "\n...[resume truncated for length]"
		content = strings.ToValidUTF8(content, "")
	}
	system := "You are an expert career coach reviewing a resume. Reply with three sentences of plain text: overall impression, biggest strength, most important improvement."
	prompt := fmt.Sprintf("Target role: %s\n\nResume:\n%s", roleLabel(targetRole), content)
	return a.model.Generate(ctx, "resume", system, []Turn{{Role: models.RoleUser, Content: prompt}})
}

type ResumeEndpoints struct {
	repo     WorkspaceStore
	analyzer *ResumeAnalyzer
}

type ResumeRequest struct {
	FileName   string `json:"file_name"`
	TargetRole string `json:"target_role"`
	Content    string `json:"content"`
}

func NewResumeEndpoints(repo WorkspaceStore, analyzer *ResumeAnalyzer) *ResumeEndpoints {
	return &ResumeEndpoints{repo: repo, analyzer: analyzer}
}

func (e *ResumeEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/resumes", func(r chi.Router) {
		r.Post("/analyze", e.AnalyzeHandler)
		r.Get("/", e.ListHandler)
		r.Get("/{id}", e.GetHandler)
		r.Delete("/{id}", e.DeleteHandler)
	})
}

// readResume accepts either a JSON body or a multipart upload with a text file
func readResume(w http.ResponseWriter, r *http.Request) (*ResumeRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req ResumeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxResumeBytes+64<<10)
	if err := r.ParseMultipartForm(maxResumeBytes); err != nil {
		return nil, validationError("invalid upload")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, validationError("file is required")
	}
	defer file.Close()

	if header.Size > maxResumeBytes {
		return nil, validationError("file must be at most 1 MiB")
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if ext != ".txt" && ext != ".md" && contentType != "text/plain" && contentType != "text/markdown" {
		return nil, validationError("only plain text or markdown resumes are supported")
	}

	data, err := io.ReadAll(io.LimitReader(file, maxResumeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > maxResumeBytes {
		return nil, validationError("file must be at most 1 MiB")
	}
	if !utf8.Valid(data) {
		return nil, validationError("file must be UTF-8 text")
	}

	return &ResumeRequest{
		FileName:   filepath.Base(header.Filename),
		TargetRole: r.FormValue("target_role"),
		Content:    string(data),
	}, nil
}

func (e *ResumeEndpoints) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	req, err := readResume(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = validationError("file must be at most 1 MiB")
		}
		writeError(w, r, err)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeError(w, r, validationError("resume content is required"))
		return
	}
	if len(req.Content) > maxResumeBytes {
		writeError(w, r, validationError("resume must be at most 1 MiB"))
		return
	}
	req.TargetRole = strings.TrimSpace(req.TargetRole)
	if len(req.TargetRole) > maxNameLength {
		writeError(w, r, validationError("target_role must be at most %d characters", maxNameLength))
		return
	}

	analysis := e.analyzer.Analyze(r.Context(), strings.TrimSpace(req.FileName), req.TargetRole, req.Content)
	analysis.UserID = user.ID
	if err := e.repo.CreateResumeAnalysis(r.Context(), analysis); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"analysis": analysis,
		"message":  "Resume analyzed successfully",
	})

	slog.Info("Resume analyzed", "analysis_id", analysis.ID, "user_id", user.ID, "score", analysis.Score)
}

func (e *ResumeEndpoints) ownAnalysis(ctx context.Context, user *models.User, id string) (*models.ResumeAnalysis, error) {
	analysis, err := e.repo.GetResumeAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	if analysis == nil || analysis.UserID != user.ID {
		return nil, notFoundError("resume analysis")
	}
	return analysis, nil
}

func (e *ResumeEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	analyses, err := e.repo.ListResumeAnalyses(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": analyses,
		"count":    len(analyses),
	})
}

func (e *ResumeEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	analysis, err := e.ownAnalysis(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analysis": analysis,
	})
}

func (e *ResumeEndpoints) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	analysis, err := e.ownAnalysis(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := e.repo.DeleteResumeAnalysis(r.Context(), analysis.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Resume analysis deleted successfully",
	})

	slog.Info("Resume analysis deleted", "analysis_id", analysis.ID, "user_id", user.ID)
}
