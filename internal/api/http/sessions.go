package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-prep/internal/assessment"
	"github.com/mind-engage/mindengage-prep/internal/rbac"
)

// MountSessions registers the session routes on r. r must already carry
// JWT auth so that subject and role are in the request context.
func MountSessions(r chi.Router, eng *assessment.Engine) {
	play := rbac.Require(rbac.PermSessionPlay)
	view := rbac.RequireAny(rbac.PermSessionViewOwn, rbac.PermSessionViewAll)

	r.With(rbac.Require(rbac.PermSessionCreate)).Post("/sessions", CreateSessionHandler(eng))
	r.With(view).Get("/sessions", ListSessionsHandler(eng))
	r.Route("/sessions/{id}", func(sr chi.Router) {
		sr.With(view).Get("/", GetSessionHandler(eng))
		sr.With(view).Get("/summary", SummaryHandler(eng))
		sr.With(view).Get("/review", ReviewHandler(eng))

		sr.With(play).Post("/start", SessionActionHandler(eng, Start))
		sr.With(play).Post("/pause", SessionActionHandler(eng, Pause))
		sr.With(play).Post("/resume", SessionActionHandler(eng, Resume))
		sr.With(play).Post("/advance", SessionActionHandler(eng, Advance))
		sr.With(play).Post("/finish", SessionActionHandler(eng, Finish))
		sr.With(play).Post("/heartbeat", SessionActionHandler(eng, Heartbeat))
		sr.With(play).Put("/answers/{questionID}", SubmitAnswerHandler(eng))
		sr.With(rbac.Require(rbac.PermSessionCreate)).Post("/retake", RetakeHandler(eng))

		sr.With(rbac.Require(rbac.PermSessionAbandon)).Post("/abandon", SessionActionHandler(eng, Abandon))
	})
}

type createSessionReq struct {
	LearnerID      string                `json:"learner_id"` // admin only
	Mode           assessment.Mode       `json:"mode"`
	TopicIDs       []string              `json:"topic_ids"`
	Levels         []string              `json:"levels"`
	Counts         assessment.TypeCounts `json:"counts"`
	Seed           int64                 `json:"seed"`
	AllowShortfall bool                  `json:"allow_shortfall"`
	TimeLimitSec   *int                  `json:"time_limit_sec"`
}

func CreateSessionHandler(eng *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		learner := rbac.PrincipalFrom(r.Context()).Subject
		if req.LearnerID != "" && req.LearnerID != learner {
			if !rbac.Can(r.Context(), rbac.PermSessionViewAll) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			learner = req.LearnerID
		}
		c := assessment.Criteria{
			TopicIDs:       req.TopicIDs,
			Levels:         req.Levels,
			Counts:         req.Counts,
			Seed:           req.Seed,
			AllowShortfall: req.AllowShortfall,
		}
		s, err := eng.CreateSession(r.Context(), learner, c, req.Mode, req.TimeLimitSec)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.Redacted())
	}
}

func ListSessionsHandler(eng *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := assessment.ListOpts{
			LearnerID: rbac.PrincipalFrom(r.Context()).Subject,
			LineageID: q.Get("lineage_id"),
			Status:    assessment.Status(q.Get("status")),
			Limit:     parseIntDefault(q.Get("limit"), 50),
			Offset:    parseIntDefault(q.Get("offset"), 0),
		}
		if rbac.Can(r.Context(), rbac.PermSessionViewAll) {
			opts.LearnerID = q.Get("learner_id")
		}
		list, err := eng.ListSessions(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		out := make([]assessment.Session, len(list))
		for i, s := range list {
			out[i] = s.Redacted()
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out, "limit": opts.Limit, "offset": opts.Offset})
	}
}

func GetSessionHandler(eng *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSession(w, r, eng)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.Redacted())
	}
}

type sessionOp func(eng *assessment.Engine, r *http.Request, id string) (*assessment.Session, error)

// SessionActionHandler runs a lifecycle operation on a session the caller
// owns and returns the updated session.
func SessionActionHandler(eng *assessment.Engine, op sessionOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cur, ok := ownedSession(w, r, eng)
		if !ok {
			return
		}
		s, err := op(eng, r, cur.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView(s))
	}
}

func Start(eng *assessment.Engine, r *http.Request, id string) (*assessment.Session, error) {
	return eng.StartSession(r.Context(), id)
}

func Pause(eng *assessment.Engine, r *http.Request, id string) (*assessment.Session, error) {
	return eng.PauseSession(r.Context(), id)
}

func Resume(eng *assessment.Engine, r *http.Request, id string) (*assessment.Session, error) {
	return eng.ResumeSession(r.Context(), id)
}

func Advance(eng *assessment.Engine, r *http.Request, id string) (*assessment.Session, error) {
	return eng.Advance(r.Context(), id)
}

func Finish(eng *assessment.Engine, r *http.Request, id string) (*assessment.Session, error) {
	return eng.FinishSession(r.Context(), id, time.Time{})
}

// Heartbeat lets a client poll the deadline; an overdue interview expires.
func Heartbeat(eng *assessment.Engine, r *http.Request, id string) (*assessment.Session, error) {
	return eng.CheckExpiry(r.Context(), id)
}

func Abandon(eng *assessment.Engine, r *http.Request, id string) (*assessment.Session, error) {
	return eng.Abandon(r.Context(), id)
}

type submitAnswerReq struct {
	Kind      assessment.SubmissionKind `json:"kind"`
	OptionIDs []string                  `json:"option_ids"`
	Text      string                    `json:"text"`
	ElapsedMs int64                     `json:"elapsed_ms"`
}

func SubmitAnswerHandler(eng *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSession(w, r, eng)
		if !ok {
			return
		}
		var req submitAnswerReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.ElapsedMs < 0 {
			http.Error(w, "elapsed_ms must not be negative", http.StatusBadRequest)
			return
		}
		sub := assessment.Submission{Kind: req.Kind, OptionIDs: req.OptionIDs, Text: req.Text}
		a, err := eng.SubmitAnswer(r.Context(), s.ID, chi.URLParam(r, "questionID"), sub,
			time.Duration(req.ElapsedMs)*time.Millisecond)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, answerView(s.Mode, a))
	}
}

func SummaryHandler(eng *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSession(w, r, eng)
		if !ok {
			return
		}
		sum, err := eng.GetSummary(r.Context(), s.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func ReviewHandler(eng *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSession(w, r, eng)
		if !ok {
			return
		}
		items, err := eng.Review(r.Context(), s.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": s.ID, "items": items})
	}
}

func RetakeHandler(eng *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSession(w, r, eng)
		if !ok {
			return
		}
		var opts assessment.RetakeOptions
		// body is optional
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		res, err := eng.Retake(r.Context(), s.ID, opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		red := res.Session.Redacted()
		res.Session = &red
		writeJSON(w, http.StatusCreated, res)
	}
}

// ownedSession loads {id} and checks that the caller owns it or may view
// every session.
func ownedSession(w http.ResponseWriter, r *http.Request, eng *assessment.Engine) (*assessment.Session, bool) {
	s, err := eng.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	if s.LearnerID != rbac.PrincipalFrom(r.Context()).Subject && !rbac.Can(r.Context(), rbac.PermSessionViewAll) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return s, true
}

func sessionView(s *assessment.Session) any {
	v := s.Redacted()
	if d, ok := s.Deadline(); ok && !s.Status.Terminal() {
		return struct {
			assessment.Session
			Deadline time.Time `json:"deadline"`
		}{v, d}
	}
	return v
}

// answerView hides the verdict of interview answers until the summary.
func answerView(mode assessment.Mode, a assessment.Answer) any {
	if mode == assessment.ModePractice {
		return a
	}
	return map[string]any{
		"session_id":  a.SessionID,
		"question_id": a.QuestionID,
		"index":       a.Index,
		"time_ms":     a.TimeMs,
		"saved_at":    a.SavedAt,
	}
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, assessment.ErrInvalidSelection), errors.Is(err, assessment.ErrInvalidSubmission):
		return http.StatusBadRequest
	case errors.Is(err, assessment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assessment.ErrIllegalTransition), errors.Is(err, assessment.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, assessment.ErrSessionExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	body := map[string]any{"error": err.Error()}
	var se *assessment.SelectionError
	if errors.As(err, &se) && len(se.Shortfall) > 0 {
		body["shortfall"] = se.Shortfall
	}
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		body["error"] = "internal error"
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
