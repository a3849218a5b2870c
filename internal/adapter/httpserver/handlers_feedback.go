package httpserver

import (
	"net/http"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

type feedbackRequest struct {
	InterviewID string                  `json:"interviewId" validate:"required,max=100"`
	FeedbackID  string                  `json:"feedbackId" validate:"omitempty,max=100"`
	Transcript  []domain.TranscriptTurn `json:"transcript" validate:"omitempty,max=500,dive"`
}

// RequestFeedbackHandler queues feedback generation for the caller and returns 202.
func (s *Server) RequestFeedbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		u, _ := currentUser(r)
		job, err := s.Feedback.Request(r.Context(), u, usecase.FeedbackRequest{
			InterviewID: req.InterviewID,
			FeedbackID:  req.FeedbackID,
			Transcript:  req.Transcript,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID, "status": string(job.Status)})
	}
}

// FeedbackJobHandler polls a job. It honours If-None-Match.
func (s *Server) FeedbackJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		u, _ := currentUser(r)
		status, res, etag, err := s.Feedback.FetchJob(r.Context(), u, id, r.Header.Get("If-None-Match"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("ETag", etag)
		if status == http.StatusNotModified {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, res)
	}
}

// MyFeedbackHandler returns the caller's feedback for an interview.
func (s *Server) MyFeedbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		u, _ := currentUser(r)
		f, err := s.Feedback.Get(r.Context(), id, u.ID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, feedbackView{Feedback: f, ScoreLabel: usecase.ScoreLabel(f.TotalScore)})
	}
}

type feedbackView struct {
	domain.Feedback
	ScoreLabel string `json:"scoreLabel"`
}
