package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/passage"
)

const sourceText = "text"

// healthHandler reports liveness and, when history is wired, that the
// result store answers queries.
func (s *Server) healthHandler(c *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.history != nil {
		count, err := s.history.CountResults(c.Request.Context())
		if err != nil {
			s.logger.Error("health check failed", "error", err, "request_id", requestID(c.Request.Context()))
			body["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["results"] = count
	}
	c.JSON(http.StatusOK, body)
}

type passageResponse struct {
	Name   string `json:"name,omitempty"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// passageHandler serves a normalized passage. source=text normalizes the
// caller's own text, which lets browser hosts check it before starting.
func (s *Server) passageHandler(c *gin.Context) {
	source := c.DefaultQuery("source", passage.SourceSample)
	name := c.Query("name")
	p, status, err := s.resolvePassage(source, name, c.Query("text"))
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, passageResponse{Name: name, Text: p.String(), Length: p.Len()})
}

func (s *Server) resolvePassage(source, name, text string) (passage.Passage, int, error) {
	switch source {
	case "", passage.SourceSample:
		return passage.Sample(), http.StatusOK, nil
	case passage.SourceLibrary:
		if s.library == nil {
			return passage.Passage{}, http.StatusNotFound, errors.New("no passage library configured")
		}
		p, err := s.library.Get(name)
		if err != nil {
			return passage.Passage{}, http.StatusNotFound, err
		}
		return p, http.StatusOK, nil
	case sourceText:
		p, err := passage.FromString(text)
		if err != nil {
			return passage.Passage{}, http.StatusUnprocessableEntity, err
		}
		return p, http.StatusOK, nil
	default:
		return passage.Passage{}, http.StatusBadRequest, errors.New("unknown passage source")
	}
}

func (s *Server) leaderboardHandler(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	top, err := s.board.Top(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("failed to load leaderboard", "error", err, "request_id", requestID(c.Request.Context()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": nonNil(top)})
}

func (s *Server) resultsHandler(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	last, ok := queryInt(c, "last")
	if !ok {
		return
	}
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is not available"})
		return
	}
	results, err := s.history.ListResults(c.Request.Context(), model.ResultFilter{Name: name, Last: last})
	if err != nil {
		s.logger.Error("failed to list results", "error", err, "request_id", requestID(c.Request.Context()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list results"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": nonNil(results)})
}

type resultRequest struct {
	Name            string     `json:"name" binding:"required"`
	WPM             int        `json:"wpm" binding:"gte=0"`
	Accuracy        int        `json:"accuracy" binding:"gte=0,lte=100"`
	Errors          int        `json:"errors" binding:"gte=0"`
	DurationSec     int        `json:"durationSec" binding:"gt=0"`
	CorrectChars    int        `json:"correctChars" binding:"gte=0"`
	TotalKeystrokes int        `json:"totalKeystrokes" binding:"gte=0"`
	PassageLength   int        `json:"passageLength" binding:"gte=0"`
	Reason          string     `json:"reason" binding:"omitempty,oneof=completed timeout"`
	StartedAt       *time.Time `json:"startedAt"`
}

func (r resultRequest) toResult(now time.Time) model.Result {
	out := model.Result{
		Name:            strings.TrimSpace(r.Name),
		WPM:             r.WPM,
		Accuracy:        r.Accuracy,
		Errors:          r.Errors,
		DurationSec:     r.DurationSec,
		CorrectChars:    r.CorrectChars,
		TotalKeystrokes: r.TotalKeystrokes,
		PassageLength:   r.PassageLength,
		Reason:          r.Reason,
		CreatedAt:       now,
	}
	if r.StartedAt != nil {
		out.StartedAt = *r.StartedAt
	}
	return out
}

// submitResultHandler accepts a result computed by a browser host.
func (s *Server) submitResultHandler(c *gin.Context) {
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	result := req.toResult(time.Now())
	if err := s.board.Submit(c.Request.Context(), result); err != nil {
		s.logger.Error("failed to submit result", "error", err, "name", result.Name, "request_id", requestID(c.Request.Context()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save result"})
		return
	}
	c.JSON(http.StatusCreated, result)
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a non-negative integer"})
		return 0, false
	}
	return n, true
}

func nonNil(results []model.Result) []model.Result {
	if results == nil {
		return []model.Result{}
	}
	return results
}
