package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raaihank/confidenceboost/internal/history"
	"github.com/raaihank/confidenceboost/internal/rewrite"
	"github.com/raaihank/confidenceboost/internal/rewriter"
	"github.com/raaihank/confidenceboost/internal/usage"
	"github.com/raaihank/confidenceboost/internal/websocket"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

type rewriteRequest struct {
	Text    string `json:"text"`
	Context string `json:"context"`
}

type usageStatus struct {
	Used       int    `json:"used"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	RetryAfter string `json:"retry_after,omitempty"`
}

type rewriteResponse struct {
	*rewriter.Response
	Usage *usageStatus `json:"usage,omitempty"`
}

// historyReader is implemented by stores that can list past rewrites
type historyReader interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
	GetStats(ctx context.Context) (*history.Stats, error)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":             "confidenceboost",
		"version":          s.version,
		"mode":             s.config.Rewrite.Mode,
		"strategy":         s.rewriter.Name(),
		"contexts":         []string{string(rewrite.ContextDating), string(rewrite.ContextProfessional)},
		"max_input_length": s.maxInputLength(),
		"daily_limit":      s.dailyLimit(),
		"history_enabled":  s.recorder != nil,
	})
}

// handleRewrite validates the message, charges the quota and rewrites it
func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var req rewriteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// No default context: guessing one would apply the wrong finisher
	ctx, err := rewrite.ParseContext(req.Context)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Please enter some text to rewrite!")
		return
	}
	inputLength := utf8.RuneCountInString(strings.TrimSpace(req.Text))
	if inputLength > s.maxInputLength() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("text exceeds %d characters", s.maxInputLength()))
		return
	}

	decision, err := s.limiter.Allow(r.Context(), websocket.ClientIP(r))
	if err != nil {
		log.Warn("Usage update failed, allowing request", zap.Error(err))
		decision = usage.Decision{Allowed: true, Limit: -1, Remaining: -1}
	}
	if !decision.Allowed {
		s.rejectForQuota(w, r, decision)
		return
	}

	resp, err := s.rewriter.Rewrite(r.Context(), rewrite.Request{Text: req.Text, Context: ctx})
	if err != nil {
		var cfgErr *rewrite.ConfigurationError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error("Rewrite failed", zap.Error(err), zap.String("context", string(ctx)))
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	log.LogRewrite(string(ctx), resp.Strategy, inputLength, resp.Changed, resp.FallbackUsed, resp.Text)
	s.track(resp)

	outputLength := utf8.RuneCountInString(resp.Text)
	s.wsHub.BroadcastRewrite(websocket.RewriteEvent{
		RequestID:    requestID,
		Context:      string(ctx),
		Strategy:     resp.Strategy,
		Changed:      resp.Changed,
		FallbackUsed: resp.FallbackUsed,
		Cached:       resp.Cached,
		Rules:        resp.Rules,
		InputLength:  inputLength,
		OutputLength: outputLength,
		ProcessingMS: float64(time.Since(start).Microseconds()) / 1000,
	})

	if s.recorder != nil {
		record := &history.Record{
			RequestID:    requestID,
			Context:      string(ctx),
			Strategy:     resp.Strategy,
			InputLength:  inputLength,
			OutputLength: outputLength,
			Changed:      resp.Changed,
			FallbackUsed: resp.FallbackUsed,
			Cached:       resp.Cached,
			Rules:        resp.Rules,
		}
		if err := s.recorder.Insert(r.Context(), record); err != nil {
			log.Warn("Failed to record rewrite history", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, rewriteResponse{Response: resp, Usage: toUsageStatus(decision)})
}

// handleUsage reports the caller's remaining quota
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	decision, err := s.limiter.Peek(r.Context(), websocket.ClientIP(r))
	if err != nil {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Usage lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "usage unavailable")
		return
	}
	if status := toUsageStatus(decision); status != nil {
		writeJSON(w, http.StatusOK, status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"unlimited": true})
}

// handleHistory lists recent rewrites
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.recorder.(historyReader)
	if !ok {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := reader.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("History query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// handleHistoryStats reports aggregate history counts
func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.recorder.(historyReader)
	if !ok {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	stats, err := reader.GetStats(r.Context())
	if err != nil {
		s.logger.Error("History stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) track(resp *rewriter.Response) {
	s.totalRewrites.Add(1)
	if resp.Changed {
		s.changedRewrites.Add(1)
	}
	if resp.FallbackUsed {
		s.fallbackRewrites.Add(1)
	}
}

func (s *Server) maxInputLength() int {
	if s.config.Rewrite.MaxInputLength > 0 {
		return s.config.Rewrite.MaxInputLength
	}
	return rewrite.MaxInputLength
}

func (s *Server) dailyLimit() int {
	if !s.config.Usage.Enabled {
		return -1
	}
	return s.config.Usage.DailyLimit
}

func toUsageStatus(d usage.Decision) *usageStatus {
	if d.Limit < 0 {
		return nil
	}
	status := &usageStatus{Used: d.Used, Limit: d.Limit, Remaining: d.Remaining}
	if d.RetryAfter > 0 {
		status.RetryAfter = d.RetryAfter.Round(time.Second).String()
	}
	return status
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
