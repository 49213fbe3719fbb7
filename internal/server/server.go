// Package server exposes the merged speaking dataset over a small read-only
// HTTP API.
package server

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jkdev/speaking/internal/talks"
)

// Server serves the canonical dataset. The file is read per request; the
// dataset is small and rewritten atomically, so every response sees either
// the previous or the new merge output, never a partial file.
type Server struct {
	log      *slog.Logger
	app      *fiber.App
	dataPath string
	now      func() time.Time
}

// NewServer builds the API server around the dataset at dataPath.
func NewServer(log *slog.Logger, dataPath string) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log:      log,
		dataPath: dataPath,
		now:      time.Now,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/speaking", s.handleSpeaking)
	app.Get("/api/speaking/next", s.handleNext)
	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving on addr.
func (s *Server) Listen(addr string) error {
	s.log.Info("serving speaking API", "addr", addr, "data", s.dataPath)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// speakingResponse is the list payload: the filtered page plus the total size
// of the dataset before filtering.
type speakingResponse struct {
	Talks []talks.Talk `json:"talks"`
	Count int          `json:"count"`
	Total int          `json:"total"`
}

func (s *Server) handleSpeaking(c *fiber.Ctx) error {
	doc, err := talks.LoadDocument(s.dataPath)
	if err != nil {
		s.log.Error("load dataset", "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "speaking data not available")
	}

	status := c.Query("status")
	filtered := doc.Talks
	switch status {
	case "":
	case talks.StatusUpcoming:
		filtered = filterTalks(doc.Talks, hasUpcomingEvent)
	case talks.StatusPast:
		filtered = filterTalks(doc.Talks, allEventsPast)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "status must be upcoming or past")
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		if limit < len(filtered) {
			filtered = filtered[:limit]
		}
	}

	return c.JSON(speakingResponse{
		Talks: filtered,
		Count: len(filtered),
		Total: len(doc.Talks),
	})
}

// nextResponse carries the next scheduled engagement, or null when none is
// scheduled.
type nextResponse struct {
	Next *talks.Upcoming `json:"next"`
}

func (s *Server) handleNext(c *fiber.Ctx) error {
	doc, err := talks.LoadDocument(s.dataPath)
	if err != nil {
		s.log.Error("load dataset", "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "speaking data not available")
	}

	next := talks.FindNextUpcomingTalk(doc.Talks, s.now())
	return c.JSON(nextResponse{Next: next})
}

func filterTalks(ts []talks.Talk, keep func(talks.Talk) bool) []talks.Talk {
	out := []talks.Talk{}
	for _, t := range ts {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// hasUpcomingEvent: a talk is upcoming if any of its events is.
func hasUpcomingEvent(t talks.Talk) bool {
	for _, ev := range t.Events {
		if ev.Status == talks.StatusUpcoming {
			return true
		}
	}
	return false
}

// allEventsPast: a talk is past only when every event is behind us.
func allEventsPast(t talks.Talk) bool {
	if len(t.Events) == 0 {
		return false
	}
	for _, ev := range t.Events {
		if ev.Status != talks.StatusPast {
			return false
		}
	}
	return true
}
