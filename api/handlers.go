package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the JSON error body for all API failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is one persisted conversation turn.
type MessageResponse struct {
	ID           int64     `json:"id"`
	Author       string    `json:"author"`
	Content      string    `json:"content"`
	ReflectionID *int64    `json:"reflection_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReflectionResponse is one reflection with its tags, newest first in the
// chain listing.
type ReflectionResponse struct {
	ID        int64     `json:"id"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Summary   string    `json:"summary"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TagResponse is one tag from the shared vocabulary.
type TagResponse struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListMessages returns a conversation's full message ledger, oldest
// first.
func (s *Server) handleListMessages(c *fiber.Ctx) error {
	conversationID, err := conversationParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid conversation id"})
	}

	messages, err := s.store.MessagesAfter(c.Context(), conversationID, 0)
	if err != nil {
		s.logger.Error("message listing failed", "conversation_id", conversationID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list messages"})
	}

	out := make([]MessageResponse, len(messages))
	for i, m := range messages {
		out[i] = MessageResponse{
			ID:           m.ID,
			Author:       string(m.Author),
			Content:      m.Content,
			ReflectionID: m.ReflectionID,
			CreatedAt:    m.CreatedAt,
		}
	}

	return c.JSON(fiber.Map{
		"conversation_id": conversationID,
		"count":           len(out),
		"messages":        out,
	})
}

// handleListReflections returns a conversation's reflection chain, newest
// first, each with its tag labels.
func (s *Server) handleListReflections(c *fiber.Ctx) error {
	conversationID, err := conversationParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid conversation id"})
	}

	chain, err := s.store.ReflectionChain(c.Context(), conversationID)
	if err != nil {
		s.logger.Error("reflection listing failed", "conversation_id", conversationID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list reflections"})
	}

	out := make([]ReflectionResponse, len(chain))
	for i, r := range chain {
		resp := ReflectionResponse{
			ID:        r.ID,
			ParentID:  r.ParentID,
			Summary:   r.Summary,
			CreatedAt: r.CreatedAt,
		}

		tags, terr := s.store.ReflectionTags(c.Context(), r.ID)
		if terr != nil {
			s.logger.Warn("tag lookup failed", "reflection_id", r.ID, "error", terr)
		}
		for _, t := range tags {
			resp.Tags = append(resp.Tags, t.Label)
		}

		out[i] = resp
	}

	return c.JSON(fiber.Map{
		"conversation_id": conversationID,
		"count":           len(out),
		"reflections":     out,
	})
}

// handleListTags returns the full tag vocabulary.
func (s *Server) handleListTags(c *fiber.Ctx) error {
	tags, err := s.store.Tags(c.Context())
	if err != nil {
		s.logger.Error("tag listing failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list tags"})
	}

	out := make([]TagResponse, len(tags))
	for i, t := range tags {
		out[i] = TagResponse{ID: t.ID, Label: t.Label, CreatedAt: t.CreatedAt}
	}

	return c.JSON(fiber.Map{
		"count": len(out),
		"tags":  out,
	})
}

func conversationParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("conversation id must be positive")
	}
	return id, nil
}
