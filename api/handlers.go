package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/engramhq/engram/pkg/filter"
	"github.com/engramhq/engram/pkg/format"
	"github.com/engramhq/engram/pkg/memory"
)

// ErrorResponse is the JSON error envelope for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ContextResponse carries a rendered memory projection.
type ContextResponse struct {
	UserID    string `json:"user_id"`
	Format    string `json:"format"`
	Context   string `json:"context"`
	FactCount int    `json:"fact_count"`
}

// TurnsRequest is the body for POST /memory/:user/turns.
type TurnsRequest struct {
	Messages []memory.Turn `json:"messages"`
}

// UpdateResponse summarizes the result of an update cycle.
type UpdateResponse struct {
	UserID    string `json:"user_id"`
	FactCount int    `json:"fact_count"`
	Summary   string `json:"summary"`
}

// FilterRequest is the body for the inlet and outlet hook endpoints.
type FilterRequest struct {
	UserID         string        `json:"user_id"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Messages       []memory.Turn `json:"messages"`
}

// StatusLine is one progress status captured while a hook ran.
type StatusLine struct {
	Description string `json:"description"`
	Done        bool   `json:"done"`
}

// InletResponse carries the memory-injected message list.
type InletResponse struct {
	Messages []memory.Turn `json:"messages"`
	Statuses []StatusLine  `json:"statuses,omitempty"`
}

// OutletResponse reports the statuses of an outlet run. An under-threshold
// conversation yields no statuses.
type OutletResponse struct {
	Statuses []StatusLine `json:"statuses,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGetMemory returns the full memory snapshot for a user. A user with
// no history gets an empty snapshot, not a 404; memory reads never fail a
// caller that way.
func (s *Server) handleGetMemory(c *fiber.Ctx) error {
	userID := c.Params("user")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user parameter required"})
	}

	state, err := s.engine.Load(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "memory store unavailable"})
	}

	return c.JSON(state)
}

// handleGetContext returns the user's memory rendered for prompt injection.
// The format query parameter selects the mode; default is structured.
func (s *Server) handleGetContext(c *fiber.Ctx) error {
	userID := c.Params("user")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user parameter required"})
	}

	mode := format.ModeStructured
	if q := c.Query("format"); q != "" {
		parsed, err := format.ParseMode(q)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		mode = parsed
	}

	state, err := s.engine.Load(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "memory store unavailable"})
	}

	return c.JSON(ContextResponse{
		UserID:    userID,
		Format:    string(mode),
		Context:   s.engine.Format(state, mode),
		FactCount: state.FactCount,
	})
}

// handlePostTurns folds a batch of conversation turns into the user's
// durable memory and returns the post-update snapshot metadata.
func (s *Server) handlePostTurns(c *fiber.Ctx) error {
	userID := c.Params("user")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user parameter required"})
	}

	var req TurnsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "messages required"})
	}

	state, err := s.engine.Update(c.Context(), userID, req.Messages)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "memory store unavailable"})
	}

	return c.JSON(UpdateResponse{
		UserID:    userID,
		FactCount: state.FactCount,
		Summary:   state.Summary,
	})
}

// handleFilterInlet runs the host inlet hook: the user's memory is injected
// into the conversation and the modified message list returned, along with
// any status lines the filter produced. The hook never fails a conversation,
// so this endpoint only rejects malformed requests.
func (s *Server) handleFilterInlet(c *fiber.Ctx) error {
	req, ok := parseFilterRequest(c)
	if !ok {
		return nil
	}

	var statuses []StatusLine
	messages := s.filter.Inlet(c.Context(), req, collectStatuses(&statuses))

	return c.JSON(InletResponse{
		Messages: messages,
		Statuses: statuses,
	})
}

// handleFilterOutlet runs the host outlet hook, folding the finished exchange
// into durable memory once enough user turns accumulated.
func (s *Server) handleFilterOutlet(c *fiber.Ctx) error {
	req, ok := parseFilterRequest(c)
	if !ok {
		return nil
	}

	var statuses []StatusLine
	s.filter.Outlet(c.Context(), req, collectStatuses(&statuses))

	return c.JSON(OutletResponse{Statuses: statuses})
}

func parseFilterRequest(c *fiber.Ctx) (filter.Request, bool) {
	var req FilterRequest
	if err := c.BodyParser(&req); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		return filter.Request{}, false
	}
	if req.UserID == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id required"})
		return filter.Request{}, false
	}

	return filter.Request{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Messages:       req.Messages,
	}, true
}

func collectStatuses(statuses *[]StatusLine) filter.Emitter {
	return func(st filter.Status) {
		*statuses = append(*statuses, StatusLine{
			Description: st.Description,
			Done:        st.Done,
		})
	}
}
