package blocking

import (
	"context"
	"net/http"
	"strings"

	"eksiblock/features/blocking"
	"eksiblock/features/commands"
	"eksiblock/features/history"
	"eksiblock/features/web/handlers/response"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// CommandExecutor runs workflow commands.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd commands.Command) (commands.Result, error)
}

// HistoryReader reads past operations.
type HistoryReader interface {
	List(ctx context.Context, opts history.ListOptions) ([]history.Record, error)
	GetByID(ctx context.Context, operationID string) (*history.Record, error)
}

type BlockingHandler struct {
	executor CommandExecutor
	history  HistoryReader
}

func NewBlockingHandler(executor CommandExecutor, hist HistoryReader) *BlockingHandler {
	return &BlockingHandler{executor: executor, history: hist}
}

// Start begins an operation for the entry, or merges it into the running one.
func (h *BlockingHandler) Start(c echo.Context) error {
	in, bt, err := bindEntry(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	return h.run(c, commands.StartBlocking{
		EntryID:               in.EntryID,
		BlockType:             bt,
		IncludeThreadBlocking: in.IncludeThreadBlocking,
	})
}

// Merge folds the entry into the running operation only.
func (h *BlockingHandler) Merge(c echo.Context) error {
	in, bt, err := bindEntry(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	return h.run(c, commands.MergeEntry{
		EntryID:               in.EntryID,
		BlockType:             bt,
		IncludeThreadBlocking: in.IncludeThreadBlocking,
	})
}

func (h *BlockingHandler) Stop(c echo.Context) error {
	return h.run(c, commands.StopBlocking{})
}

func (h *BlockingHandler) ForceStop(c echo.Context) error {
	return h.run(c, commands.ForceStopBlocking{})
}

func (h *BlockingHandler) Resume(c echo.Context) error {
	return h.run(c, commands.ResumeBlocking{})
}

func (h *BlockingHandler) ResetStuck(c echo.Context) error {
	return h.run(c, commands.ResetStuckState{})
}

func (h *BlockingHandler) Status(c echo.Context) error {
	return h.run(c, commands.GetStatus{})
}

// History lists past operations, newest first.
func (h *BlockingHandler) History(c echo.Context) error {
	q := &HistoryQuery{}
	if err := c.Bind(q); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if err := c.Validate(q); err != nil {
		return response.BadRequest(c, err.Error())
	}
	q.Status = strings.ToUpper(strings.TrimSpace(q.Status))

	records, err := h.history.List(c.Request().Context(), q.options())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list operation history")
		return response.Error(c, http.StatusInternalServerError, err.Error())
	}
	return response.Success(c, NewHistoryPayload(records))
}

// HistoryByID returns a single past operation.
func (h *BlockingHandler) HistoryByID(c echo.Context) error {
	id := c.Param("operationID")
	rec, err := h.history.GetByID(c.Request().Context(), id)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusNotFound {
			return response.NotFound(c, err.Error(), id)
		}
		return response.Error(c, code, err.Error())
	}
	return response.Success(c, rec)
}

func (h *BlockingHandler) run(c echo.Context, cmd commands.Command) error {
	res, err := h.executor.Execute(c.Request().Context(), cmd)
	if err != nil {
		return response.ErrorWithDetails(c, statusFor(err), err.Error(), res.Data)
	}
	return response.SuccessWithMessage(c, res.Message, newCommandPayload(cmd, res))
}

func bindEntry(c echo.Context) (*EntryInput, blocking.BlockType, error) {
	in := &EntryInput{}
	if err := c.Bind(in); err != nil {
		return nil, "", err
	}
	if err := c.Validate(in); err != nil {
		return nil, "", err
	}
	bt, err := in.blockType()
	if err != nil {
		return nil, "", err
	}
	return in, bt, nil
}
