package blocking

import (
	"errors"
	"net/http"

	"eksiblock/features/blocking"
	"eksiblock/features/commands"
	"eksiblock/features/favorites"
	"eksiblock/features/history"
)

// statusFor maps workflow errors to HTTP status codes.
func statusFor(err error) int {
	var (
		mergeErr   *blocking.MergeRejectedError
		fetchErr   *blocking.FetchError
		blockErr   *blocking.BlockRequestError
		storageErr *blocking.StorageError
	)

	switch {
	case errors.Is(err, commands.ErrInvalidCommand),
		errors.Is(err, commands.ErrUnknownCommand),
		errors.Is(err, favorites.ErrInvalidEntryID),
		errors.Is(err, blocking.ErrInvalidBlockType),
		errors.Is(err, blocking.ErrEmptyEntryID):
		return http.StatusBadRequest
	case errors.As(err, &mergeErr),
		errors.Is(err, blocking.ErrOperationRunning),
		errors.Is(err, blocking.ErrStuckOperation):
		return http.StatusConflict
	case errors.Is(err, blocking.ErrNoActiveOperation),
		errors.Is(err, blocking.ErrNoStoredOperation),
		errors.Is(err, history.ErrOperationNotFound):
		return http.StatusNotFound
	case errors.Is(err, blocking.ErrNoFavorites):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr), errors.As(err, &blockErr):
		return http.StatusBadGateway
	case errors.Is(err, blocking.ErrWorkflowClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
