package web

import (
	"errors"

	"eksiblock/features/commands"
	"eksiblock/features/history"
	"eksiblock/features/web/handlers/blocking"
	"eksiblock/features/web/handlers/health"
	"eksiblock/internal/collector"
)

var ErrMissingService = errors.New("required service is missing")

// Services are the dependencies the HTTP layer is built on.
type Services struct {
	Executor blocking.CommandExecutor
	History  blocking.HistoryReader
	Status   health.StatusReporter
	Metrics  *collector.MetricsCollector
}

// NewServices bundles the command executor, the history repository and the
// workflow status reporter.
func NewServices(exec *commands.Executor, hist *history.SQLiteRepository, status health.StatusReporter, mc *collector.MetricsCollector) (*Services, error) {
	if exec == nil || hist == nil || status == nil {
		return nil, ErrMissingService
	}
	return &Services{
		Executor: exec,
		History:  hist,
		Status:   status,
		Metrics:  mc,
	}, nil
}
