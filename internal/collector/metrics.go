package collector

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrCollectorNotInitialized = errors.New("metrics collector not initialized")

	once sync.Once
	mc   *MetricsCollector
)

// MetricsCollector records the blocking workflow counters in prometheus.
type MetricsCollector struct {
	usersProcessed     *prometheus.CounterVec
	retries            *prometheus.CounterVec
	checkpointFailures prometheus.Counter
	merges             *prometheus.CounterVec
	operationsFinished *prometheus.CounterVec
	pendingUsers       prometheus.Gauge

	gatherer prometheus.Gatherer
}

func GetMetricsCollector() (*MetricsCollector, error) {
	if mc == nil {
		return nil, ErrCollectorNotInitialized
	}
	return mc, nil
}

// InitMetricsCollector registers the process wide collector on the default registry.
func InitMetricsCollector() *MetricsCollector {
	once.Do(func() {
		mc = NewMetricsCollector(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	})
	return mc
}

// NewMetricsCollector registers the workflow metrics on reg.
func NewMetricsCollector(reg prometheus.Registerer, gatherer prometheus.Gatherer) *MetricsCollector {
	factory := promauto.With(reg)

	return &MetricsCollector{
		usersProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eksiblock_users_processed_total",
			Help: "Users moved to processed, by block type and outcome.",
		}, []string{"block_type", "outcome"}),

		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eksiblock_block_retries_total",
			Help: "Failed block requests that consumed a retry.",
		}, []string{"block_type"}),

		checkpointFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "eksiblock_checkpoint_failures_total",
			Help: "Failed writes of the operation record.",
		}),

		merges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eksiblock_merges_total",
			Help: "Merge attempts into the running operation, by result.",
		}, []string{"result"}),

		operationsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eksiblock_operations_finished_total",
			Help: "Dispatcher loop exits, by resulting status.",
		}, []string{"status"}),

		pendingUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eksiblock_pending_users",
			Help: "Users still queued in the current operation.",
		}),

		gatherer: gatherer,
	}
}

func (mc *MetricsCollector) UserProcessed(blockType string, outcome string) {
	mc.usersProcessed.With(prometheus.Labels{"block_type": blockType, "outcome": outcome}).Inc()
}

func (mc *MetricsCollector) RetryAttempted(blockType string) {
	mc.retries.With(prometheus.Labels{"block_type": blockType}).Inc()
}

func (mc *MetricsCollector) CheckpointFailed() {
	mc.checkpointFailures.Inc()
}

func (mc *MetricsCollector) MergeResolved(result string) {
	mc.merges.With(prometheus.Labels{"result": result}).Inc()
}

func (mc *MetricsCollector) OperationFinished(status string) {
	mc.operationsFinished.With(prometheus.Labels{"status": status}).Inc()
}

func (mc *MetricsCollector) PendingUsers(count int) {
	mc.pendingUsers.Set(float64(count))
}
