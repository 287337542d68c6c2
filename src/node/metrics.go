package node

import (
	"errors"
	"strings"

	"github.com/mosaicnetworks/tsae/src/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the namespace of all the metrics exported by a node.
const Namespace = "tsae"

const subsystem = "node"

var (
	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "sessions_total",
		Help:      "Number of sessions by role and outcome",
	}, []string{"node", "role", "result"})

	droppedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "dropped_operations_total",
		Help:      "Number of received operations dropped because they were duplicates or out of order",
	}, []string{"node"})

	submittedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "submitted_operations_total",
		Help:      "Number of operations issued locally",
	}, []string{"node"})

	logLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "log_length",
		Help:      "Number of operations held in the log",
	}, []string{"node"})
)

// sessionResult is the outcome label of a session.
func sessionResult(err error) string {
	if err == nil {
		return "ok"
	}
	return errType(err)
}

func errType(err error) string {
	var se common.SessionErr
	if errors.As(err, &se) {
		return strings.ToLower(se.Type().String())
	}
	return "error"
}
