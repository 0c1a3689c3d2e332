// Package metrics defines the Prometheus metrics the session client emits.
// It is the single source of truth for metric names, labels, and help
// strings; everything registers with the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "platform_client"

// UnauthorizedTotal counts 401 responses seen by the refresh interceptor on
// non-exempt requests, before any refresh attempt.
var UnauthorizedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_unauthorized_total",
		Help:      "Total number of authentication-rejected responses intercepted.",
	},
)

// RefreshTotal counts actual token refresh attempts issued by the
// interceptor. Concurrent rejections that share one in-flight refresh count
// once.
// Label:
//   - result: "success" or "failure"
var RefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_refresh_total",
		Help:      "Total number of token refresh attempts, by result.",
	},
	[]string{"result"},
)

// RequestRetriesTotal counts requests replayed after a successful refresh.
var RequestRetriesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_request_retries_total",
		Help:      "Total number of requests retried after a token refresh.",
	},
)
