package vector

import (
	"fmt"
	"strings"
)

// Metric names the similarity function used to score a stored vector against
// a query vector. Higher scores are more similar.
type Metric string

const (
	// MetricCosine is scale invariant and the default ranking metric.
	MetricCosine Metric = "cosine"

	// MetricDot is the raw dot product. Only a valid relevance score when the
	// embedding provider already returns normalized vectors.
	MetricDot Metric = "dot"

	// DefaultMetric is used when no metric is configured.
	DefaultMetric = MetricCosine
)

// ParseMetric parses a metric name. An empty name yields DefaultMetric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultMetric, nil
	case MetricCosine:
		return MetricCosine, nil
	case MetricDot:
		return MetricDot, nil
	default:
		return "", fmt.Errorf("unknown similarity metric %q (available: cosine, dot)", s)
	}
}

// Score applies the metric to a and b.
func (m Metric) Score(a, b Vector) (float64, error) {
	switch m {
	case MetricCosine, "":
		return a.Cosine(b)
	case MetricDot:
		return a.Dot(b)
	default:
		return 0, fmt.Errorf("unknown similarity metric %q", string(m))
	}
}

func (m Metric) String() string {
	if m == "" {
		return string(DefaultMetric)
	}
	return string(m)
}
