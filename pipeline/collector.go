package pipeline

import "time"

// Strategy selects how per-handler results are combined into the final
// dispatch result.
type Strategy uint8

const (
	// StrategyAll returns the ordered list of all results. Default.
	StrategyAll Strategy = iota

	// StrategyFirst returns the first result.
	StrategyFirst

	// StrategyLast returns the last result.
	StrategyLast

	// StrategyMerge folds the results through a supplied Merger.
	StrategyMerge
)

// String returns a human-readable strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyAll:
		return "all"
	case StrategyFirst:
		return "first"
	case StrategyLast:
		return "last"
	case StrategyMerge:
		return "merge"
	default:
		return "unknown"
	}
}

// Merger folds the collected results into a single value.
type Merger func(results []any) any

// CollectorConfig configures result collection for one dispatch.
type CollectorConfig struct {
	// Strategy selects the combination strategy.
	Strategy Strategy

	// Merger is required for StrategyMerge; ignored otherwise.
	Merger Merger

	// MaxResults caps the result list. The first MaxResults values are
	// kept; later SetResult calls are accepted but not stored.
	// Zero means unlimited.
	MaxResults int

	// Timeout bounds how long the dispatch waits for outstanding
	// handlers before finalizing with whatever results are available.
	// It does not stop already-scheduled handlers. Zero means no limit.
	Timeout time.Duration
}

// Collector combines handler results according to a strategy.
type Collector struct {
	cfg CollectorConfig
}

// NewCollector creates a collector for one dispatch.
func NewCollector(cfg CollectorConfig) *Collector {
	return &Collector{cfg: cfg}
}

// MaxResults returns the configured result cap.
func (c *Collector) MaxResults() int { return c.cfg.MaxResults }

// Timeout returns the configured collection timeout.
func (c *Collector) Timeout() time.Duration { return c.cfg.Timeout }

// Finalize applies the strategy to the collected results.
func (c *Collector) Finalize(results []any) any {
	switch c.cfg.Strategy {
	case StrategyFirst:
		if len(results) == 0 {
			return nil
		}
		return results[0]
	case StrategyLast:
		if len(results) == 0 {
			return nil
		}
		return results[len(results)-1]
	case StrategyMerge:
		if c.cfg.Merger == nil {
			return results
		}
		return c.cfg.Merger(results)
	default:
		return results
	}
}
