package ranges

import (
	"sync"

	"github.com/mohae/deepcopy"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/config"
)

// Classifier classifies values against a table which can be replaced at runtime
type Classifier struct {
	mu     sync.RWMutex
	table  Table
	logger *zap.SugaredLogger
}

func NewClassifier(table Table, logger *zap.SugaredLogger) (*Classifier, error) {
	if err := Validate(table); err != nil {
		return nil, err
	}
	return &Classifier{
		table:  table,
		logger: logger,
	}, nil
}

// NewTable loads the configured table
func NewTable(cfg *config.Config) (Table, error) {
	return Load(cfg.RangesOverridePath)
}

func (c *Classifier) Classify(metric MetricType, value float64) Tier {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tier := Classify(metric, value, c.table)
	if tier == TierUnclassified {
		c.logger.Debugw("value is not covered by any configured range", "metric", metric, "value", value)
	}
	return tier
}

// NormalRange returns the rendered normal range of the metric
func (c *Classifier) NormalRange(metric MetricType) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.table[metric].NormalRange()
}

// Table returns a copy of the current table
func (c *Classifier) Table() Table {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return deepcopy.Copy(c.table).(Table)
}

// Replace swaps the table after validating it
func (c *Classifier) Replace(table Table) error {
	if err := Validate(table); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.table = deepcopy.Copy(table).(Table)
	c.logger.Infow("replaced range table", "metrics", len(table))
	return nil
}
