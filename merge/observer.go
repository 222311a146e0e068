package merge

import (
	"go.uber.org/zap"
)

// Observer receives diagnostics from a merge pass. Implementations must
// not influence the pass; they are called synchronously from the walker.
type Observer interface {
	// Matched fires when an agency receives an objective value.
	Matched(agencyID string, oldValue, newValue any)

	// Unmatched fires for an agency leaf no cascade step resolved.
	Unmatched(agencyID string, candidateKeys []string)

	// AggregateBuilt fires once per StrategySum pass with the group count.
	AggregateBuilt(count int)

	// Failed fires when a pass is abandoned; the original payload stands.
	Failed(err error)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) Matched(string, any, any)   {}
func (NopObserver) Unmatched(string, []string) {}
func (NopObserver) AggregateBuilt(int)         {}
func (NopObserver) Failed(error)               {}

// MultiObserver fans events out in order.
type MultiObserver []Observer

func (m MultiObserver) Matched(agencyID string, oldValue, newValue any) {
	for _, o := range m {
		o.Matched(agencyID, oldValue, newValue)
	}
}

func (m MultiObserver) Unmatched(agencyID string, candidateKeys []string) {
	for _, o := range m {
		o.Unmatched(agencyID, candidateKeys)
	}
}

func (m MultiObserver) AggregateBuilt(count int) {
	for _, o := range m {
		o.AggregateBuilt(count)
	}
}

func (m MultiObserver) Failed(err error) {
	for _, o := range m {
		o.Failed(err)
	}
}

// =============================================================================
// ZAP OBSERVER
// =============================================================================

// ZapObserver logs merge events. Per-agency events are debug level: a
// payload holds hundreds of agencies and the logger's sampler is expected
// to thin them out in production.
type ZapObserver struct {
	logger *zap.Logger
}

func NewZapObserver(logger *zap.Logger) *ZapObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapObserver{logger: logger.Named("merge")}
}

func (z *ZapObserver) Matched(agencyID string, oldValue, newValue any) {
	z.logger.Debug("objective merged",
		zap.String("agency", agencyID),
		zap.Any("old_value", oldValue),
		zap.Any("new_value", newValue))
}

func (z *ZapObserver) Unmatched(agencyID string, candidateKeys []string) {
	z.logger.Debug("no objective for agency",
		zap.String("agency", agencyID),
		zap.Strings("candidate_keys", candidateKeys))
}

func (z *ZapObserver) AggregateBuilt(count int) {
	z.logger.Info("aggregated objectives built", zap.Int("groups", count))
}

func (z *ZapObserver) Failed(err error) {
	z.logger.Error("objective merge abandoned", zap.Error(err))
}
