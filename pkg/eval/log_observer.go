package eval

import (
	log "github.com/sirupsen/logrus"

	"github.com/open-feature/assignd/pkg/model"
)

// LogObserver writes a debug trace of each evaluation to a logrus logger.
type LogObserver struct {
	NoopObserver
	Logger log.FieldLogger
}

func NewLogObserver(logger log.FieldLogger) LogObserver {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return LogObserver{Logger: logger}
}

func (o LogObserver) OnCondition(c *model.Condition, value model.AttributeValue, result ConditionResult) {
	if result != ConditionSkipped {
		return
	}
	o.Logger.WithFields(log.Fields{
		"attribute": c.Attribute,
		"operator":  c.Operator,
		"reason":    c.SkipReason,
	}).Debug("condition skipped")
}

func (o LogObserver) OnAllocationResult(index int, allocation *model.Allocation, code model.AllocationCode) {
	o.Logger.WithFields(log.Fields{
		"allocation": allocation.Key,
		"index":      index,
		"code":       code,
	}).Debug("allocation evaluated")
}

func (o LogObserver) OnResult(assignment *model.Assignment, err error) {
	if err != nil {
		o.Logger.WithError(err).WithField("code", model.KindOf(err)).Debug("no assignment")
		return
	}
	o.Logger.WithFields(log.Fields{
		"flag":       assignment.FlagKey,
		"allocation": assignment.AllocationKey,
		"variation":  assignment.Variation.Key,
		"reason":     assignment.Reason,
	}).Debug("assigned")
}

func (o LogObserver) OnBanditResult(result *model.BanditResult, err error) {
	entry := o.Logger.WithField("variation", result.Variation)
	if result.Action != nil {
		entry = entry.WithField("action", *result.Action)
	}
	if err != nil {
		entry.WithError(err).Warn("bandit evaluation degraded")
		return
	}
	entry.Debug("bandit evaluated")
}
