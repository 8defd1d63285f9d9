package eval

import (
	"github.com/open-feature/assignd/pkg/bandit"
	"github.com/open-feature/assignd/pkg/model"
	"github.com/open-feature/assignd/pkg/store"
)

//go:generate mockgen -source=bandit.go -destination=mock_selector_test.go -package=eval

// BanditSelector picks one action given the subject, the candidate actions and
// the bandit model.
type BanditSelector interface {
	Select(input bandit.Input) (bandit.Selection, error)
}

// BanditAction resolves the flag and, when the assigned variation is controlled
// by a bandit, selects an action. The result always carries a variation; the
// error reports what went wrong even when the result is still usable.
func (e *Evaluator) BanditAction(
	cfg *store.Configuration,
	flagKey string,
	subjectKey string,
	subjectAttributes model.ContextAttributes,
	actions map[string]model.ContextAttributes,
	defaultVariation string,
) (model.BanditResult, error) {
	return banditAction(e, NoopObserver{}, cfg, flagKey, subjectKey, subjectAttributes, actions, defaultVariation)
}

// BanditActionObserved is BanditAction with every stage reported to obs.
func BanditActionObserved[O Observer](
	e *Evaluator,
	obs O,
	cfg *store.Configuration,
	flagKey string,
	subjectKey string,
	subjectAttributes model.ContextAttributes,
	actions map[string]model.ContextAttributes,
	defaultVariation string,
) (model.BanditResult, error) {
	return banditAction(e, obs, cfg, flagKey, subjectKey, subjectAttributes, actions, defaultVariation)
}

func banditAction[O Observer](
	e *Evaluator,
	obs O,
	cfg *store.Configuration,
	flagKey string,
	subjectKey string,
	subjectAttributes model.ContextAttributes,
	actions map[string]model.ContextAttributes,
	defaultVariation string,
) (model.BanditResult, error) {
	result, err := evaluateBandit(e, obs, cfg, flagKey, subjectKey, subjectAttributes, actions, defaultVariation)
	obs.OnBanditResult(&result, err)
	return result, err
}

func evaluateBandit[O Observer](
	e *Evaluator,
	obs O,
	cfg *store.Configuration,
	flagKey string,
	subjectKey string,
	subjectAttributes model.ContextAttributes,
	actions map[string]model.ContextAttributes,
	defaultVariation string,
) (model.BanditResult, error) {
	subject := model.Subject{Key: subjectKey, Attributes: subjectAttributes.ToGeneric()}
	assignment, err := assign(e, obs, cfg, flagKey, subject, model.StringVariation)
	if err != nil {
		return model.BanditResult{Variation: defaultVariation}, err
	}

	variation := assignment.Variation.Value.Render()
	result := model.BanditResult{Variation: variation}

	banditKey, ok := cfg.GetBanditKey(flagKey, variation)
	if !ok {
		return result, nil
	}
	banditCfg, ok := cfg.GetBandit(banditKey)
	if !ok {
		return result, &model.EvaluationError{
			Kind:         model.BanditNotFoundErrorCode,
			FlagKey:      flagKey,
			BanditKey:    banditKey,
			VariationKey: assignment.Variation.Key,
		}
	}
	if len(actions) == 0 {
		return result, nil
	}

	// A bandit without model data still selects, on default scores, so the
	// caller gets an action; the missing model is reported alongside it.
	var degraded error
	if banditCfg.ModelData == nil {
		degraded = &model.EvaluationError{
			Kind:      model.BanditModelMissingErrorCode,
			FlagKey:   flagKey,
			BanditKey: banditKey,
		}
	}

	selection, err := e.selector.Select(bandit.Input{
		FlagKey:           flagKey,
		SubjectKey:        subjectKey,
		SubjectAttributes: subjectAttributes,
		Actions:           actions,
		Model:             banditCfg.ModelData,
	})
	if err != nil {
		return result, &model.EvaluationError{
			Kind:      model.BanditSelectionFailedErrorCode,
			FlagKey:   flagKey,
			BanditKey: banditKey,
			Cause:     err,
		}
	}

	action := selection.ActionKey
	result.Action = &action
	chosen := actions[action]
	result.Event = &model.BanditEvent{
		FlagKey:                      flagKey,
		BanditKey:                    banditKey,
		Subject:                      subjectKey,
		Action:                       action,
		ActionProbability:            selection.ActionWeight,
		OptimalityGap:                selection.OptimalityGap,
		ModelVersion:                 banditCfg.ModelVersion,
		Timestamp:                    e.now(),
		SubjectNumericAttributes:     subjectAttributes.Numeric,
		SubjectCategoricalAttributes: subjectAttributes.Categorical,
		ActionNumericAttributes:      chosen.Numeric,
		ActionCategoricalAttributes:  chosen.Categorical,
		MetaData:                     e.metadata,
	}
	return result, degraded
}
