package eval

import (
	"time"

	"github.com/open-feature/assignd/pkg/model"
	"github.com/open-feature/assignd/pkg/shard"
)

type allocationMatch struct {
	index      int
	allocation *model.Allocation
	split      *model.Split
}

// selectAllocation walks the allocations in order and returns the first one
// whose rules and traffic split both accept the subject. When none does, the
// returned evaluations explain every rejection.
func selectAllocation[O Observer](
	obs O,
	sharder shard.Sharder,
	flag *model.Flag,
	subject subjectView,
	now time.Time,
) (allocationMatch, []model.AllocationEvaluation, bool) {
	var rejected []model.AllocationEvaluation

	for i := range flag.Allocations {
		allocation := &flag.Allocations[i]
		obs.OnAllocation(i, allocation)

		code := allocation.Active(now)
		var split *model.Split
		if code == model.AllocationMatch {
			if !matchRules(obs, allocation.Rules, subject) {
				code = model.AllocationFailingRule
			} else if split = selectSplit(obs, sharder, allocation.Splits, subject.key, flag.TotalShards); split == nil {
				code = model.AllocationTrafficExposureMiss
			}
		}
		obs.OnAllocationResult(i, allocation, code)

		if code == model.AllocationMatch {
			return allocationMatch{index: i, allocation: allocation, split: split}, nil, true
		}
		rejected = append(rejected, model.AllocationEvaluation{
			Key:   allocation.Key,
			Index: i,
			Code:  code,
		})
	}
	return allocationMatch{}, rejected, false
}

func selectSplit[O Observer](obs O, sharder shard.Sharder, splits []model.Split, subjectKey string, totalShards uint64) *model.Split {
	for i := range splits {
		split := &splits[i]
		matched := splitContains(sharder, split, subjectKey, totalShards)
		obs.OnSplit(split, matched)
		if matched {
			return split
		}
	}
	return nil
}

// splitContains requires the subject to fall into every shard of the split.
func splitContains(sharder shard.Sharder, split *model.Split, subjectKey string, totalShards uint64) bool {
	for _, s := range split.Shards {
		v := sharder.Shard(shard.Key(s.Salt, subjectKey), totalShards)
		in := false
		for _, r := range s.Ranges {
			if r.Contains(v) {
				in = true
				break
			}
		}
		if !in {
			return false
		}
	}
	return true
}
