package analysis

import (
	"cmp"
	"finops-usage/domain/usage"
	"slices"
	"strings"

	lo "github.com/samber/lo"
)

// Rank builds the three resource rankings. Rows sharing a resource name are
// summed into one resource; type and location come from the first row seen.
// Ties always break by resource name ascending.
func Rank(records []usage.Record, totalCost float64, opts Options) usage.Rankings {
	opts = opts.normalized()
	resources := collapse(records)
	for i := range resources {
		r := &resources[i]
		r.Percentage = usage.Share(float64(r.Cost), totalCost)
		if r.UsageQuantity > 0 {
			r.CostPerUnit = usage.Money(float64(r.Cost) / r.UsageQuantity)
		}
	}

	mostExpensive := slices.Clone(resources)
	slices.SortStableFunc(mostExpensive, func(a, b usage.RankedResource) int {
		return byThenName(cmp.Compare(b.Cost, a.Cost), a, b)
	})

	mostUsed := slices.Clone(resources)
	slices.SortStableFunc(mostUsed, func(a, b usage.RankedResource) int {
		return byThenName(cmp.Compare(b.UsageQuantity, a.UsageQuantity), a, b)
	})

	leastUsed := lo.Filter(resources, func(r usage.RankedResource, _ int) bool {
		return r.UsageQuantity < opts.LeastUsedThreshold
	})
	slices.SortStableFunc(leastUsed, func(a, b usage.RankedResource) int {
		return byThenName(cmp.Compare(a.UsageQuantity, b.UsageQuantity), a, b)
	})

	return usage.Rankings{
		MostExpensive: mostExpensive,
		MostUsed:      mostUsed,
		LeastUsed:     leastUsed,
	}
}

func byThenName(c int, a, b usage.RankedResource) int {
	if c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

func collapse(records []usage.Record) []usage.RankedResource {
	index := make(map[string]int)
	out := make([]usage.RankedResource, 0, len(records))
	for _, r := range records {
		i, ok := index[r.ResourceName]
		if !ok {
			i = len(out)
			index[r.ResourceName] = i
			out = append(out, usage.RankedResource{
				Name:          r.ResourceName,
				ResourceID:    r.ResourceID,
				ResourceType:  r.ResourceType,
				Location:      r.Location,
				MeterCategory: r.MeterCategory,
			})
		}
		out[i].Cost += r.Cost
		out[i].UsageQuantity += r.Quantity
	}
	return out
}
