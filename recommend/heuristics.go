package recommend

import (
	"cmp"
	"finops-usage/domain/usage"
	"fmt"
	"slices"
	"strings"

	lo "github.com/samber/lo"
)

// Recommendation ids, stable across generations.
const (
	IDUnusedResources       = "R001"
	IDLocationConsolidation = "R002"
	IDReservedInstances     = "R003"
	IDRightsizing           = "R004"
	IDHybridBenefit         = "R005"
	IDSpotInstances         = "R006"
	IDStorageTiering        = "R007"
)

// Defaults returns the stock heuristic set in evaluation order.
func Defaults() []Heuristic {
	return []Heuristic{
		{ID: IDUnusedResources, Apply: UnusedResources},
		{ID: IDLocationConsolidation, Apply: LocationConsolidation},
		{ID: IDReservedInstances, Apply: ReservedInstances},
		{ID: IDRightsizing, Apply: Rightsizing},
		{ID: IDHybridBenefit, Apply: HybridBenefit},
		{ID: IDSpotInstances, Apply: SpotInstances},
		{ID: IDStorageTiering, Apply: StorageTiering},
	}
}

// UnusedResources proposes removing resources whose usage is at or below
// p.UnusedMaxQuantity. The saving is their whole cost.
func UnusedResources(in Input, p Policy) (usage.Recommendation, bool) {
	unused := lo.Filter(in.Rankings.LeastUsed, func(r usage.RankedResource, _ int) bool {
		return r.UsageQuantity <= p.UnusedMaxQuantity
	})
	if len(unused) == 0 {
		return usage.Recommendation{}, false
	}
	slices.SortStableFunc(unused, func(a, b usage.RankedResource) int {
		if c := cmp.Compare(b.Cost, a.Cost); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	savings := lo.SumBy(unused, resourceCost)
	details := lo.Map(head(unused, p.UnusedDetailLimit), func(r usage.RankedResource, _ int) usage.Detail {
		return usage.Detail{
			"resource": r.Name,
			"type":     r.ResourceType,
			"location": r.Location,
			"cost":     r.Cost,
			"usage":    r.UsageQuantity,
			"action":   unusedAction(r),
		}
	})
	return usage.Recommendation{
		ID:               IDUnusedResources,
		Title:            "Remove Unused Resources",
		Description:      fmt.Sprintf("Found %d resources with minimal usage", len(unused)),
		Severity:         usage.SeverityHigh,
		EstimatedSavings: usage.Money(savings),
		Details:          details,
	}, true
}

// Compute can be stopped (deallocated) and restarted; anything else is deleted.
func unusedAction(r usage.RankedResource) string {
	if isCompute(r.ResourceType, r.MeterCategory) {
		return "Stop"
	}
	return "Delete"
}

// LocationConsolidation proposes moving workloads from every other location to
// the cheapest observed one, when the spread between the priciest and the
// cheapest location exceeds p.ConsolidationSpread.
func LocationConsolidation(in Input, p Policy) (usage.Recommendation, bool) {
	locations := in.Aggregates.Breakdowns[usage.ByLocation]
	if len(locations) < 2 {
		return usage.Recommendation{}, false
	}
	priciest, cheapest := locations[0], locations[len(locations)-1]
	if float64(priciest.Cost) <= float64(cheapest.Cost)*p.ConsolidationSpread {
		return usage.Recommendation{}, false
	}

	var savings float64
	details := make([]usage.Detail, 0, len(locations)-1)
	for _, loc := range locations[:len(locations)-1] {
		s := float64(loc.Cost) * p.ConsolidationFraction
		savings += s
		details = append(details, usage.Detail{
			"from":              loc.Category,
			"to":                cheapest.Category,
			"current_cost":      loc.Cost,
			"potential_savings": usage.Money(s),
		})
	}
	return usage.Recommendation{
		ID:               IDLocationConsolidation,
		Title:            "Optimize by Location",
		Description:      fmt.Sprintf("Consider consolidating resources into %s, the lowest-cost region in use", cheapest.Category),
		Severity:         usage.SeverityMedium,
		EstimatedSavings: usage.Money(savings),
		Details:          head(details, p.DetailLimit),
	}, true
}

// ReservedInstances estimates the reserved-pricing discount on compute
// resources costing at least p.ReservedMinCost.
func ReservedInstances(in Input, p Policy) (usage.Recommendation, bool) {
	candidates := lo.Filter(in.Rankings.MostExpensive, func(r usage.RankedResource, _ int) bool {
		return isCompute(r.ResourceType, r.MeterCategory) && float64(r.Cost) >= p.ReservedMinCost
	})
	if len(candidates) == 0 {
		return usage.Recommendation{}, false
	}

	byType := sumByKey(candidates, func(r usage.RankedResource) string { return r.ResourceType }, resourceCost)
	var current float64
	details := make([]usage.Detail, 0, len(byType))
	for _, t := range byType {
		current += t.cost
		details = append(details, usage.Detail{
			"resource_type":             t.key,
			"resources":                 t.count,
			"current_cost":              usage.Money(t.cost),
			"estimated_savings_with_ri": usage.Money(t.cost * p.ReservedDiscount),
		})
	}
	return usage.Recommendation{
		ID:               IDReservedInstances,
		Title:            "Purchase Reserved Instances",
		Description:      fmt.Sprintf("Migrate %d high-usage compute resources to reserved instances for better pricing", len(candidates)),
		Severity:         usage.SeverityHigh,
		EstimatedSavings: usage.Money(current * p.ReservedDiscount),
		Details:          head(details, p.DetailLimit),
	}, true
}

// Rightsizing flags the most expensive compute resource when its utilization
// is below p.OverProvisionedUtilization. Utilization is the billed quantity read
// as running hours over the period.
func Rightsizing(in Input, p Policy) (usage.Recommendation, bool) {
	top, ok := lo.Find(in.Rankings.MostExpensive, func(r usage.RankedResource) bool {
		return isCompute(r.ResourceType, r.MeterCategory)
	})
	if !ok || top.Cost <= 0 {
		return usage.Recommendation{}, false
	}
	days := in.Aggregates.Summary.PeriodDays
	if days <= 0 {
		days = 30
	}
	utilization := min(top.UsageQuantity/float64(24*days), 1)
	if utilization >= p.OverProvisionedUtilization {
		return usage.Recommendation{}, false
	}

	savings := float64(top.Cost) * p.RightsizingFraction
	return usage.Recommendation{
		ID:               IDRightsizing,
		Title:            "Right-size Over-provisioned Resources",
		Description:      fmt.Sprintf("Downsize %s, the most expensive compute resource, which ran %.0f%% of the period", top.Name, utilization*100),
		Severity:         usage.SeverityMedium,
		EstimatedSavings: usage.Money(savings),
		Details: []usage.Detail{{
			"resource":          top.Name,
			"resource_type":     top.ResourceType,
			"location":          top.Location,
			"current_cost":      top.Cost,
			"utilization":       usage.Percent(utilization * 100),
			"estimated_savings": usage.Money(savings),
		}},
	}, true
}

// HybridBenefit estimates the licence saving on Windows Server and SQL Server meters.
func HybridBenefit(in Input, p Policy) (usage.Recommendation, bool) {
	licensed := lo.Filter(in.Records, func(r usage.Record, _ int) bool {
		return containsAny(r.MeterName, "windows", "sql")
	})
	if len(licensed) == 0 {
		return usage.Recommendation{}, false
	}

	byMeter := sumByKey(licensed, func(r usage.Record) string { return r.MeterName }, recordCost)
	var current float64
	details := make([]usage.Detail, 0, len(byMeter))
	for _, m := range byMeter {
		current += m.cost
		details = append(details, usage.Detail{
			"meter":             m.key,
			"current_cost":      usage.Money(m.cost),
			"estimated_savings": usage.Money(m.cost * p.HybridBenefitFraction),
			"action":            "Enroll licenses in Azure Hybrid Benefit program",
		})
	}
	return usage.Recommendation{
		ID:               IDHybridBenefit,
		Title:            "Apply Azure Hybrid Benefit",
		Description:      "Use existing licenses for Windows and SQL Server",
		Severity:         usage.SeverityMedium,
		EstimatedSavings: usage.Money(current * p.HybridBenefitFraction),
		Details:          head(details, p.DetailLimit),
	}, true
}

// SpotInstances assumes a share of virtual machine spend can move to spot capacity.
func SpotInstances(in Input, p Policy) (usage.Recommendation, bool) {
	vms := lo.Filter(in.Records, func(r usage.Record, _ int) bool {
		return containsAny(r.ResourceType, "virtual machine", "vm")
	})
	if len(vms) == 0 {
		return usage.Recommendation{}, false
	}

	vmCost := lo.SumBy(vms, recordCost)
	savings := vmCost * p.SpotEligibleShare * p.SpotDiscount
	return usage.Recommendation{
		ID:               IDSpotInstances,
		Title:            "Use Spot Virtual Machines",
		Description:      "Leverage spot instances for non-critical workloads",
		Severity:         usage.SeverityLow,
		EstimatedSavings: usage.Money(savings),
		Details: []usage.Detail{{
			"recommendation":      "Use Spot Virtual Machines for non-critical workloads",
			"vm_costs":            usage.Money(vmCost),
			"eligible_percentage": usage.Percent(p.SpotEligibleShare * 100),
			"estimated_savings":   usage.Money(savings),
		}},
	}, true
}

// StorageTiering estimates the saving from moving cold data to cheaper tiers.
func StorageTiering(in Input, p Policy) (usage.Recommendation, bool) {
	storage := lo.Filter(in.Records, func(r usage.Record, _ int) bool {
		return containsAny(r.MeterCategory, "storage") || containsAny(r.ResourceType, "storage")
	})
	if len(storage) == 0 {
		return usage.Recommendation{}, false
	}

	storageCost := lo.SumBy(storage, recordCost)
	savings := storageCost * p.StorageFraction
	return usage.Recommendation{
		ID:               IDStorageTiering,
		Title:            "Optimize Storage Configuration",
		Description:      "Move data to cheaper storage tiers and delete old snapshots",
		Severity:         usage.SeverityMedium,
		EstimatedSavings: usage.Money(savings),
		Details: []usage.Detail{{
			"action":            "Move cold data to Archive tier",
			"current_cost":      usage.Money(storageCost),
			"estimated_savings": usage.Money(savings),
			"impact":            "Reduce hot storage by moving infrequently accessed data",
		}},
	}, true
}

var computeMarkers = []string{"virtual machine", "compute", "vmss", "scale set"}

func isCompute(resourceType, meterCategory string) bool {
	return containsAny(resourceType, computeMarkers...) || containsAny(meterCategory, computeMarkers...)
}

func containsAny(s string, needles ...string) bool {
	s = strings.ToLower(s)
	return lo.SomeBy(needles, func(n string) bool { return strings.Contains(s, n) })
}

type keyedSum struct {
	key   string
	cost  float64
	count int
}

// sumByKey totals cost per key, ordered by cost descending then key ascending.
func sumByKey[T any](items []T, key func(T) string, cost func(T) float64) []keyedSum {
	index := make(map[string]int)
	var sums []keyedSum
	for _, it := range items {
		k := key(it)
		i, ok := index[k]
		if !ok {
			i = len(sums)
			index[k] = i
			sums = append(sums, keyedSum{key: k})
		}
		sums[i].cost += cost(it)
		sums[i].count++
	}
	slices.SortStableFunc(sums, func(a, b keyedSum) int {
		if c := cmp.Compare(b.cost, a.cost); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})
	return sums
}

func resourceCost(r usage.RankedResource) float64 { return float64(r.Cost) }

func recordCost(r usage.Record) float64 { return float64(r.Cost) }

func head[T any](s []T, n int) []T {
	if n <= 0 || n > len(s) {
		return s
	}
	return s[:n]
}
