package recommend

// Policy holds the tunable thresholds and savings fractions of the heuristics.
type Policy struct {
	// Least-used resources at or below this usage are treated as unused.
	UnusedMaxQuantity float64 `yaml:"unused_max_quantity"`

	// A compute resource must cost at least ReservedMinCost to be a reservation candidate.
	ReservedMinCost  float64 `yaml:"reserved_min_cost"`
	ReservedDiscount float64 `yaml:"reserved_discount"`

	// The top compute resource is flagged when its running-hours utilization
	// over the period is below OverProvisionedUtilization.
	OverProvisionedUtilization float64 `yaml:"over_provisioned_utilization"`
	RightsizingFraction        float64 `yaml:"rightsizing_fraction"`

	// Consolidation needs the priciest location to cost ConsolidationSpread
	// times the cheapest one.
	ConsolidationSpread   float64 `yaml:"consolidation_spread"`
	ConsolidationFraction float64 `yaml:"consolidation_fraction"`

	HybridBenefitFraction float64 `yaml:"hybrid_benefit_fraction"`
	SpotEligibleShare     float64 `yaml:"spot_eligible_share"`
	SpotDiscount          float64 `yaml:"spot_discount"`
	StorageFraction       float64 `yaml:"storage_fraction"`

	DetailLimit       int `yaml:"detail_limit"`
	UnusedDetailLimit int `yaml:"unused_detail_limit"`
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		UnusedMaxQuantity:          1,
		ReservedMinCost:            100,
		ReservedDiscount:           0.30,
		OverProvisionedUtilization: 0.50,
		RightsizingFraction:        0.10,
		ConsolidationSpread:        1.3,
		ConsolidationFraction:      0.10,
		HybridBenefitFraction:      0.40,
		SpotEligibleShare:          0.30,
		SpotDiscount:               0.70,
		StorageFraction:            0.15,
		DetailLimit:                5,
		UnusedDetailLimit:          10,
	}
}
