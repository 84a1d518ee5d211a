package usage

import "time"

// Dimension names a categorical field used for cost breakdowns.
type Dimension string

const (
	ByResourceType Dimension = "resource_type"
	ByLocation     Dimension = "location"
	ByService      Dimension = "service"
	ByMeter        Dimension = "meter"
	ByMeterName    Dimension = "meter_name"
)

// Dimensions lists every breakdown dimension in presentation order.
var Dimensions = []Dimension{ByResourceType, ByLocation, ByService, ByMeter, ByMeterName}

// Summary holds the overall cost and usage totals for a record set.
type Summary struct {
	TotalCost              Money   `json:"total_cost"`
	TotalUsage             float64 `json:"total_usage"`
	ResourceCount          int     `json:"resource_count"`
	DataPoints             int     `json:"data_points"`
	AverageDailyCost       Money   `json:"average_daily_cost"`
	AverageCostPerResource Money   `json:"average_cost_per_resource"`
	UniqueResources        int     `json:"unique_resources"`
	UniqueLocations        int     `json:"unique_locations"`
	UniqueResourceTypes    int     `json:"unique_resource_types"`
	PeriodDays             int     `json:"period_days"`
}

// Bucket is one row of a dimensional breakdown.
type Bucket struct {
	Category      string  `json:"category"`
	Cost          Money   `json:"cost"`
	UsageQuantity float64 `json:"usage_quantity"`
	Percentage    Percent `json:"percentage"`
}

// TrendPoint is the cost attributed to a single day.
type TrendPoint struct {
	Date string `json:"date"`
	Cost Money  `json:"cost"`
}

// Trend is a daily cost series, oldest first. Synthetic is set when the series
// was approximated because the records carried no usable dates.
type Trend struct {
	Points    []TrendPoint `json:"trends"`
	Synthetic bool         `json:"synthetic"`
}

// Aggregates groups the totals, breakdowns and trend computed from one record set.
type Aggregates struct {
	Summary    Summary                `json:"summary"`
	Breakdowns map[Dimension][]Bucket `json:"breakdowns"`
	Trend      Trend                  `json:"trend"`
}

// RankedResource is a resource (all rows sharing a resource name) placed in a ranking.
type RankedResource struct {
	Name          string  `json:"name"`
	ResourceID    string  `json:"resource_id,omitempty"`
	ResourceType  string  `json:"resource_type"`
	Location      string  `json:"location"`
	MeterCategory string  `json:"meter_category"`
	Cost          Money   `json:"cost"`
	UsageQuantity float64 `json:"usage_quantity"`
	Percentage    Percent `json:"percentage"`
	CostPerUnit   Money   `json:"cost_per_unit"`
}

// Rankings are the derived resource orderings for one record set.
type Rankings struct {
	MostExpensive []RankedResource `json:"most_expensive"`
	MostUsed      []RankedResource `json:"most_used"`
	LeastUsed     []RankedResource `json:"least_used"`
}

// Bundle is the immutable snapshot of every computed view for one refresh
// generation. It is replaced, never mutated, by the next refresh.
type Bundle struct {
	Generation string    `json:"generation"`
	ComputedAt time.Time `json:"computed_at"`
	Source     string    `json:"source"`

	Aggregates
	Rankings

	Recommendations []Recommendation `json:"recommendations"`

	// Records is the normalized working set the views were derived from. Read only.
	Records []Record `json:"-"`
}

// Breakdown returns the buckets for dimension d.
func (b *Bundle) Breakdown(d Dimension) ([]Bucket, bool) {
	buckets, ok := b.Breakdowns[d]
	return buckets, ok
}

// TopExpensive returns at most limit entries of the most-expensive ranking.
func (b *Bundle) TopExpensive(limit int) []RankedResource { return prefix(b.MostExpensive, limit) }

// TopUsed returns at most limit entries of the most-used ranking.
func (b *Bundle) TopUsed(limit int) []RankedResource { return prefix(b.MostUsed, limit) }

// TopLeastUsed returns at most limit entries of the least-used ranking.
func (b *Bundle) TopLeastUsed(limit int) []RankedResource { return prefix(b.LeastUsed, limit) }

// prefix caps s at limit; limit <= 0 means no cap. The result cannot be appended
// into the bundle's backing array.
func prefix[T any](s []T, limit int) []T {
	if limit <= 0 || limit > len(s) {
		limit = len(s)
	}
	return s[:limit:limit]
}
