package usage

// Severity ranks how urgent a recommendation is.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// Rank orders severities High < Medium < Low; unknown values sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// Detail is one key/value entry attached to a recommendation.
type Detail map[string]any

// Recommendation is a heuristic cost-optimization suggestion with an estimated monthly saving.
type Recommendation struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Severity         Severity `json:"severity"`
	EstimatedSavings Money    `json:"estimated_savings"`
	Details          []Detail `json:"details"`
}
