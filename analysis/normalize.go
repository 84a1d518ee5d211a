package analysis

import (
	"finops-usage/domain/usage"
	"strconv"
	"strings"
	"time"
)

// NormalizeStats counts what happened to the raw rows of one ingestion.
type NormalizeStats struct {
	Rows       int `json:"rows"`
	Kept       int `json:"kept"`
	Dropped    int `json:"dropped"`
	BadNumbers int `json:"bad_numbers"`
}

// Column aliases, keyed by canonical field. Header names are matched after
// lower-casing and removing spaces, underscores and dashes.
var columns = map[string][]string{
	"resource_id":    {"resourceid", "instanceid"},
	"resource_name":  {"resourcename"},
	"resource_type":  {"resourcetype", "consumedservice"},
	"location":       {"location", "resourcelocation", "region"},
	"meter_category": {"metercategory", "servicename"},
	"meter_name":     {"metername"},
	"quantity":       {"usagequantity", "quantity", "consumedquantity"},
	"unit_price":     {"unitprice", "effectiveprice", "resourcerate"},
	"cost":           {"cost", "pretaxcost", "costinbillingcurrency", "extendedcost"},
	"date":           {"date", "usagedate", "usagedatetime"},
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"20060102",
}

// Normalize converts raw export rows into usage records. Rows without a resource
// name or with an unknown location are dropped; unparsable numbers default to 0.
// Normalize never fails: a bad row only affects the returned stats.
func Normalize(rows []map[string]string) ([]usage.Record, NormalizeStats) {
	stats := NormalizeStats{Rows: len(rows)}
	records := make([]usage.Record, 0, len(rows))
	for _, raw := range rows {
		rec, bad := normalizeRow(raw)
		stats.BadNumbers += bad
		if !rec.Valid() {
			stats.Dropped++
			continue
		}
		records = append(records, rec)
	}
	stats.Kept = len(records)
	return records, stats
}

func normalizeRow(raw map[string]string) (usage.Record, int) {
	row := make(map[string]string, len(raw))
	for k, v := range raw {
		row[canonicalHeader(k)] = cleanValue(v)
	}
	get := func(field string) (string, bool) {
		for _, alias := range columns[field] {
			if v, ok := row[alias]; ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
	orUnknown := func(field string) string {
		if v, ok := get(field); ok {
			return v
		}
		return usage.UnknownValue
	}

	bad := 0
	number := func(field string) (float64, bool) {
		s, ok := get(field)
		if !ok {
			return 0, false
		}
		v, ok := parseAmount(s)
		if !ok {
			bad++
			return 0, false
		}
		return v, true
	}

	quantity, _ := number("quantity")
	price, _ := number("unit_price")
	supplied, hasCost := number("cost")

	rec := usage.Record{
		Location:      orUnknown("location"),
		MeterCategory: orUnknown("meter_category"),
		MeterName:     orUnknown("meter_name"),
		Quantity:      quantity,
		UnitPrice:     price,
		Cost:          usage.Money(usage.DeriveCost(quantity, price, supplied, hasCost)),
	}
	rec.ResourceID, _ = get("resource_id")
	rec.ResourceName, _ = get("resource_name")
	rec.ResourceType = orUnknown("resource_type")
	if rec.ResourceType == usage.UnknownValue && rec.MeterCategory != usage.UnknownValue {
		rec.ResourceType = rec.MeterCategory
	}
	if d, ok := get("date"); ok {
		rec.Date = d
		rec.Day = parseDay(d)
	}
	return rec, bad
}

func canonicalHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

func cleanValue(v string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(v), `"'`))
}

// parseAmount accepts plain and thousands-separated decimals with an optional
// currency symbol. Negative and non-finite values are rejected.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimLeft(s, "$€£")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !usage.Finite(v) || v < 0 {
		return 0, false
	}
	return v, true
}

func parseDay(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}
