package services

import (
	"encoding/json"
	"strconv"
	"strings"

	"copa-dashboard/models"
)

// Normalize maps a raw stored listing onto the canonical flat shape. Source
// vintages disagree on nesting (address as string vs object, financial data
// at the top level vs inside details) and on number encoding (strings with
// thousands separators, -1 meaning "not provided"). This function is the
// only place those variants are interpreted; everything downstream sees one
// shape. Normalizing an already-normalized record is a no-op.
func Normalize(raw models.RawListing) models.Listing {
	l := models.Listing{
		ID:                 raw.ID,
		TimeSentTz:         raw.TimeSentTz,
		UpdatedAt:          raw.UpdatedAt,
		LatestEmailSubject: raw.LatestEmailSubject,
		LatestEmailSender:  raw.LatestEmailSender,
	}

	l.FullAddress, l.StreetAddress = normalizeAddress(raw.FullAddress, raw.Address)
	l.Neighborhood = parseOptionalString(raw.Neighborhood)
	l.Location = parseLocation(raw.Location)

	l.AskingPrice = parseAmount(raw.AskingPrice)
	l.TotalUnits = parseCount(raw.TotalUnits)
	l.ResidentialUnits = parseCount(raw.ResidentialUnits)
	l.VacantResidential = parseCount(raw.VacantResidential)
	l.CommercialUnits = parseCount(raw.CommercialUnits)
	l.VacantCommercial = parseCount(raw.VacantCommercial)

	if raw.Flagged != nil {
		l.Flagged = *raw.Flagged
	}
	if raw.IsVacantLot != nil {
		l.IsVacantLot = *raw.IsVacantLot
	}

	if l.AskingPrice == nil {
		// Older imports only carried the asking price inside the
		// financial_data object.
		l.AskingPrice = extractAskingPrice(raw.FinancialData)
	}

	return l
}

// NormalizeDetails parses a decrypted details payload into the canonical
// details shape, tolerating flattened or nested financial fields.
func NormalizeDetails(raw json.RawMessage) *models.ListingDetails {
	fields := decodeObject(raw)
	if fields == nil {
		return nil
	}

	d := &models.ListingDetails{
		PhoneNumber:       stringField(fields, "phone_number"),
		SoftStoryRequired: boolField(fields, "soft_story_required"),
		SquareFootage:     amountField(fields, "square_footage"),
		ParkingSpaces:     countField(fields, "parking_spaces"),
		UnitMix:           stringField(fields, "unit_mix"),
		SenderEmail:       stringField(fields, "sender_email"),
	}

	// Sender address moved under details.source in newer imports.
	if d.SenderEmail == nil {
		if source, ok := fields["source"].(map[string]interface{}); ok {
			d.SenderEmail = stringField(source, "email_address")
		}
	}

	// Financials: nested under "financials" or "financial_data", or
	// flattened directly into the details object.
	var finFields map[string]interface{}
	if nested, ok := fields["financials"].(map[string]interface{}); ok {
		finFields = nested
	} else if nested, ok := fields["financial_data"].(map[string]interface{}); ok {
		finFields = nested
	} else {
		finFields = fields
	}
	d.Financials = financialsFrom(finFields)

	if entries, ok := fields["rent_roll"].([]interface{}); ok {
		d.RentRoll = rentRollFrom(entries)
	}

	return d
}

func financialsFrom(fields map[string]interface{}) *models.FinancialData {
	fin := &models.FinancialData{
		MonthlyIncome:      amountField(fields, "monthly_income"),
		TotalRents:         amountField(fields, "total_rents"),
		OtherIncome:        amountField(fields, "other_income"),
		TotalMonthlyIncome: amountField(fields, "total_monthly_income"),
		TotalAnnualIncome:  amountField(fields, "total_annual_income"),
		AnnualExpenses:     amountField(fields, "annual_expenses"),
		NetOperatingIncome: amountField(fields, "net_operating_income"),
		PropertyTaxRate:    amountField(fields, "property_tax_rate"),
		PropertyTaxAmount:  amountField(fields, "property_tax_amount"),
		ManagementRate:     amountField(fields, "management_rate"),
		ManagementAmount:   amountField(fields, "management_amount"),
		Insurance:          amountField(fields, "insurance"),
		Utilities:          amountField(fields, "utilities"),
		Maintenance:        amountField(fields, "maintenance"),
		OtherExpenses:      amountField(fields, "other_expenses"),
	}
	if *fin == (models.FinancialData{}) {
		return nil
	}
	return fin
}

func rentRollFrom(entries []interface{}) []models.RentRollEntry {
	roll := make([]models.RentRollEntry, 0, len(entries))
	for _, e := range entries {
		fields, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		entry := models.RentRollEntry{
			Rent:       amountField(fields, "rent"),
			TenantName: stringField(fields, "tenant_name"),
		}
		if unit := stringField(fields, "unit"); unit != nil {
			entry.Unit = *unit
		}
		roll = append(roll, entry)
	}
	if len(roll) == 0 {
		return nil
	}
	return roll
}

// normalizeAddress resolves the address variants: a top-level full_address
// string, an address object with street_address/full_address members, or an
// address that is itself a plain JSON string.
func normalizeAddress(fullAddress, address json.RawMessage) (full string, street string) {
	if s := parseOptionalString(fullAddress); s != nil {
		full = *s
	}

	if len(address) > 0 {
		var obj struct {
			StreetAddress string `json:"street_address"`
			FullAddress   string `json:"full_address"`
		}
		if err := json.Unmarshal(address, &obj); err == nil {
			street = strings.TrimSpace(obj.StreetAddress)
			if full == "" {
				full = strings.TrimSpace(obj.FullAddress)
			}
		} else if s := parseOptionalString(address); s != nil {
			// Oldest vintage: address was a single string.
			if full == "" {
				full = *s
			}
		}
	}

	if street == "" && full != "" {
		// Street portion is everything before the first comma.
		street = strings.TrimSpace(strings.SplitN(full, ",", 2)[0])
	}
	if full == "" && street != "" {
		full = street
	}
	return full, street
}

// parseLocation accepts either a GeoJSON point ({"type":"Point",
// "coordinates":[lng,lat]}) or a flat {lat,lng} object.
func parseLocation(raw json.RawMessage) *models.LatLng {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var geo struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &geo); err == nil && geo.Type == "Point" && len(geo.Coordinates) == 2 {
		return &models.LatLng{Lat: geo.Coordinates[1], Lng: geo.Coordinates[0]}
	}

	// Presence of both keys decides, not their values: {"lat":0,"lng":0} is
	// a degenerate point, not a missing one.
	var flat struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(raw, &flat); err == nil && flat.Lat != nil && flat.Lng != nil {
		return &models.LatLng{Lat: *flat.Lat, Lng: *flat.Lng}
	}
	return nil
}

func decodeObject(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

func parseOptionalString(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// parseAmount parses a money or rate value that may be a JSON number or a
// string with currency symbols and thousands separators. The -1 sentinel
// and unparseable values map to nil.
func parseAmount(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return SanitizeAmount(n)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	n, ok := ParseSeparatedNumber(s)
	if !ok {
		return nil
	}
	return SanitizeAmount(n)
}

func parseCount(raw json.RawMessage) *int {
	amount := parseAmount(raw)
	if amount == nil {
		return nil
	}
	n := int(*amount)
	return &n
}

// SanitizeAmount maps the legacy -1 "not provided" sentinel to nil. Every
// layer that touches stored numbers routes through here or SanitizeCount so
// the sentinel rule has exactly one home.
func SanitizeAmount(n float64) *float64 {
	if n == -1 {
		return nil
	}
	return &n
}

// SanitizeCount is SanitizeAmount for unit counts, where any negative value
// means "not provided".
func SanitizeCount(n int64) *int {
	if n < 0 {
		return nil
	}
	v := int(n)
	return &v
}

// ParseSeparatedNumber parses a numeric string after stripping currency
// symbols, thousands separators, and surrounding whitespace.
func ParseSeparatedNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func stringField(fields map[string]interface{}, key string) *string {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func boolField(fields map[string]interface{}, key string) *bool {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

func amountField(fields map[string]interface{}, key string) *float64 {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return SanitizeAmount(n)
	case string:
		parsed, ok := ParseSeparatedNumber(n)
		if !ok {
			return nil
		}
		return SanitizeAmount(parsed)
	default:
		return nil
	}
}

func countField(fields map[string]interface{}, key string) *int {
	amount := amountField(fields, key)
	if amount == nil {
		return nil
	}
	n := int(*amount)
	return &n
}

func extractAskingPrice(financialData json.RawMessage) *float64 {
	fields := decodeObject(financialData)
	if fields == nil {
		return nil
	}
	return amountField(fields, "asking_price")
}
