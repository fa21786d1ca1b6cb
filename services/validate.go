package services

import (
	"strings"

	"copa-dashboard/models"
)

// ValidateListingUpdate checks an editor submission and returns field-scoped
// error messages, keyed by field name. An empty map means the update may be
// saved. Numeric fields are validated after thousands-separator stripping;
// they are never silently coerced.
func ValidateListingUpdate(req models.UpdateListingRequest) map[string]string {
	errs := map[string]string{}

	if strings.TrimSpace(req.StreetAddress) == "" {
		errs["street_address"] = "Address is required"
	}

	numericFields := []struct {
		name  string
		value string
	}{
		{"asking_price", req.AskingPrice},
		{"total_units", req.TotalUnits},
		{"residential_units", req.ResidentialUnits},
		{"vacant_residential", req.VacantResidential},
		{"commercial_units", req.CommercialUnits},
		{"vacant_commercial", req.VacantCommercial},
	}
	for _, f := range numericFields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		n, ok := ParseSeparatedNumber(f.value)
		if !ok {
			errs[f.name] = "Must be a number"
			continue
		}
		if n < 0 {
			errs[f.name] = "Must be positive"
		}
	}

	// Cross-field rule: residential + commercial must fit in the total.
	// Only checked when all three parse; the error attaches to total_units.
	total, okTotal := ParseSeparatedNumber(req.TotalUnits)
	residential, okRes := ParseSeparatedNumber(req.ResidentialUnits)
	commercial, okCom := ParseSeparatedNumber(req.CommercialUnits)
	if okTotal && okRes && okCom && residential+commercial > total {
		if _, exists := errs["total_units"]; !exists {
			errs["total_units"] = "Total units must be >= residential + commercial"
		}
	}

	return errs
}
