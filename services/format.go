package services

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"

	"copa-dashboard/models"
)

// FormatCurrency renders a whole-dollar amount with thousands grouping.
// Absent and zero amounts both render as "N/A", matching the dashboard
// cards where a zero price means the form field was never filled in.
func FormatCurrency(amount *float64) string {
	if amount == nil || *amount == 0 {
		return "N/A"
	}
	return "$" + humanize.Comma(int64(*amount+0.5))
}

// FormatPercent renders a rate as a percentage string.
func FormatPercent(rate *float64) string {
	if rate == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*rate, 'f', -1, 64) + "%"
}

// FormatFileSize renders an attachment size for the source-materials pane.
func FormatFileSize(bytes int64) string {
	switch {
	case bytes <= 0:
		return "Unknown size"
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}

// FinancialDisplay renders a financial breakdown for the details pane. Money
// fields go through FormatCurrency, rates through FormatPercent.
func FinancialDisplay(fin *models.FinancialData) map[string]string {
	if fin == nil {
		return nil
	}
	return map[string]string{
		"monthly_income":       FormatCurrency(fin.MonthlyIncome),
		"total_rents":          FormatCurrency(fin.TotalRents),
		"other_income":         FormatCurrency(fin.OtherIncome),
		"total_monthly_income": FormatCurrency(fin.TotalMonthlyIncome),
		"total_annual_income":  FormatCurrency(fin.TotalAnnualIncome),
		"annual_expenses":      FormatCurrency(fin.AnnualExpenses),
		"net_operating_income": FormatCurrency(fin.NetOperatingIncome),
		"property_tax_rate":    FormatPercent(fin.PropertyTaxRate),
		"property_tax_amount":  FormatCurrency(fin.PropertyTaxAmount),
		"management_rate":      FormatPercent(fin.ManagementRate),
		"management_amount":    FormatCurrency(fin.ManagementAmount),
		"insurance":            FormatCurrency(fin.Insurance),
		"utilities":            FormatCurrency(fin.Utilities),
		"maintenance":          FormatCurrency(fin.Maintenance),
		"other_expenses":       FormatCurrency(fin.OtherExpenses),
	}
}

// GroupEmailAttachments pairs each email with its attachments for the
// source-materials pane, preserving email order and decorating every
// attachment with its display size.
func GroupEmailAttachments(emails []models.Email, attachments []models.Attachment) []models.EmailWithAttachments {
	byEmail := make(map[string][]models.Attachment)
	for _, att := range attachments {
		att.FileSizeDisplay = FormatFileSize(att.FileSize)
		byEmail[att.EmailID] = append(byEmail[att.EmailID], att)
	}

	grouped := make([]models.EmailWithAttachments, 0, len(emails))
	for _, email := range emails {
		grouped = append(grouped, models.EmailWithAttachments{
			Email:       email,
			Attachments: byEmail[email.ID],
		})
	}
	return grouped
}

// IsAutoPopulated reports whether an editable field already had a value in
// the source record before any user edits, i.e. it was extracted from an
// inbound email rather than typed in. Display provenance only, not a
// validation rule.
func IsAutoPopulated(fieldName string, source models.Listing) bool {
	switch fieldName {
	case "street_address":
		return source.StreetAddress != ""
	case "neighborhood":
		return source.Neighborhood != nil
	case "asking_price":
		return source.AskingPrice != nil
	case "total_units":
		return source.TotalUnits != nil
	case "residential_units":
		return source.ResidentialUnits != nil
	case "vacant_residential":
		return source.VacantResidential != nil
	case "commercial_units":
		return source.CommercialUnits != nil
	case "vacant_commercial":
		return source.VacantCommercial != nil
	default:
		return false
	}
}

// editableFields are the form fields whose provenance the dashboard shows.
var editableFields = []string{
	"street_address", "neighborhood", "asking_price", "total_units",
	"residential_units", "vacant_residential", "commercial_units",
	"vacant_commercial",
}

// AutoPopulatedFields reports the provenance of every editable field at once.
func AutoPopulatedFields(source models.Listing) map[string]bool {
	fields := make(map[string]bool, len(editableFields))
	for _, name := range editableFields {
		fields[name] = IsAutoPopulated(name, source)
	}
	return fields
}
