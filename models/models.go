package models

import (
	"encoding/json"
	"time"
)

// LatLng is a geographic point. Listings without one are not mappable.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Listing is the canonical flat listing record used by filtering and
// rendering. Nullable fields use pointers; nil means "unknown", which is
// distinct from zero everywhere in this service.
type Listing struct {
	ID            string  `json:"id"`
	FullAddress   string  `json:"full_address"`
	StreetAddress string  `json:"street_address"`
	Neighborhood  *string `json:"neighborhood"`
	Location      *LatLng `json:"location"`

	TotalUnits        *int `json:"total_units"`
	ResidentialUnits  *int `json:"residential_units"`
	VacantResidential *int `json:"vacant_residential"`
	CommercialUnits   *int `json:"commercial_units"`
	VacantCommercial  *int `json:"vacant_commercial"`

	TimeSentTz  *time.Time `json:"time_sent_tz"`
	AskingPrice *float64   `json:"asking_price"`

	Flagged     bool `json:"flagged"`
	IsVacantLot bool `json:"is_vacant_lot"`

	// UpdatedAt doubles as the optimistic concurrency token on writes.
	UpdatedAt time.Time `json:"updated_at"`

	// Joined from the latest inbound email, if any.
	LatestEmailSubject *string `json:"latest_email_subject,omitempty"`
	LatestEmailSender  *string `json:"latest_email_sender,omitempty"`

	// Details is nil until the encrypted payload has been decrypted for an
	// authorized request.
	Details *ListingDetails `json:"details,omitempty"`
}

// RawListing is the ingest-vintage listing shape. Nested objects vary by
// source generation: address may be a plain string or an object,
// financial data may live at the top level or inside details, numbers may
// arrive as strings with thousands separators, and -1 means "not provided".
// Only the normalizer is allowed to interpret these variants.
type RawListing struct {
	ID            string          `json:"id"`
	FullAddress   json.RawMessage `json:"full_address,omitempty"`
	Address       json.RawMessage `json:"address,omitempty"`
	Neighborhood  json.RawMessage `json:"neighborhood,omitempty"`
	Location      json.RawMessage `json:"location,omitempty"`
	TimeSentTz    *time.Time      `json:"time_sent_tz,omitempty"`
	AskingPrice   json.RawMessage `json:"asking_price,omitempty"`
	FinancialData json.RawMessage `json:"financial_data,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`

	TotalUnits        json.RawMessage `json:"total_units,omitempty"`
	ResidentialUnits  json.RawMessage `json:"residential_units,omitempty"`
	VacantResidential json.RawMessage `json:"vacant_residential,omitempty"`
	CommercialUnits   json.RawMessage `json:"commercial_units,omitempty"`
	VacantCommercial  json.RawMessage `json:"vacant_commercial,omitempty"`

	Flagged     *bool `json:"flagged,omitempty"`
	IsVacantLot *bool `json:"is_vacant_lot,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`

	LatestEmailSubject *string `json:"latest_email_subject,omitempty"`
	LatestEmailSender  *string `json:"latest_email_sender,omitempty"`
}

// ListingDetails is the sensitive payload stored encrypted at rest and only
// decrypted server side per authorized request.
type ListingDetails struct {
	PhoneNumber       *string         `json:"phone_number,omitempty"`
	SoftStoryRequired *bool           `json:"soft_story_required,omitempty"`
	SquareFootage     *float64        `json:"square_footage,omitempty"`
	ParkingSpaces     *int            `json:"parking_spaces,omitempty"`
	UnitMix           *string         `json:"unit_mix,omitempty"`
	SenderEmail       *string         `json:"sender_email,omitempty"`
	Financials        *FinancialData  `json:"financials,omitempty"`
	RentRoll          []RentRollEntry `json:"rent_roll,omitempty"`
}

// FinancialData carries the income/expense breakdown. A nil field means
// "not provided"; the -1 sentinel never survives normalization.
type FinancialData struct {
	MonthlyIncome      *float64 `json:"monthly_income,omitempty"`
	TotalRents         *float64 `json:"total_rents,omitempty"`
	OtherIncome        *float64 `json:"other_income,omitempty"`
	TotalMonthlyIncome *float64 `json:"total_monthly_income,omitempty"`
	TotalAnnualIncome  *float64 `json:"total_annual_income,omitempty"`
	AnnualExpenses     *float64 `json:"annual_expenses,omitempty"`
	NetOperatingIncome *float64 `json:"net_operating_income,omitempty"`
	PropertyTaxRate    *float64 `json:"property_tax_rate,omitempty"`
	PropertyTaxAmount  *float64 `json:"property_tax_amount,omitempty"`
	ManagementRate     *float64 `json:"management_rate,omitempty"`
	ManagementAmount   *float64 `json:"management_amount,omitempty"`
	Insurance          *float64 `json:"insurance,omitempty"`
	Utilities          *float64 `json:"utilities,omitempty"`
	Maintenance        *float64 `json:"maintenance,omitempty"`
	OtherExpenses      *float64 `json:"other_expenses,omitempty"`
}

// RentRollEntry is one unit's row in the rent roll.
type RentRollEntry struct {
	Unit       string   `json:"unit"`
	Rent       *float64 `json:"rent,omitempty"`
	TenantName *string  `json:"tenant_name,omitempty"`
}

// Email is an inbound notice email associated with a listing. Read-only from
// this service's perspective.
type Email struct {
	ID           string     `json:"id"`
	ListingID    string     `json:"listing_id"`
	Subject      string     `json:"subject"`
	FromAddress  string     `json:"from_address"`
	ReceivedDate *time.Time `json:"received_date"`
	RawText      string     `json:"raw_text,omitempty"`
	RawHTML      string     `json:"raw_html,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Attachment is a stored email attachment. Content is only ever served
// through time-limited signed URLs.
type Attachment struct {
	ID          string `json:"id"`
	EmailID     string `json:"email_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
	StoragePath string `json:"storage_path"`
	IsInline    bool   `json:"is_inline"`

	// FileSizeDisplay is derived for the detail view, never stored.
	FileSizeDisplay string `json:"file_size_display,omitempty"`
}

// EmailWithAttachments groups an email with its attachments for the detail
// view.
type EmailWithAttachments struct {
	Email       Email        `json:"email"`
	Attachments []Attachment `json:"attachments"`
}

// UnitBucket selects one of four disjoint total-unit ranges.
type UnitBucket int

const (
	UnitBucketNone UnitBucket = iota // no unit filter
	UnitBucket1To10
	UnitBucket11To25
	UnitBucket26To49
	UnitBucket50Plus
)

// FilterSpec is an immutable snapshot of the dashboard filter state.
type FilterSpec struct {
	Query         string          `json:"query"`
	Neighborhoods map[string]bool `json:"neighborhoods"` // empty or nil = all
	UnitBucket    UnitBucket      `json:"unit_bucket"`
	ShowActive    bool            `json:"show_active"`
	MinDaysLeft   int             `json:"min_days_left"` // meaningful only with ShowActive
	Flagged       bool            `json:"flagged"`
}

// UpdateListingRequest carries the editable listing fields as submitted by
// the editor form. Numeric fields arrive as strings and may contain
// thousands separators; empty string means "clear". ExpectedUpdatedAt is the
// concurrency token read with the listing.
type UpdateListingRequest struct {
	StreetAddress     string `json:"street_address"`
	Neighborhood      string `json:"neighborhood"`
	AskingPrice       string `json:"asking_price"`
	TotalUnits        string `json:"total_units"`
	ResidentialUnits  string `json:"residential_units"`
	VacantResidential string `json:"vacant_residential"`
	CommercialUnits   string `json:"commercial_units"`
	VacantCommercial  string `json:"vacant_commercial"`

	ExpectedUpdatedAt time.Time `json:"expected_updated_at"`
}

// ListingView decorates a listing with display-derived values. AutoPopulated
// marks which editable fields were extracted from the inbound email rather
// than typed in.
type ListingView struct {
	Listing            Listing         `json:"listing"`
	DaysRemaining      *int            `json:"days_remaining"`
	Status             string          `json:"status"`
	StatusLabel        string          `json:"status_label"`
	AskingPriceDisplay string          `json:"asking_price_display"`
	AutoPopulated      map[string]bool `json:"auto_populated"`
}

// ListingsResponse is the payload for the filtered listings endpoint.
type ListingsResponse struct {
	Listings []ListingView `json:"listings"`
	Count    int           `json:"count"`
}

// Neighborhood is one feature from the public geodata feed.
type Neighborhood struct {
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
}

// NeighborhoodsResponse lists the reference neighborhoods with polygons.
type NeighborhoodsResponse struct {
	Neighborhoods []Neighborhood `json:"neighborhoods"`
	Count         int            `json:"count"`
}

// GeocodeResponse is the address lookup result for the editor.
type GeocodeResponse struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Neighborhood string  `json:"neighborhood,omitempty"`
}

// SignedURLResponse wraps a time-limited attachment URL.
type SignedURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp,omitempty"`
	ConnectedClients int    `json:"connected_clients,omitempty"`
}

// BroadcastMessage is the envelope pushed to dashboard websocket clients.
type BroadcastMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// AccessLogEntry records a listing detail view.
type AccessLogEntry struct {
	UserID    string    `json:"user_id"`
	ListingID string    `json:"listing_id"`
	ViewedAt  time.Time `json:"viewed_at"`
}
