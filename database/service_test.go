package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"copa-dashboard/models"
	"copa-dashboard/utils/encryption"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
)

var (
	svc  *ListingService
	mock sqlmock.Sqlmock
)

const testKey = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func setUp() {
	var db *sql.DB
	db, mock, _ = sqlmock.New()
	enc, _ := encryption.NewEncryptor(testKey)
	svc = NewListingService(db, enc)
}

func tearDown() {
	svc.db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

var listingTestColumns = []string{
	"id", "full_address", "street_address", "neighborhood",
	"lat", "lng",
	"total_units", "residential_units", "vacant_residential",
	"commercial_units", "vacant_commercial",
	"time_sent_tz", "asking_price", "flagged", "is_vacant_lot", "updated_at",
	"subject", "from_address",
}

func TestListListings(t *testing.T) {
	it(func() {
		sentAt := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
		updatedAt := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(listingTestColumns).
			AddRow("lst-1", "123 Main St, San Francisco, CA 94110", "123 Main St", "Mission",
				37.75, -122.41,
				12, 10, 2, 2, 0,
				sentAt, 2500000.0, false, false, updatedAt,
				"COPA Notice: 123 Main St", "agent@example.com").
			AddRow("lst-2", "500 Oak St, San Francisco, CA 94102", "500 Oak St", nil,
				nil, nil,
				-1, nil, nil, nil, nil,
				nil, -1.0, true, false, updatedAt,
				nil, nil)

		mock.ExpectQuery("SELECT (.+) FROM copa_listings l LEFT JOIN emails e (.+) ORDER BY l.time_sent_tz DESC").
			WillReturnRows(rows)

		listings, err := svc.ListListings(context.Background())
		if err != nil {
			t.Fatalf("ListListings: unexpected error: %v", err)
		}
		if len(listings) != 2 {
			t.Fatalf("ListListings: expected 2 listings, got %d", len(listings))
		}

		first := listings[0]
		if first.Neighborhood == nil || *first.Neighborhood != "Mission" {
			t.Errorf("expected neighborhood Mission, got %v", first.Neighborhood)
		}
		if first.Location == nil || first.Location.Lat != 37.75 {
			t.Errorf("expected location lat 37.75, got %v", first.Location)
		}
		if first.TotalUnits == nil || *first.TotalUnits != 12 {
			t.Errorf("expected 12 total units, got %v", first.TotalUnits)
		}
		if first.LatestEmailSubject == nil || *first.LatestEmailSubject != "COPA Notice: 123 Main St" {
			t.Errorf("expected latest email subject, got %v", first.LatestEmailSubject)
		}

		// Sentinels and NULLs from legacy rows all come back as nil.
		second := listings[1]
		if second.TotalUnits != nil {
			t.Errorf("expected -1 total units to scan as nil, got %d", *second.TotalUnits)
		}
		if second.AskingPrice != nil {
			t.Errorf("expected -1 asking price to scan as nil, got %f", *second.AskingPrice)
		}
		if second.TimeSentTz != nil || second.Location != nil || second.Neighborhood != nil {
			t.Errorf("expected NULL columns to scan as nil pointers")
		}
		if !second.Flagged {
			t.Errorf("expected second listing to be flagged")
		}
	})
}

func TestGetListingNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT (.+) FROM copa_listings l (.+) WHERE l.id = (.+)").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(listingTestColumns))

		_, err := svc.GetListing(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetListing: expected ErrNotFound, got %v", err)
		}
	})
}

func TestUpdateListing(t *testing.T) {
	it(func() {
		token := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
		req := models.UpdateListingRequest{
			StreetAddress:     "123 Main St",
			Neighborhood:      "Mission",
			AskingPrice:       "2,500,000",
			TotalUnits:        "12",
			ResidentialUnits:  "10",
			VacantResidential: "2",
			CommercialUnits:   "2",
			VacantCommercial:  "",
			ExpectedUpdatedAt: token,
		}

		testCases := []struct {
			name         string
			rowsAffected int64
			exists       bool
			expectedErr  error
		}{
			{
				name:         "Successful update",
				rowsAffected: 1,
			},
			{
				name:         "Stale token",
				rowsAffected: 0,
				exists:       true,
				expectedErr:  ErrConflict,
			},
			{
				name:         "Listing deleted",
				rowsAffected: 0,
				exists:       false,
				expectedErr:  ErrNotFound,
			},
		}

		for _, testCase := range testCases {
			mock.ExpectExec("UPDATE copa_listings SET (.+) WHERE id = (.+) AND updated_at = (.+)").
				WithArgs("123 Main St", "Mission", 2500000.0, 12.0, 10.0, 2.0, 2.0, nil,
					"lst-1", token).
				WillReturnResult(sqlmock.NewResult(0, testCase.rowsAffected))

			if testCase.rowsAffected == 0 {
				mock.ExpectQuery("SELECT EXISTS").WithArgs("lst-1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(testCase.exists))
			} else {
				refreshed := time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)
				mock.ExpectQuery("SELECT (.+) FROM copa_listings l (.+) WHERE l.id = (.+)").
					WithArgs("lst-1").
					WillReturnRows(sqlmock.NewRows(listingTestColumns).
						AddRow("lst-1", "123 Main St, San Francisco, CA 94110", "123 Main St", "Mission",
							37.75, -122.41,
							12, 10, 2, 2, nil,
							token, 2500000.0, false, false, refreshed,
							nil, nil))
			}

			updated, err := svc.UpdateListing(context.Background(), "lst-1", req)
			if !errors.Is(err, testCase.expectedErr) {
				t.Errorf("%s, UpdateListing: expected error %v, got %v", testCase.name, testCase.expectedErr, err)
			}
			if testCase.expectedErr == nil && updated.UpdatedAt.Equal(token) {
				t.Errorf("%s, UpdateListing: expected a refreshed concurrency token", testCase.name)
			}
		}
	})
}

func TestUpsertListing(t *testing.T) {
	it(func() {
		sentAt := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
		neighborhood := "Mission"
		price := 2500000.0
		total := 12
		listing := models.Listing{
			ID:            "lst-9",
			FullAddress:   "700 Folsom St, San Francisco, CA 94107",
			StreetAddress: "700 Folsom St",
			Neighborhood:  &neighborhood,
			Location:      &models.LatLng{Lat: 37.78, Lng: -122.40},
			TotalUnits:    &total,
			TimeSentTz:    &sentAt,
			AskingPrice:   &price,
		}

		mock.ExpectExec("INSERT INTO copa_listings (.+) ON DUPLICATE KEY UPDATE").
			WithArgs("lst-9", listing.FullAddress, "700 Folsom St", "Mission",
				37.78, -122.40,
				12, nil, nil, nil, nil,
				sentAt, 2500000.0, false, false, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		details := json.RawMessage(`{"phone_number":"415-555-0100"}`)
		if err := svc.UpsertListing(context.Background(), listing, details); err != nil {
			t.Fatalf("UpsertListing: unexpected error: %v", err)
		}

		// Without a details payload the encrypted column binds NULL and the
		// COALESCE keeps whatever is already stored.
		mock.ExpectExec("INSERT INTO copa_listings (.+) ON DUPLICATE KEY UPDATE").
			WithArgs("lst-9", listing.FullAddress, "700 Folsom St", "Mission",
				37.78, -122.40,
				12, nil, nil, nil, nil,
				sentAt, 2500000.0, false, false, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := svc.UpsertListing(context.Background(), listing, nil); err != nil {
			t.Fatalf("UpsertListing: unexpected error: %v", err)
		}
	})
}

func TestDecryptedDetails(t *testing.T) {
	it(func() {
		payload := `{"financials":{"total_annual_income":"450,000"},"sender_email":"seller@example.com"}`
		ciphertext, err := mustEncrypt(payload)
		if err != nil {
			t.Fatalf("encrypt fixture: %v", err)
		}

		testCases := []struct {
			name      string
			encrypted any

			expectDetails bool
			errorExpected bool
		}{
			{
				name:          "Encrypted details present",
				encrypted:     ciphertext,
				expectDetails: true,
			},
			{
				name:      "No details stored",
				encrypted: nil,
			},
			{
				name:          "Corrupt ciphertext",
				encrypted:     "bm90LXJlYWwtY2lwaGVydGV4dA==",
				errorExpected: true,
			},
		}

		for _, testCase := range testCases {
			mock.ExpectQuery("SELECT details_encrypted FROM copa_listings WHERE id = (.+)").
				WithArgs("lst-1").
				WillReturnRows(sqlmock.NewRows([]string{"details_encrypted"}).AddRow(testCase.encrypted))

			details, err := svc.DecryptedDetails(context.Background(), "lst-1")
			if testCase.errorExpected != (err != nil) {
				t.Errorf("%s, DecryptedDetails: expected error: %v, got: %v", testCase.name, testCase.errorExpected, err)
				continue
			}
			if testCase.expectDetails {
				if details == nil || details.Financials == nil {
					t.Errorf("%s, DecryptedDetails: expected financials, got %+v", testCase.name, details)
				} else if details.Financials.TotalAnnualIncome == nil || *details.Financials.TotalAnnualIncome != 450000 {
					t.Errorf("%s, DecryptedDetails: expected annual income 450000, got %v", testCase.name, details.Financials.TotalAnnualIncome)
				}
			} else if details != nil {
				t.Errorf("%s, DecryptedDetails: expected nil details, got %+v", testCase.name, details)
			}
		}
	})
}

func TestListAttachments(t *testing.T) {
	it(func() {
		attachments, err := svc.ListAttachments(context.Background(), nil)
		if err != nil {
			t.Fatalf("ListAttachments with no ids: unexpected error: %v", err)
		}
		if len(attachments) != 0 {
			t.Errorf("ListAttachments with no ids: expected empty result")
		}

		rows := sqlmock.NewRows([]string{"id", "email_id", "filename", "content_type", "file_size", "storage_path", "is_inline"}).
			AddRow("att-1", "em-1", "disclosure.pdf", "application/pdf", 204800, "em-1/disclosure.pdf", false).
			AddRow("att-2", "em-2", "logo.png", "image/png", nil, nil, true)

		mock.ExpectQuery("SELECT (.+) FROM email_attachments WHERE email_id IN").
			WithArgs("em-1", "em-2").
			WillReturnRows(rows)

		attachments, err = svc.ListAttachments(context.Background(), []string{"em-1", "em-2"})
		if err != nil {
			t.Fatalf("ListAttachments: unexpected error: %v", err)
		}
		if len(attachments) != 2 {
			t.Fatalf("ListAttachments: expected 2 attachments, got %d", len(attachments))
		}
		if attachments[0].Filename != "disclosure.pdf" || attachments[0].FileSize != 204800 {
			t.Errorf("ListAttachments: unexpected first attachment: %+v", attachments[0])
		}
		if !attachments[1].IsInline {
			t.Errorf("ListAttachments: expected second attachment to be inline")
		}
	})
}

func TestReplaceNeighborhoods(t *testing.T) {
	it(func() {
		names := []string{"Mission", "Noe Valley"}

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM sf_neighborhoods").
			WillReturnResult(sqlmock.NewResult(0, 3))
		for _, name := range names {
			mock.ExpectExec("INSERT INTO sf_neighborhoods").WithArgs(name).
				WillReturnResult(sqlmock.NewResult(1, 1))
		}
		mock.ExpectCommit()

		if err := svc.ReplaceNeighborhoods(context.Background(), names); err != nil {
			t.Errorf("ReplaceNeighborhoods: unexpected error: %v", err)
		}

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM sf_neighborhoods").
			WillReturnError(fmt.Errorf("test delete error"))
		mock.ExpectRollback()

		if err := svc.ReplaceNeighborhoods(context.Background(), names); err == nil {
			t.Errorf("ReplaceNeighborhoods: expected error on failed delete")
		}
	})
}

func mustEncrypt(payload string) (string, error) {
	enc, err := encryption.NewEncryptor(testKey)
	if err != nil {
		return "", err
	}
	return enc.Encrypt([]byte(payload))
}
