package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"copa-dashboard/models"
	"copa-dashboard/services"
	"copa-dashboard/utils/encryption"

	"github.com/apex/log"
)

var (
	// ErrNotFound means the listing id does not exist.
	ErrNotFound = errors.New("listing not found")
	// ErrConflict means the update token was stale: someone else saved the
	// listing after the caller last read it. Callers must reload, not retry.
	ErrConflict = errors.New("listing was modified by another user")
)

// ListingService handles all listing-related database operations. Listings
// arrive through the ingestion endpoint already normalized; this service
// never interprets raw payload shapes itself.
type ListingService struct {
	db        *sql.DB
	encryptor *encryption.Encryptor
}

// NewListingService creates a new listing service instance
func NewListingService(db *sql.DB, encryptor *encryption.Encryptor) *ListingService {
	return &ListingService{db: db, encryptor: encryptor}
}

const listingColumns = `l.id, l.full_address, l.street_address, l.neighborhood,
	l.lat, l.lng,
	l.total_units, l.residential_units, l.vacant_residential,
	l.commercial_units, l.vacant_commercial,
	l.time_sent_tz, l.asking_price, l.flagged, l.is_vacant_lot, l.updated_at`

// ListListings returns every listing joined with the subject and sender of
// its most recent email, ordered by notice sent time descending. That order
// is established here and preserved through filtering.
func (s *ListingService) ListListings(ctx context.Context) ([]models.Listing, error) {
	query := fmt.Sprintf(`SELECT %s, e.subject, e.from_address
		FROM copa_listings l
		LEFT JOIN emails e ON e.id = (
			SELECT e2.id FROM emails e2
			WHERE e2.listing_id = l.id
			ORDER BY e2.created_at DESC
			LIMIT 1
		)
		ORDER BY l.time_sent_tz DESC`, listingColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

// GetListing returns a single listing by id.
func (s *ListingService) GetListing(ctx context.Context, id string) (models.Listing, error) {
	query := fmt.Sprintf(`SELECT %s, e.subject, e.from_address
		FROM copa_listings l
		LEFT JOIN emails e ON e.id = (
			SELECT e2.id FROM emails e2
			WHERE e2.listing_id = l.id
			ORDER BY e2.created_at DESC
			LIMIT 1
		)
		WHERE l.id = ?`, listingColumns)

	row := s.db.QueryRowContext(ctx, query, id)
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Listing{}, ErrNotFound
		}
		return models.Listing{}, fmt.Errorf("failed to query listing: %w", err)
	}
	return listing, nil
}

// UpsertListing inserts or refreshes a listing from the ingestion pipeline.
// The caller passes a normalized listing; the details payload is encrypted
// before it touches the database. An ingest without details keeps whatever
// details the listing already had.
func (s *ListingService) UpsertListing(ctx context.Context, l models.Listing, details json.RawMessage) error {
	var encrypted any
	if len(details) > 0 && string(details) != "null" {
		ciphertext, err := s.encryptor.Encrypt(details)
		if err != nil {
			return fmt.Errorf("failed to encrypt listing details: %w", err)
		}
		encrypted = ciphertext
	}

	var lat, lng any
	if l.Location != nil {
		lat, lng = l.Location.Lat, l.Location.Lng
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO copa_listings
			(id, full_address, street_address, neighborhood, lat, lng,
			total_units, residential_units, vacant_residential,
			commercial_units, vacant_commercial,
			time_sent_tz, asking_price, flagged, is_vacant_lot, details_encrypted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			full_address = VALUES(full_address),
			street_address = VALUES(street_address),
			neighborhood = VALUES(neighborhood),
			lat = VALUES(lat),
			lng = VALUES(lng),
			total_units = VALUES(total_units),
			residential_units = VALUES(residential_units),
			vacant_residential = VALUES(vacant_residential),
			commercial_units = VALUES(commercial_units),
			vacant_commercial = VALUES(vacant_commercial),
			time_sent_tz = VALUES(time_sent_tz),
			asking_price = VALUES(asking_price),
			flagged = VALUES(flagged),
			is_vacant_lot = VALUES(is_vacant_lot),
			details_encrypted = COALESCE(VALUES(details_encrypted), details_encrypted)`,
		l.ID, l.FullAddress, l.StreetAddress, l.Neighborhood, lat, lng,
		l.TotalUnits, l.ResidentialUnits, l.VacantResidential,
		l.CommercialUnits, l.VacantCommercial,
		l.TimeSentTz, l.AskingPrice, l.Flagged, l.IsVacantLot, encrypted)
	if err != nil {
		return fmt.Errorf("failed to upsert listing: %w", err)
	}
	return nil
}

// UpdateListing applies an editor submission to a listing. The write only
// lands when the stored updated_at still matches the token the caller read;
// a stale token yields ErrConflict. The refreshed listing is returned on
// success.
func (s *ListingService) UpdateListing(ctx context.Context, id string, req models.UpdateListingRequest) (models.Listing, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE copa_listings
		SET street_address = ?, neighborhood = ?,
			asking_price = ?, total_units = ?, residential_units = ?,
			vacant_residential = ?, commercial_units = ?, vacant_commercial = ?
		WHERE id = ? AND updated_at = ?`,
		strings.TrimSpace(req.StreetAddress),
		nullableString(req.Neighborhood),
		nullableNumber(req.AskingPrice),
		nullableNumber(req.TotalUnits),
		nullableNumber(req.ResidentialUnits),
		nullableNumber(req.VacantResidential),
		nullableNumber(req.CommercialUnits),
		nullableNumber(req.VacantCommercial),
		id, req.ExpectedUpdatedAt)
	if err != nil {
		return models.Listing{}, fmt.Errorf("failed to update listing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return models.Listing{}, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either the listing is gone or someone saved it first. The store
		// is the sole arbiter; the client never merges.
		var exists bool
		err := s.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM copa_listings WHERE id = ?)", id).Scan(&exists)
		if err != nil {
			return models.Listing{}, fmt.Errorf("failed to check listing existence: %w", err)
		}
		if !exists {
			return models.Listing{}, ErrNotFound
		}
		return models.Listing{}, ErrConflict
	}

	return s.GetListing(ctx, id)
}

// DecryptedDetails opens the encrypted details payload for a listing. A
// listing without one returns nil without error so the detail view can show
// the non-sensitive fields either way.
func (s *ListingService) DecryptedDetails(ctx context.Context, id string) (*models.ListingDetails, error) {
	var encrypted sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT details_encrypted FROM copa_listings WHERE id = ?", id).Scan(&encrypted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query listing details: %w", err)
	}

	if !encrypted.Valid || encrypted.String == "" {
		return nil, nil
	}

	plaintext, err := s.encryptor.Decrypt(encrypted.String)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt listing details: %w", err)
	}

	return services.NormalizeDetails(plaintext), nil
}

// ListEmails returns the inbound emails for a listing, newest first.
func (s *ListingService) ListEmails(ctx context.Context, listingID string) ([]models.Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, subject, from_address, received_date, raw_text, raw_html, created_at
		FROM emails
		WHERE listing_id = ?
		ORDER BY created_at DESC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()

	emails := []models.Email{}
	for rows.Next() {
		var (
			email        models.Email
			receivedDate sql.NullTime
			rawText      sql.NullString
			rawHTML      sql.NullString
		)
		if err := rows.Scan(&email.ID, &email.ListingID, &email.Subject, &email.FromAddress,
			&receivedDate, &rawText, &rawHTML, &email.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		if receivedDate.Valid {
			email.ReceivedDate = &receivedDate.Time
		}
		email.RawText = rawText.String
		email.RawHTML = rawHTML.String
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// ListAttachments returns the attachments for a set of emails.
func (s *ListingService) ListAttachments(ctx context.Context, emailIDs []string) ([]models.Attachment, error) {
	if len(emailIDs) == 0 {
		return []models.Attachment{}, nil
	}

	placeholders := make([]string, len(emailIDs))
	params := make([]any, len(emailIDs))
	for i, id := range emailIDs {
		placeholders[i] = "?"
		params[i] = id
	}

	query := fmt.Sprintf(`SELECT id, email_id, filename, content_type, file_size, storage_path, is_inline
		FROM email_attachments
		WHERE email_id IN(%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	attachments := []models.Attachment{}
	for rows.Next() {
		var (
			att         models.Attachment
			fileSize    sql.NullInt64
			storagePath sql.NullString
		)
		if err := rows.Scan(&att.ID, &att.EmailID, &att.Filename, &att.ContentType,
			&fileSize, &storagePath, &att.IsInline); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		att.FileSize = fileSize.Int64
		att.StoragePath = storagePath.String
		attachments = append(attachments, att)
	}
	return attachments, rows.Err()
}

// LogAccess records a listing detail view. Best effort: it runs in the
// background and failures are logged, never surfaced.
func (s *ListingService) LogAccess(userID, listingID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO listing_access_log (user_id, listing_id) VALUES (?, ?)",
			userID, listingID)
		if err != nil {
			log.Errorf("Failed to log listing access for user %s: %v", userID, err)
		}
	}()
}

// NeighborhoodNames returns the reference neighborhood names for the editor
// dropdown, sorted alphabetically.
func (s *ListingService) NeighborhoodNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sf_neighborhoods ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query neighborhoods: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan neighborhood: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ReplaceNeighborhoods refreshes the reference neighborhood table from the
// public geodata feed.
func (s *ListingService) ReplaceNeighborhoods(ctx context.Context, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sf_neighborhoods"); err != nil {
		return fmt.Errorf("failed to clear neighborhoods: %w", err)
	}
	for _, name := range names {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO sf_neighborhoods (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to insert neighborhood %q: %w", name, err)
		}
	}
	return tx.Commit()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanListing(sc scanner) (models.Listing, error) {
	var (
		l                 models.Listing
		fullAddress       sql.NullString
		streetAddress     sql.NullString
		neighborhood      sql.NullString
		lat, lng          sql.NullFloat64
		totalUnits        sql.NullInt64
		residentialUnits  sql.NullInt64
		vacantResidential sql.NullInt64
		commercialUnits   sql.NullInt64
		vacantCommercial  sql.NullInt64
		timeSentTz        sql.NullTime
		askingPrice       sql.NullFloat64
		emailSubject      sql.NullString
		emailSender       sql.NullString
	)

	err := sc.Scan(&l.ID, &fullAddress, &streetAddress, &neighborhood,
		&lat, &lng,
		&totalUnits, &residentialUnits, &vacantResidential,
		&commercialUnits, &vacantCommercial,
		&timeSentTz, &askingPrice, &l.Flagged, &l.IsVacantLot, &l.UpdatedAt,
		&emailSubject, &emailSender)
	if err != nil {
		return models.Listing{}, err
	}

	l.FullAddress = fullAddress.String
	l.StreetAddress = streetAddress.String
	if neighborhood.Valid && neighborhood.String != "" {
		l.Neighborhood = &neighborhood.String
	}
	if lat.Valid && lng.Valid {
		l.Location = &models.LatLng{Lat: lat.Float64, Lng: lng.Float64}
	}
	l.TotalUnits = countValue(totalUnits)
	l.ResidentialUnits = countValue(residentialUnits)
	l.VacantResidential = countValue(vacantResidential)
	l.CommercialUnits = countValue(commercialUnits)
	l.VacantCommercial = countValue(vacantCommercial)
	if timeSentTz.Valid {
		l.TimeSentTz = &timeSentTz.Time
	}
	l.AskingPrice = amountValue(askingPrice)
	if emailSubject.Valid {
		l.LatestEmailSubject = &emailSubject.String
	}
	if emailSender.Valid {
		l.LatestEmailSender = &emailSender.String
	}
	return l, nil
}

// countValue and amountValue convert nullable columns to pointers. Rows
// written before the ingest endpoint normalized on write may still carry the
// -1 "not provided" sentinel; the normalizer owns that rule.
func countValue(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	return services.SanitizeCount(n.Int64)
}

func amountValue(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return services.SanitizeAmount(n.Float64)
}

func nullableString(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// nullableNumber converts a validated form value to a bind parameter. Empty
// clears the column; separators were already accepted by validation.
func nullableNumber(s string) any {
	n, ok := services.ParseSeparatedNumber(s)
	if !ok {
		return nil
	}
	return n
}
