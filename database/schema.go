package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// InitSchema creates the necessary database tables if they don't exist
func InitSchema(db *sql.DB) error {
	log.Info("Initializing copa-dashboard database schema...")

	// Listings table. The details payload is stored encrypted; the rest of
	// the columns mirror the flat listing shape served to the dashboard.
	listingsTableSQL := `
	CREATE TABLE IF NOT EXISTS copa_listings(
		id CHAR(36) NOT NULL,
		full_address VARCHAR(512),
		street_address VARCHAR(255),
		neighborhood VARCHAR(128),
		lat DOUBLE,
		lng DOUBLE,
		total_units INT,
		residential_units INT,
		vacant_residential INT,
		commercial_units INT,
		vacant_commercial INT,
		time_sent_tz TIMESTAMP NULL,
		asking_price DOUBLE,
		flagged BOOL NOT NULL DEFAULT false,
		is_vacant_lot BOOL NOT NULL DEFAULT false,
		details_encrypted TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		INDEX neighborhood_index (neighborhood),
		INDEX time_sent_index (time_sent_tz),
		INDEX flagged_index (flagged)
	)`

	if _, err := db.Exec(listingsTableSQL); err != nil {
		return fmt.Errorf("failed to create copa_listings table: %w", err)
	}
	log.Info("Copa_listings table created/verified")

	// Inbound notice emails, linked to listings by the ingestion pipeline.
	emailsTableSQL := `
	CREATE TABLE IF NOT EXISTS emails(
		id CHAR(36) NOT NULL,
		listing_id CHAR(36),
		subject VARCHAR(512),
		from_address VARCHAR(255),
		received_date TIMESTAMP NULL,
		raw_text MEDIUMTEXT,
		raw_html MEDIUMTEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		INDEX listing_id_index (listing_id)
	)`

	if _, err := db.Exec(emailsTableSQL); err != nil {
		return fmt.Errorf("failed to create emails table: %w", err)
	}
	log.Info("Emails table created/verified")

	attachmentsTableSQL := `
	CREATE TABLE IF NOT EXISTS email_attachments(
		id CHAR(36) NOT NULL,
		email_id CHAR(36) NOT NULL,
		filename VARCHAR(255),
		content_type VARCHAR(128),
		file_size BIGINT,
		storage_path VARCHAR(512),
		is_inline BOOL NOT NULL DEFAULT false,
		PRIMARY KEY (id),
		INDEX email_id_index (email_id)
	)`

	if _, err := db.Exec(attachmentsTableSQL); err != nil {
		return fmt.Errorf("failed to create email_attachments table: %w", err)
	}
	log.Info("Email_attachments table created/verified")

	accessLogTableSQL := `
	CREATE TABLE IF NOT EXISTS listing_access_log(
		id INT NOT NULL AUTO_INCREMENT,
		user_id VARCHAR(64) NOT NULL,
		listing_id CHAR(36) NOT NULL,
		viewed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		INDEX listing_id_index (listing_id),
		INDEX user_id_index (user_id)
	)`

	if _, err := db.Exec(accessLogTableSQL); err != nil {
		return fmt.Errorf("failed to create listing_access_log table: %w", err)
	}
	log.Info("Listing_access_log table created/verified")

	// Reference copy of the public neighborhood feed, refreshed at startup.
	neighborhoodsTableSQL := `
	CREATE TABLE IF NOT EXISTS sf_neighborhoods(
		name VARCHAR(128) NOT NULL,
		PRIMARY KEY (name)
	)`

	if _, err := db.Exec(neighborhoodsTableSQL); err != nil {
		return fmt.Errorf("failed to create sf_neighborhoods table: %w", err)
	}
	log.Info("Sf_neighborhoods table created/verified")

	log.Info("Copa-dashboard database schema initialization completed")
	return nil
}
