package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyResolved   = errors.New("report already resolved")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicate         = errors.New("duplicate entry")
)

// Database handles all database operations
type Database struct {
	db  *sql.DB
	now func() time.Time
}

func NewDatabase(db *sql.DB) *Database {
	return &Database{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

var schema = []struct {
	table string
	ddl   string
}{
	{"authorities", `
		CREATE TABLE IF NOT EXISTS authorities (
			id INT NOT NULL AUTO_INCREMENT,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			contact_email VARCHAR(255),
			PRIMARY KEY (id),
			UNIQUE INDEX name_unique (name)
		)`},
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id INT NOT NULL AUTO_INCREMENT,
			username VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role ENUM('citizen', 'authority') NOT NULL DEFAULT 'citizen',
			full_name VARCHAR(255) NOT NULL DEFAULT '',
			authority_id INT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE INDEX username_unique (username),
			FOREIGN KEY (authority_id) REFERENCES authorities(id) ON DELETE SET NULL
		)`},
	{"reports", `
		CREATE TABLE IF NOT EXISTS reports (
			id INT NOT NULL AUTO_INCREMENT,
			reporter_id INT NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			severity ENUM('Low', 'Medium', 'High', 'Critical') NOT NULL,
			status ENUM('Open', 'In Progress', 'Resolved') NOT NULL DEFAULT 'Open',
			assigned_authority_id INT NOT NULL,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			image_url VARCHAR(512),
			resolution_note TEXT,
			resolution_proof_image VARCHAR(512),
			resolved_at TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			INDEX lat_lng_index (lat, lng),
			INDEX status_index (status),
			INDEX created_at_index (created_at),
			INDEX authority_index (assigned_authority_id),
			FOREIGN KEY (reporter_id) REFERENCES users(id),
			FOREIGN KEY (assigned_authority_id) REFERENCES authorities(id)
		)`},
	{"upvotes", `
		CREATE TABLE IF NOT EXISTS upvotes (
			report_id INT NOT NULL,
			user_id INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (report_id, user_id),
			FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`},
	{"comments", `
		CREATE TABLE IF NOT EXISTS comments (
			id INT NOT NULL AUTO_INCREMENT,
			report_id INT NOT NULL,
			user_id INT NOT NULL,
			comment_text TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			INDEX report_index (report_id),
			FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`},
	{"hotspots", `
		CREATE TABLE IF NOT EXISTS hotspots (
			id INT NOT NULL AUTO_INCREMENT,
			name VARCHAR(255) NOT NULL,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			severity VARCHAR(32) NOT NULL,
			description TEXT,
			PRIMARY KEY (id)
		)`},
	{"predicted_hotspots", `
		CREATE TABLE IF NOT EXISTS predicted_hotspots (
			id INT NOT NULL AUTO_INCREMENT,
			prediction_date DATE NOT NULL,
			name VARCHAR(255) NOT NULL,
			lat DECIMAL(10, 7) NOT NULL,
			lng DECIMAL(10, 7) NOT NULL,
			severity VARCHAR(32) NOT NULL,
			confidence_score DECIMAL(5, 4) NOT NULL,
			predicted_rainfall_mm DECIMAL(8, 2) NOT NULL,
			risk_factors JSON,
			radius_meters INT NOT NULL DEFAULT 500,
			model_version VARCHAR(32) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			INDEX prediction_date_index (prediction_date)
		)`},
	{"historical_incidents", `
		CREATE TABLE IF NOT EXISTS historical_incidents (
			id INT NOT NULL AUTO_INCREMENT,
			incident_date DATE NOT NULL,
			location_name VARCHAR(255) NOT NULL,
			lat DECIMAL(10, 7) NOT NULL,
			lng DECIMAL(10, 7) NOT NULL,
			severity VARCHAR(32) NOT NULL,
			rainfall_mm DECIMAL(8, 2),
			description TEXT,
			PRIMARY KEY (id),
			INDEX incident_date_index (incident_date)
		)`},
	{"historical_rainfall", `
		CREATE TABLE IF NOT EXISTS historical_rainfall (
			id INT NOT NULL AUTO_INCREMENT,
			record_date DATE NOT NULL,
			station_name VARCHAR(255) NOT NULL,
			lat DECIMAL(10, 7) NOT NULL,
			lng DECIMAL(10, 7) NOT NULL,
			rainfall_24h DECIMAL(8, 2) NOT NULL,
			rainfall_1h DECIMAL(8, 2),
			rainfall_3h DECIMAL(8, 2),
			rainfall_6h DECIMAL(8, 2),
			temperature_c DECIMAL(5, 2),
			humidity_percent INT,
			PRIMARY KEY (id),
			INDEX record_date_index (record_date)
		)`},
	{"model_metadata", `
		CREATE TABLE IF NOT EXISTS model_metadata (
			id INT NOT NULL AUTO_INCREMENT,
			model_version VARCHAR(32) NOT NULL,
			accuracy DECIMAL(6, 4),
			precision_score DECIMAL(6, 4),
			recall_score DECIMAL(6, 4),
			f1_score DECIMAL(6, 4),
			training_samples INT,
			training_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			feature_importance JSON,
			data_sources JSON,
			PRIMARY KEY (id)
		)`},
}

// EnsureSchema creates every table the service needs if it doesn't exist.
// Tables are created in dependency order.
func (d *Database) EnsureSchema(ctx context.Context) error {
	for _, t := range schema {
		if _, err := d.db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.table, err)
		}
	}
	log.Infof("Schema ensured, %d tables", len(schema))
	return nil
}
