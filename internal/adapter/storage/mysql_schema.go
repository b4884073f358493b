package storage

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id CHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		role VARCHAR(16) NOT NULL,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		location VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vendors (
		id CHAR(36) PRIMARY KEY,
		user_id CHAR(36) NOT NULL UNIQUE,
		vendor_name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		image_url VARCHAR(512) NOT NULL DEFAULT '',
		phone VARCHAR(32) NOT NULL DEFAULT '',
		address VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_vendors_status (status),
		FOREIGN KEY (user_id) REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id CHAR(36) PRIMARY KEY,
		vendor_id CHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		image_url VARCHAR(512) NOT NULL DEFAULT '',
		available BOOLEAN NOT NULL DEFAULT TRUE,
		category VARCHAR(64) NOT NULL DEFAULT '',
		prep_time INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_menu_items_vendor (vendor_id),
		FOREIGN KEY (vendor_id) REFERENCES vendors(id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id CHAR(36) PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		vendor_id CHAR(36) NOT NULL,
		items JSON NOT NULL,
		total_price DECIMAL(10,2) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		delivery_address VARCHAR(255) NOT NULL DEFAULT '',
		notes TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_orders_user (user_id, created_at),
		INDEX idx_orders_vendor (vendor_id, created_at),
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (vendor_id) REFERENCES vendors(id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id CHAR(36) PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		vendor_id CHAR(36) NOT NULL,
		order_id CHAR(36) NOT NULL UNIQUE,
		rating TINYINT NOT NULL,
		comment TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		FOREIGN KEY (order_id) REFERENCES orders(id)
	)`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
