// Package dbtest opens throwaway sqlite databases carrying the marketplace schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/partsmarket-backend/pkg/db"
)

// schema mirrors the goose migrations with sqlite types. Ids are TEXT.
var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		global_roles TEXT NOT NULL DEFAULT '{member}',
		banned BOOLEAN NOT NULL DEFAULT false,
		auth_version INTEGER NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE org_memberships (
		org_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('owner','admin','staff','accountant')),
		invited_by TEXT,
		invited_at DATETIME,
		accepted_at DATETIME,
		created_at DATETIME,
		PRIMARY KEY (org_id, user_id)
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		make_id TEXT,
		make_name TEXT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		part_number TEXT NOT NULL DEFAULT '',
		condition TEXT NOT NULL,
		price NUMERIC NOT NULL CHECK (price >= 0),
		stock_type TEXT NOT NULL,
		quantity_original INTEGER NOT NULL,
		quantity_on_hand INTEGER NOT NULL CHECK (quantity_on_hand >= 0),
		allow_cart BOOLEAN NOT NULL DEFAULT true,
		allow_chat BOOLEAN NOT NULL DEFAULT true,
		status TEXT NOT NULL DEFAULT 'draft',
		fitment_tags TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME,
		updated_at DATETIME,
		CHECK (allow_cart OR allow_chat),
		CHECK (stock_type <> 'unique' OR (allow_cart = false AND quantity_original = 1 AND quantity_on_hand IN (0, 1)))
	)`,
	`CREATE TABLE carts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		cart_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		seller_org_id TEXT NOT NULL,
		product_title TEXT NOT NULL,
		product_description TEXT NOT NULL DEFAULT '',
		product_part_number TEXT NOT NULL DEFAULT '',
		unit_price NUMERIC NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity BETWEEN 1 AND 99),
		status TEXT NOT NULL DEFAULT 'active',
		order_id TEXT,
		locked_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CHECK (status <> 'locked' OR order_id IS NOT NULL)
	)`,
	`CREATE UNIQUE INDEX uq_cart_items_active_product ON cart_items (cart_id, product_id) WHERE status = 'active'`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'pending',
		total_amount NUMERIC NOT NULL,
		total_items INTEGER NOT NULL,
		unique_items INTEGER NOT NULL,
		notes TEXT,
		shipping_address TEXT,
		source_cart_item_ids TEXT NOT NULL DEFAULT '{}',
		stripe_checkout_session_id TEXT,
		stripe_payment_intent_id TEXT,
		paid_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		seller_org_id TEXT NOT NULL,
		product_id TEXT,
		cart_item_id TEXT,
		make_id TEXT,
		make_name TEXT,
		product_title TEXT NOT NULL,
		product_description TEXT NOT NULL DEFAULT '',
		product_part_number TEXT NOT NULL DEFAULT '',
		product_condition TEXT NOT NULL,
		unit_price NUMERIC NOT NULL,
		quantity INTEGER NOT NULL,
		total_price NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		carrier_code TEXT,
		tracking_number TEXT,
		tracking_url TEXT,
		shipped_at DATETIME,
		delivered_at DATETIME,
		cancelled_at DATETIME,
		rejection_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE UNIQUE INDEX ux_outbox_events_event_aggregate ON outbox_events (event_type, aggregate_type, aggregate_id)
		WHERE event_type IN ('order.created','order.paid')`,
}

// Open returns a fresh in-memory database with every marketplace table.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// Client wraps Open in the transactional client services depend on.
func Client(t *testing.T) (*gorm.DB, *dbpkg.Client) {
	t.Helper()
	conn := Open(t)
	return conn, dbpkg.NewFromConn(conn)
}
