// Package warehouse defines the star-schema warehouse and the read-side
// operations (validation, summary, export) that run against it.
package warehouse

import (
	"context"
	"fmt"

	"github.com/dmtran/saleswh/internal/db"
	"github.com/dmtran/saleswh/internal/logging"
)

// Schema SQL for the supermarket sales warehouse: five dimension tables,
// one fact table and a denormalized reporting view. Every dimension
// carries a UNIQUE constraint on its natural key so the loader's
// insert-or-get upserts are race-free at the database level.
const createSchemaSQL = `
-- Customer Dimension
CREATE TABLE IF NOT EXISTS dim_customer (
    customer_id   SERIAL PRIMARY KEY,
    customer_type VARCHAR(20) NOT NULL,
    gender        VARCHAR(10) NOT NULL,
    UNIQUE (customer_type, gender)
);

-- Product Dimension
-- Distinct prices for the same product line are distinct members.
CREATE TABLE IF NOT EXISTS dim_product (
    product_id   SERIAL PRIMARY KEY,
    product_line VARCHAR(50) NOT NULL,
    unit_price   NUMERIC(10,2) NOT NULL CHECK (unit_price >= 0),
    UNIQUE (product_line, unit_price)
);

-- Time Dimension
CREATE TABLE IF NOT EXISTS dim_time (
    time_id    SERIAL PRIMARY KEY,
    sale_date  DATE NOT NULL,
    sale_time  TIME NOT NULL,
    year       INTEGER NOT NULL,
    month      INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
    day        INTEGER NOT NULL CHECK (day BETWEEN 1 AND 31),
    quarter    INTEGER NOT NULL CHECK (quarter BETWEEN 1 AND 4),
    weekday    VARCHAR(9) NOT NULL,
    is_weekend BOOLEAN NOT NULL,
    UNIQUE (sale_date, sale_time)
);

-- Branch Dimension
CREATE TABLE IF NOT EXISTS dim_branch (
    branch_id SERIAL PRIMARY KEY,
    branch    VARCHAR(10) NOT NULL,
    city      VARCHAR(50) NOT NULL,
    UNIQUE (branch, city)
);

-- Payment Dimension
CREATE TABLE IF NOT EXISTS dim_payment (
    payment_id     SERIAL PRIMARY KEY,
    payment_method VARCHAR(20) NOT NULL,
    UNIQUE (payment_method)
);

-- Sales Fact
CREATE TABLE IF NOT EXISTS fact_sales (
    sales_id                SERIAL PRIMARY KEY,
    invoice_id              VARCHAR(32) NOT NULL UNIQUE,
    customer_id             INTEGER NOT NULL REFERENCES dim_customer(customer_id),
    product_id              INTEGER NOT NULL REFERENCES dim_product(product_id),
    time_id                 INTEGER NOT NULL REFERENCES dim_time(time_id),
    branch_id               INTEGER NOT NULL REFERENCES dim_branch(branch_id),
    payment_id              INTEGER NOT NULL REFERENCES dim_payment(payment_id),
    quantity                INTEGER NOT NULL CHECK (quantity > 0),
    tax_5_percent           NUMERIC(12,4) NOT NULL CHECK (tax_5_percent >= 0),
    sales                   NUMERIC(12,4) NOT NULL CHECK (sales >= 0),
    cogs                    NUMERIC(12,4) NOT NULL CHECK (cogs >= 0),
    gross_margin_percentage NUMERIC(12,9) NOT NULL,
    gross_income            NUMERIC(12,4) NOT NULL CHECK (gross_income >= 0),
    rating                  NUMERIC(3,1) NOT NULL CHECK (rating >= 0 AND rating <= 10)
);

CREATE INDEX IF NOT EXISTS idx_fact_sales_customer ON fact_sales(customer_id);
CREATE INDEX IF NOT EXISTS idx_fact_sales_product  ON fact_sales(product_id);
CREATE INDEX IF NOT EXISTS idx_fact_sales_time     ON fact_sales(time_id);
CREATE INDEX IF NOT EXISTS idx_fact_sales_branch   ON fact_sales(branch_id);
CREATE INDEX IF NOT EXISTS idx_fact_sales_payment  ON fact_sales(payment_id);

-- Reporting view: one row per transaction with dimension attributes
-- inlined. Pure derived artifact, re-creatable from the base tables.
CREATE OR REPLACE VIEW v_sales_summary AS
SELECT
    fs.invoice_id,
    db.branch,
    db.city,
    dc.customer_type,
    dc.gender,
    dp.product_line,
    dp.unit_price,
    dt.sale_date,
    dt.sale_time,
    dt.year,
    dt.month,
    dt.quarter,
    dt.weekday,
    dt.is_weekend,
    dpm.payment_method,
    fs.quantity,
    fs.tax_5_percent,
    fs.sales,
    fs.cogs,
    fs.gross_margin_percentage,
    fs.gross_income,
    fs.rating
FROM fact_sales fs
JOIN dim_customer dc  ON fs.customer_id = dc.customer_id
JOIN dim_product  dp  ON fs.product_id  = dp.product_id
JOIN dim_time     dt  ON fs.time_id     = dt.time_id
JOIN dim_branch   db  ON fs.branch_id   = db.branch_id
JOIN dim_payment  dpm ON fs.payment_id  = dpm.payment_id
`

const dropSchemaSQL = `
DROP VIEW IF EXISTS v_sales_summary;
DROP TABLE IF EXISTS fact_sales;
DROP TABLE IF EXISTS dim_customer;
DROP TABLE IF EXISTS dim_product;
DROP TABLE IF EXISTS dim_time;
DROP TABLE IF EXISTS dim_branch;
DROP TABLE IF EXISTS dim_payment;
`

// Tables lists the warehouse tables in dependency order
// (dimensions first, fact last).
var Tables = []string{
	"dim_customer",
	"dim_product",
	"dim_time",
	"dim_branch",
	"dim_payment",
	"fact_sales",
}

// CreateSchema creates the warehouse schema.
func CreateSchema(ctx context.Context, conn db.DB) error {
	logging.Info().Msg("Creating warehouse schema")

	if _, err := conn.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().Msg("Warehouse schema created")
	return nil
}

// DropSchema drops the warehouse schema.
func DropSchema(ctx context.Context, conn db.DB) error {
	logging.Warn().Msg("Dropping warehouse schema")

	if _, err := conn.Exec(ctx, dropSchemaSQL); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}

	return nil
}
