package warehouse

// Read-side SQL against the warehouse. Everything here is query-only;
// writes live in the etl package.

// countSQL is formatted with a trusted table name from Tables.
const countSQL = "SELECT COUNT(*) FROM %s"

// orphanCheckSQL is formatted with a dimension table, its key column and
// the fact FK column. With the FK constraints in place it should always
// return zero; the check exists to catch schema drift.
const orphanCheckSQL = `
SELECT COUNT(*)
FROM fact_sales fs
LEFT JOIN %s d ON fs.%s = d.%s
WHERE d.%s IS NULL
`

// summaryReportSQL aggregates sales per dimension attribute combination.
const summaryReportSQL = `
SELECT
    dc.customer_type,
    dc.gender,
    dp.product_line,
    db.branch,
    db.city,
    dpm.payment_method,
    COUNT(*) AS transaction_count,
    SUM(fs.sales) AS total_sales,
    AVG(fs.rating) AS avg_rating
FROM fact_sales fs
JOIN dim_customer dc  ON fs.customer_id = dc.customer_id
JOIN dim_product  dp  ON fs.product_id  = dp.product_id
JOIN dim_branch   db  ON fs.branch_id   = db.branch_id
JOIN dim_payment  dpm ON fs.payment_id  = dpm.payment_id
GROUP BY dc.customer_type, dc.gender, dp.product_line,
         db.branch, db.city, dpm.payment_method
ORDER BY total_sales DESC
`

// exportSpec describes one table (or view) export: the query casts every
// column to text so rows scan uniformly into strings.
type exportSpec struct {
	Name    string
	Columns []string
	Query   string
}

var exportSpecs = []exportSpec{
	{
		Name:    "dim_customer",
		Columns: []string{"customer_id", "customer_type", "gender"},
		Query: `SELECT customer_id::text, customer_type, gender
                FROM dim_customer ORDER BY customer_id`,
	},
	{
		Name:    "dim_product",
		Columns: []string{"product_id", "product_line", "unit_price"},
		Query: `SELECT product_id::text, product_line, unit_price::text
                FROM dim_product ORDER BY product_id`,
	},
	{
		Name: "dim_time",
		Columns: []string{"time_id", "sale_date", "sale_time", "year",
			"month", "day", "quarter", "weekday", "is_weekend"},
		Query: `SELECT time_id::text, sale_date::text, sale_time::text,
                       year::text, month::text, day::text, quarter::text,
                       weekday, is_weekend::text
                FROM dim_time ORDER BY time_id`,
	},
	{
		Name:    "dim_branch",
		Columns: []string{"branch_id", "branch", "city"},
		Query: `SELECT branch_id::text, branch, city
                FROM dim_branch ORDER BY branch_id`,
	},
	{
		Name:    "dim_payment",
		Columns: []string{"payment_id", "payment_method"},
		Query: `SELECT payment_id::text, payment_method
                FROM dim_payment ORDER BY payment_id`,
	},
	{
		Name: "fact_sales",
		Columns: []string{"sales_id", "invoice_id", "customer_id",
			"product_id", "time_id", "branch_id", "payment_id", "quantity",
			"tax_5_percent", "sales", "cogs", "gross_margin_percentage",
			"gross_income", "rating"},
		Query: `SELECT sales_id::text, invoice_id, customer_id::text,
                       product_id::text, time_id::text, branch_id::text,
                       payment_id::text, quantity::text, tax_5_percent::text,
                       sales::text, cogs::text, gross_margin_percentage::text,
                       gross_income::text, rating::text
                FROM fact_sales ORDER BY sales_id`,
	},
	{
		Name: "sales_summary",
		Columns: []string{"invoice_id", "branch", "city", "customer_type",
			"gender", "product_line", "unit_price", "sale_date", "sale_time",
			"year", "month", "quarter", "weekday", "is_weekend",
			"payment_method", "quantity", "tax_5_percent", "sales", "cogs",
			"gross_margin_percentage", "gross_income", "rating"},
		Query: `SELECT invoice_id, branch, city, customer_type, gender,
                       product_line, unit_price::text, sale_date::text,
                       sale_time::text, year::text, month::text,
                       quarter::text, weekday, is_weekend::text,
                       payment_method, quantity::text, tax_5_percent::text,
                       sales::text, cogs::text, gross_margin_percentage::text,
                       gross_income::text, rating::text
                FROM v_sales_summary ORDER BY invoice_id`,
	},
}
