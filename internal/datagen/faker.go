// Package datagen generates sample supermarket sales CSV files for
// exercising the pipeline without a real export.
package datagen

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Reference data matching the source dataset's domains.
var (
	branchCities = []struct {
		Branch string
		City   string
	}{
		{"A", "Yangon"},
		{"B", "Mandalay"},
		{"C", "Naypyitaw"},
	}

	productLines = []string{
		"Health and beauty",
		"Electronic accessories",
		"Home and lifestyle",
		"Sports and travel",
		"Food and beverages",
		"Fashion accessories",
	}

	customerTypes  = []string{"Member", "Normal"}
	genders        = []string{"Male", "Female"}
	paymentMethods = []string{"Ewallet", "Cash", "Credit card"}
)

// grossMarginPct is constant across the source dataset: with a flat 5%
// tax on cost, margin is tax/sales = 1/21.
const grossMarginPct = 4.761904762

// Header is the column order of generated files, matching the fixed
// source schema the extractor requires.
var Header = []string{
	"Invoice ID", "Branch", "City", "Customer type", "Gender",
	"Product line", "Unit price", "Quantity", "Tax 5%", "Sales",
	"Date", "Time", "Payment", "cogs", "gross margin percentage",
	"gross income", "Rating",
}

// SalesGenerator produces sales rows with internally consistent
// metrics: cogs = price * quantity, tax = 5% of cogs, sales includes
// tax, gross income equals the tax amount.
type SalesGenerator struct {
	faker *gofakeit.Faker
	seq   int

	start time.Time
	end   time.Time
}

// NewSalesGenerator creates a generator seeded for reproducibility.
// Seed 0 yields a random sequence.
func NewSalesGenerator(seed uint64) *SalesGenerator {
	return &SalesGenerator{
		faker: gofakeit.New(seed),
		start: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		end:   time.Date(2019, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Row is one generated transaction, already formatted as CSV fields in
// Header order.
func (g *SalesGenerator) Row() []string {
	bc := branchCities[g.faker.IntRange(0, len(branchCities)-1)]
	productLine := productLines[g.faker.IntRange(0, len(productLines)-1)]

	unitPrice := g.faker.Price(10, 100)
	quantity := g.faker.IntRange(1, 10)
	cogs := unitPrice * float64(quantity)
	tax := cogs * 0.05
	sales := cogs + tax
	rating := float64(g.faker.IntRange(40, 100)) / 10

	day := g.faker.DateRange(g.start, g.end)
	hour := g.faker.IntRange(10, 20)
	minute := g.faker.IntRange(0, 59)

	// The sequence keeps invoice ids unique within one file.
	g.seq++
	invoice := fmt.Sprintf("%s-%s-%04d",
		g.faker.DigitN(3), g.faker.DigitN(2), g.seq)

	return []string{
		invoice,
		bc.Branch,
		bc.City,
		customerTypes[g.faker.IntRange(0, len(customerTypes)-1)],
		genders[g.faker.IntRange(0, len(genders)-1)],
		productLine,
		fmt.Sprintf("%.2f", unitPrice),
		fmt.Sprintf("%d", quantity),
		fmt.Sprintf("%.4f", tax),
		fmt.Sprintf("%.4f", sales),
		day.Format("2006-01-02"),
		fmt.Sprintf("%02d:%02d", hour, minute),
		paymentMethods[g.faker.IntRange(0, len(paymentMethods)-1)],
		fmt.Sprintf("%.2f", cogs),
		fmt.Sprintf("%.9f", grossMarginPct),
		fmt.Sprintf("%.4f", tax),
		fmt.Sprintf("%.1f", rating),
	}
}

// WriteCSV writes a header plus n generated rows to w.
func (g *SalesGenerator) WriteCSV(w io.Writer, n int) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(g.Row()); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
