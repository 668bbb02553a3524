// Package testkit holds hand-written fixture dataframes shared by tests
package testkit

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"marketlens/domain/dataframe"
)

var (
	s = dataframe.String
	n = dataframe.Number
	i = dataframe.Int
)

// ScenarioRecords is the three row region/country/revenue table used to
// illustrate grouping and dependent narrowing
func ScenarioRecords() []dataframe.Record {
	return []dataframe.Record{
		{"region": s("APAC"), "country": s("India"), "revenue": n(10)},
		{"region": s("APAC"), "country": s("Japan"), "revenue": n(20)},
		{"region": s("EU"), "country": s("France"), "revenue": n(5)},
	}
}

// ScenarioSchema describes ScenarioRecords
func ScenarioSchema() *dataframe.Schema {
	return dataframe.NewSchema(dataframe.ShapeCustom,
		dataframe.Facet("region"),
		dataframe.Facet("country"),
		dataframe.Metric("revenue"),
	)
}

// ScenarioFrame wraps ScenarioRecords
func ScenarioFrame() *dataframe.Dataframe {
	return dataframe.New(ScenarioSchema(), ScenarioRecords())
}

// PricingRecords covers two years, three regions and three brands. The
// Germany 2022 Cardiomax row has no revenue and the Brazil row no brand.
func PricingRecords() []dataframe.Record {
	row := func(year int, region, country, disease, brand, form, route string, price, revenue, mv, units float64) dataframe.Record {
		rec := dataframe.Record{
			"year":           i(year),
			"region":         s(region),
			"country":        s(country),
			"disease":        s(disease),
			"dosageForm":     s(form),
			"route":          s(route),
			"price":          n(price),
			"revenue":        n(revenue),
			"marketValueUsd": n(mv),
			"units":          n(units),
		}
		if brand != "" {
			rec["brand"] = s(brand)
		}
		return rec
	}

	records := []dataframe.Record{
		row(2021, "APAC", "India", "Diabetes", "Glucora", "Tablet", "Oral", 12, 1200, 5000, 100),
		row(2021, "APAC", "Japan", "Diabetes", "Glucora", "Tablet", "Oral", 30, 3000, 9000, 100),
		row(2021, "APAC", "Japan", "Hypertension", "Cardiomax", "Injection", "IV", 80, 1600, 4000, 20),
		row(2021, "EU", "France", "Hypertension", "Cardiomax", "Tablet", "Oral", 40, 2000, 7000, 50),
		row(2021, "EU", "Germany", "Oncology", "Oncovia", "Injection", "IV", 900, 9000, 20000, 10),
		row(2022, "APAC", "India", "Diabetes", "Glucora", "Tablet", "Oral", 14, 1680, 6000, 120),
		row(2022, "APAC", "Japan", "Hypertension", "Cardiomax", "Injection", "IV", 85, 2125, 4500, 25),
		row(2022, "EU", "France", "Hypertension", "Cardiomax", "Tablet", "Oral", 42, 2520, 7500, 60),
		row(2022, "EU", "Germany", "Oncology", "Oncovia", "Injection", "SC", 950, 11400, 24000, 12),
		row(2022, "LATAM", "Brazil", "Diabetes", "", "Capsule", "Oral", 10, 800, 2000, 80),
	}
	germanyCardio := row(2022, "EU", "Germany", "Hypertension", "Cardiomax", "Tablet", "Oral", 45, 0, 3000, 0)
	delete(germanyCardio, "revenue")
	return append(records, germanyCardio)
}

// PricingFrame wraps PricingRecords in the built-in pricing schema
func PricingFrame() *dataframe.Dataframe {
	return dataframe.New(dataframe.PricingSchema, PricingRecords())
}

// EpidemiologyFrame is a small prevalence table
func EpidemiologyFrame() *dataframe.Dataframe {
	row := func(year int, region, country, disease string, prevalence, incidence, patients float64) dataframe.Record {
		return dataframe.Record{
			"year": i(year), "region": s(region), "country": s(country), "disease": s(disease),
			"prevalence": n(prevalence), "incidence": n(incidence), "patients": n(patients),
		}
	}
	return dataframe.New(dataframe.EpidemiologySchema, []dataframe.Record{
		row(2020, "APAC", "India", "Diabetes", 8.9, 0.6, 77000),
		row(2020, "EU", "France", "Diabetes", 5.3, 0.3, 3500),
		row(2021, "APAC", "India", "Diabetes", 9.1, 0.7, 80000),
		row(2021, "EU", "France", "Diabetes", 5.4, 0.3, 3600),
		row(2021, "EU", "France", "Oncology", 0.6, 0.05, 400),
	})
}

// BrandDiseases is the static brand -> diseases table matching PricingRecords
func BrandDiseases() map[string][]string {
	return map[string][]string{
		"Glucora":   {"Diabetes"},
		"Cardiomax": {"Hypertension"},
		"Oncovia":   {"Oncology"},
		"Duoprex":   {"Diabetes", "Hypertension"},
	}
}

// WriteCSV writes headers and rows to a csv file under t.TempDir
func WriteCSV(t testing.TB, name string, headers []string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	return path
}
