package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const churnCSV = `customer_id,age,gender,tenure_months,monthly_charges,churn
1,34,Male,12,65.5,No
2,56,Female,45,89.2,No
3,23,Male,3,45.0,Yes
4,67,Female,67,112.5,No
5,45,Male,8,78.3,Yes
`

func loadChurn(t *testing.T) *Dataset {
	t.Helper()
	ds, err := FromCSV("churn.csv", strings.NewReader(churnCSV), Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return ds
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "churn.csv")
	if err := os.WriteFile(p, []byte(churnCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ds, err := Load(p, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Name != "churn.csv" {
		t.Fatalf("name: got %q", ds.Name)
	}
	if ds.NumRows() != 5 || ds.NumCols() != 6 {
		t.Fatalf("shape: got %dx%d", ds.NumRows(), ds.NumCols())
	}
}

func TestMaxRows(t *testing.T) {
	ds, err := FromCSV("churn.csv", strings.NewReader(churnCSV), Options{MaxRows: 3})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.NumRows() != 3 {
		t.Fatalf("rows: got %d, want 3", ds.NumRows())
	}
}

func TestFloatsAndStrings(t *testing.T) {
	ds := loadChurn(t)
	ages, err := ds.Floats("age")
	if err != nil {
		t.Fatalf("floats: %v", err)
	}
	if len(ages) != 5 || ages[0] != 34 {
		t.Fatalf("ages: got %v", ages)
	}
	genders, err := ds.Strings("gender")
	if err != nil {
		t.Fatalf("strings: %v", err)
	}
	if genders[1] != "Female" {
		t.Fatalf("genders: got %v", genders)
	}
	if _, err := ds.Floats("nope"); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestHead(t *testing.T) {
	ds := loadChurn(t)
	rows := ds.Head(2)
	if len(rows) != 3 {
		t.Fatalf("head: got %d rows, want header+2", len(rows))
	}
	if rows[0][0] != "customer_id" {
		t.Fatalf("header: got %v", rows[0])
	}
}

func TestFilter(t *testing.T) {
	ds := loadChurn(t)
	churned, err := ds.Filter("churn", "==", "Yes")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if churned.NumRows() != 2 {
		t.Fatalf("filtered rows: got %d, want 2", churned.NumRows())
	}
	if _, err := ds.Filter("churn", "~=", "Yes"); err == nil {
		t.Fatal("expected error for bad comparator")
	}
}

func TestGroupMean(t *testing.T) {
	ds := loadChurn(t)
	means, err := ds.GroupMean("churn", "monthly_charges")
	if err != nil {
		t.Fatalf("group mean: %v", err)
	}
	if len(means) != 2 {
		t.Fatalf("groups: got %v", means)
	}
	var yes float64
	for k, v := range means {
		if strings.HasPrefix(k, "Yes") {
			yes = v
		}
	}
	if math.Abs(yes-61.65) > 0.01 {
		t.Fatalf("mean for churned: got %v", yes)
	}
}
