package storage

import (
	"strings"
	"testing"
)

func TestRebind(t *testing.T) {
	pg, _ := DialectFor(DriverPostgres)
	if got := pg.Rebind("SELECT ? , ?"); got != "SELECT $1 , $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite, _ := DialectFor(DriverSQLite)
	if got := lite.Rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestInsertNeverTouchesUserColumns(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverSQLite, DriverMySQL} {
		d, err := DialectFor(driver)
		if err != nil {
			t.Fatal(err)
		}
		q := d.insertFestivals(2)
		for _, col := range []string{"favorite", "archived", "notes", "sales_stage"} {
			if strings.Contains(q, col) {
				t.Errorf("%s upsert mentions user column %s", driver, col)
			}
		}
		if strings.Contains(q, "identity_hash = ") {
			t.Errorf("%s upsert rewrites the identity hash", driver)
		}
	}
}

func TestInsertConflictClause(t *testing.T) {
	cases := map[string]string{
		DriverPostgres: "ON CONFLICT (identity_hash) DO UPDATE SET source_id = excluded.source_id",
		DriverSQLite:   "ON CONFLICT (identity_hash) DO UPDATE SET source_id = excluded.source_id",
		DriverMySQL:    "ON DUPLICATE KEY UPDATE source_id = VALUES(source_id)",
	}
	for driver, want := range cases {
		d, _ := DialectFor(driver)
		if q := d.insertFestivals(1); !strings.Contains(q, want) {
			t.Errorf("%s: %q missing %q", driver, q, want)
		}
	}

	pg, _ := DialectFor(DriverPostgres)
	if q := pg.insertFestivals(2); !strings.Contains(q, "$22") || strings.Contains(q, "$23") {
		t.Errorf("postgres placeholders wrong: %s", q)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := DialectFor("oracle"); err == nil {
		t.Error("expected error")
	}
}
