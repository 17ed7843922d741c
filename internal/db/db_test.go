package db

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/keibalab/racedata-ingester/internal/jvdata"
	"github.com/keibalab/racedata-ingester/internal/schema"
)

func TestQuoteIdentifier(t *testing.T) {
	pg := NewPostgres("", 1, 1)
	if got := pg.QuoteIdentifier(`NL_RA`); got != `"NL_RA"` {
		t.Errorf("got %s", got)
	}
	if got := pg.QuoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Errorf("got %s", got)
	}
	lite := NewSQLite(":memory:")
	if got := lite.QuoteIdentifier(`NL_RA`); got != `"NL_RA"` {
		t.Errorf("got %s", got)
	}
}

func TestPostgresUpsertTemplate(t *testing.T) {
	pg := NewPostgres("", 1, 1)
	sql := pg.UpsertTemplate("NL_UM", []string{"KettoNum", "Bamei"}, []string{"KettoNum"})
	want := `INSERT INTO "NL_UM" ("KettoNum", "Bamei") VALUES ($1, $2) ` +
		`ON CONFLICT ("KettoNum") DO UPDATE SET "Bamei" = EXCLUDED."Bamei"`
	if sql != want {
		t.Errorf("got:\n%s\nwant:\n%s", sql, want)
	}

	// All-key tables degrade to DO NOTHING.
	sql = pg.UpsertTemplate("T", []string{"A", "B"}, []string{"A", "B"})
	if !strings.HasSuffix(sql, "DO NOTHING") {
		t.Errorf("got %s", sql)
	}
}

func TestSQLiteUpsertTemplate(t *testing.T) {
	lite := NewSQLite(":memory:")
	sql := lite.UpsertTemplate("NL_UM", []string{"KettoNum", "Bamei"}, []string{"KettoNum"})
	want := `INSERT OR REPLACE INTO "NL_UM" ("KettoNum", "Bamei") VALUES (?, ?)`
	if sql != want {
		t.Errorf("got:\n%s\nwant:\n%s", sql, want)
	}
}

func TestCreateTableSQL(t *testing.T) {
	def := &schema.TableDef{
		Name: "NL_O1_TANSYO",
		Columns: []schema.Column{
			{Name: "Year", Type: schema.TypeInteger},
			{Name: "Odds", Type: schema.TypeReal},
			{Name: "JyoCD", Type: schema.TypeText},
		},
		Key: []string{"Year", "JyoCD"},
	}
	pg := CreateTableSQL(NewPostgres("", 1, 1), def)
	for _, want := range []string{`"Year" BIGINT`, `"Odds" DOUBLE PRECISION`, `"JyoCD" TEXT`,
		`PRIMARY KEY ("Year", "JyoCD")`} {
		if !strings.Contains(pg, want) {
			t.Errorf("postgres DDL missing %q:\n%s", want, pg)
		}
	}
	lite := CreateTableSQL(NewSQLite(":memory:"), def)
	for _, want := range []string{`"Year" INTEGER`, `"Odds" REAL`} {
		if !strings.Contains(lite, want) {
			t.Errorf("sqlite DDL missing %q:\n%s", want, lite)
		}
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	drv := NewSQLite(":memory:")
	if err := drv.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer drv.Close()

	cat, err := schema.Build(jvdata.NewRegistry(jvdata.FeedCentral))
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(ctx, drv, cat, zap.NewNop()); err != nil {
		t.Fatal(err)
	}

	cols := []string{"RecordSpec", "DataKubun", "MakeDate", "KettoNum", "Bamei", "Origin"}
	sql := drv.UpsertTemplate("NL_HY", cols, []string{"KettoNum"})
	rows := [][]any{
		{"HY", "1", "20250101", "2020100001", "FIRST", "origin one"},
		{"HY", "1", "20250102", "2020100001", "SECOND", "origin two"},
	}
	if err := drv.BulkExec(ctx, sql, rows); err != nil {
		t.Fatal(err)
	}

	// Second write for the same key replaced the first.
	res, err := drv.Query(ctx, `SELECT "Bamei" FROM "NL_HY" WHERE "KettoNum" = ?`, "2020100001")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()
	var got []string
	for res.Next() {
		var b string
		if err := res.Scan(&b); err != nil {
			t.Fatal(err)
		}
		got = append(got, b)
	}
	if err := res.Err(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "SECOND" {
		t.Errorf("got %v, want [SECOND]", got)
	}
}
