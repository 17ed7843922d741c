package db

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/keibalab/racedata-ingester/internal/schema"
)

// CreateTableSQL renders the dialect-neutral DDL for one catalogue
// table through the driver's quoting.
func CreateTableSQL(drv Driver, def *schema.TableDef) string {
	cols := make([]string, 0, len(def.Columns)+1)
	for _, c := range def.Columns {
		cols = append(cols, drv.QuoteIdentifier(c.Name)+" "+columnSQLType(drv, c.Type))
	}
	keys := make([]string, len(def.Key))
	for i, k := range def.Key {
		keys[i] = drv.QuoteIdentifier(k)
	}
	cols = append(cols, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		drv.QuoteIdentifier(def.Name), strings.Join(cols, ",\n    "))
}

func columnSQLType(drv Driver, t schema.ColumnType) string {
	if drv.Name() == "postgres" {
		switch t {
		case schema.TypeInteger:
			return "BIGINT"
		case schema.TypeReal:
			return "DOUBLE PRECISION"
		default:
			return "TEXT"
		}
	}
	switch t {
	case schema.TypeInteger:
		return "INTEGER"
	case schema.TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Migrate creates every catalogue table that does not yet exist.
func Migrate(ctx context.Context, drv Driver, cat *schema.Catalogue, logger *zap.Logger) error {
	tables := cat.Tables()
	for _, def := range tables {
		if err := drv.Exec(ctx, CreateTableSQL(drv, def)); err != nil {
			return fmt.Errorf("creating table %s: %w", def.Name, err)
		}
		logger.Debug("table ensured", zap.String("table", def.Name))
	}
	logger.Info("schema migrated", zap.Int("tables", len(tables)))
	return nil
}
