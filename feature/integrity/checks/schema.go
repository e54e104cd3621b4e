package checks

import (
	"fmt"
	"sort"

	"merge-engine/core/database"
	"merge-engine/feature/repository/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// SchemaReport strictly types the result of a schema check.
type SchemaReport struct {
	Matched bool                   `json:"matched"`
	Tables  map[string]TableReport `json:"tables"`
	Errors  []string               `json:"errors"`
}

// TableReport is the outcome for one repository table.
type TableReport struct {
	MissingColumns []string `json:"missing_columns"`
	ExtraColumns   []string `json:"extra_columns"`
	Status         string   `json:"status"` // "ok", "missing", "error"
}

// CheckSchema compares the repository tables against the columns the models expect.
func CheckSchema(db *gorm.DB) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	report := &SchemaReport{
		Matched: true,
		Tables:  make(map[string]TableReport),
		Errors:  []string{},
	}

	expected := models.Columns()
	tables := lo.Keys(expected)
	sort.Strings(tables)

	for _, table := range tables {
		columns, err := database.GetTableColumns(db, table)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to inspect table %s: %v", table, err))
			report.Tables[table] = TableReport{MissingColumns: []string{}, ExtraColumns: []string{}, Status: "error"}
			report.Matched = false
			continue
		}

		tbl := TableReport{MissingColumns: []string{}, ExtraColumns: []string{}, Status: "ok"}
		if len(columns) == 0 {
			tbl.MissingColumns = append(tbl.MissingColumns, expected[table]...)
			tbl.Status = "missing"
			report.Tables[table] = tbl
			report.Matched = false
			continue
		}

		missing, extra := lo.Difference(expected[table], database.ColumnNames(columns))
		tbl.MissingColumns = append(tbl.MissingColumns, missing...)
		tbl.ExtraColumns = append(tbl.ExtraColumns, extra...)
		if len(missing) > 0 {
			tbl.Status = "error"
			report.Matched = false
		}
		report.Tables[table] = tbl
	}

	return report, nil
}
