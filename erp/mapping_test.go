package erp

import (
	"errors"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/stockverify_backend/syncerr"
)

func TestMappingFromEnvDefaults(t *testing.T) {
	t.Setenv("ERP_ITEMS_TABLE", "stock_items")
	t.Setenv("ERP_MODIFIED_COLUMN", "")
	t.Setenv("ERP_COLUMN_ITEM_CODE", "")

	m := MappingFromEnv()
	if m.ItemsTable != "stock_items" {
		t.Fatalf("ItemsTable = %q", m.ItemsTable)
	}
	if m.ItemCode != "item_code" || m.StockQty != "stock_qty" {
		t.Fatalf("defaults not applied: %q %q", m.ItemCode, m.StockQty)
	}
	if m.ModifiedCol != "" {
		t.Fatalf("ModifiedCol = %q, want empty", m.ModifiedCol)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestMappingFromEnvOverrides(t *testing.T) {
	t.Setenv("ERP_ITEMS_TABLE", "tblItemMaster")
	t.Setenv("ERP_COLUMN_ITEM_CODE", "ItemCode")
	t.Setenv("ERP_COLUMN_STOCK_QTY", "ClosingStock")
	t.Setenv("ERP_MODIFIED_COLUMN", "LastModified")

	m := MappingFromEnv()
	if m.ItemCode != "ItemCode" || m.StockQty != "ClosingStock" {
		t.Fatalf("overrides not applied: %q %q", m.ItemCode, m.StockQty)
	}
	if m.ModifiedCol != "LastModified" {
		t.Fatalf("ModifiedCol = %q", m.ModifiedCol)
	}

	exprs := m.selectExprs()
	joined := strings.Join(exprs, ", ")
	if !strings.Contains(joined, "ItemCode AS item_code") {
		t.Fatalf("select exprs missing alias: %s", joined)
	}
	if !strings.Contains(joined, "ClosingStock AS stock_qty") {
		t.Fatalf("select exprs missing qty alias: %s", joined)
	}
	// Unchanged columns stay unaliased.
	if strings.Contains(joined, "barcode AS barcode") {
		t.Fatalf("default column should not be aliased: %s", joined)
	}
}

func TestValidateMissingTableIsConfigError(t *testing.T) {
	m := defaultMapping()
	err := m.Validate()
	if err == nil {
		t.Fatal("Validate: expected error")
	}
	if !errors.Is(err, syncerr.ErrSyncConfig) {
		t.Fatalf("err = %v, want ErrSyncConfig", err)
	}
}

func TestValidateRejectsUnsafeIdentifiers(t *testing.T) {
	cases := []func(*TableMapping){
		func(m *TableMapping) { m.ItemsTable = "items; DROP TABLE x" },
		func(m *TableMapping) { m.StockQty = "qty--" },
		func(m *TableMapping) { m.ModifiedCol = "mod col" },
	}
	for i, mutate := range cases {
		m := defaultMapping()
		m.ItemsTable = "items"
		mutate(&m)
		if err := m.Validate(); !errors.Is(err, syncerr.ErrSyncConfig) {
			t.Fatalf("case %d: err = %v, want ErrSyncConfig", i, err)
		}
	}
}
