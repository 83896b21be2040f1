package sqlxrepos

import (
	"testing"

	"github.com/cultusedu/cultus/core/product"
)

func TestPackProductForInsert(t *testing.T) {
	active := true
	prod := product.Product{ID: "p1", Name: "Job Readiness", IsActive: &active}

	row := packProductForInsert(prod)
	if !row.Description.Valid {
		t.Fatal("empty description must bind as a value on insert, not as unset")
	}
	val, err := row.Description.Value()
	if err != nil {
		t.Fatalf("Value() failed: %v", err)
	}
	if val != "" {
		t.Errorf("Value() = %v, want empty string", val)
	}
	if row.Name.String != prod.Name {
		t.Errorf("Name = %q, want %q", row.Name.String, prod.Name)
	}
}

func TestPackProduct_UnsetFields(t *testing.T) {
	// the update path relies on unset fields reaching COALESCE as NULL
	row := packProduct(product.Product{ID: "p1", Name: "Job Readiness"})
	if row.Description.Valid {
		t.Error("empty description must stay unset for the update path")
	}
	if row.IsActive.Valid {
		t.Error("nil IsActive must stay unset for the update path")
	}
	val, err := row.Description.Value()
	if err != nil {
		t.Fatalf("Value() failed: %v", err)
	}
	if val != nil {
		t.Errorf("Value() = %v, want nil", val)
	}
}
