package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmcdole/drinks/internal/domain"
)

func TestLoadDefaultCatalog(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Len() == 0 {
		t.Fatal("Expected built-in catalog to contain drinks")
	}

	d, ok := c.Get("caipirinha")
	if !ok {
		t.Fatal("Expected caipirinha in built-in catalog")
	}
	if d.Name != "Caipirinha" || d.Category != "classicos" {
		t.Errorf("Unexpected drink decoded: %+v", d)
	}
	if len(d.Ingredients) == 0 || len(d.Steps) == 0 {
		t.Errorf("Expected ingredients and steps to be decoded, got %+v", d)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drinks.json")
	data := `[{"id":"a","nome":"Zest","categoria":"classic"},{"id":"b","nome":"Amaro","categoria":"classic"}]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Expected 2 drinks, got %d", c.Len())
	}
	if c.Drinks()[0].ID != "a" || c.Drinks()[1].ID != "b" {
		t.Errorf("Expected catalog order to be preserved, got %v", c.Drinks())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("Expected error for missing catalog file")
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `[{"id":`},
		{"missing id", `[{"nome":"Zest"}]`},
		{"duplicate id", `[{"id":"a","nome":"Zest"},{"id":"a","nome":"Amaro"}]`},
		{"reserved all", `[{"id":"a","nome":"Zest","categoria":"all"}]`},
		{"reserved favorites", `[{"id":"a","nome":"Zest","categoria":"favoritos"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.data))
			if !errors.Is(err, domain.ErrInvalidCatalog) {
				t.Errorf("Expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

func TestParseEmptyCatalog(t *testing.T) {
	c, err := Parse(strings.NewReader(`[]`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty catalog, got %d drinks", c.Len())
	}
}

func TestGetUnknownID(t *testing.T) {
	c, _ := New([]domain.Drink{{ID: "a", Name: "Zest"}})
	if _, ok := c.Get("missing"); ok {
		t.Error("Expected lookup of unknown id to fail")
	}

	var nilCatalog *Catalog
	if _, ok := nilCatalog.Get("a"); ok {
		t.Error("Expected lookup on nil catalog to fail")
	}
}

func TestOptions(t *testing.T) {
	c, err := New([]domain.Drink{
		{ID: "1", Category: "tropicais", Glass: "Highball"},
		{ID: "2", Category: "classicos", Glass: "Old Fashioned"},
		{ID: "3", Category: "tropicais", Glass: "Highball"},
		{ID: "4", Category: "classicos"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	categories := c.Options(domain.FacetCategory, strings.Compare)
	if strings.Join(categories, ",") != "classicos,tropicais" {
		t.Errorf("Expected [classicos tropicais], got %v", categories)
	}

	glasses := c.Options(domain.FacetGlass, strings.Compare)
	if strings.Join(glasses, ",") != "Highball,Old Fashioned" {
		t.Errorf("Expected [Highball Old Fashioned], got %v", glasses)
	}

	if techniques := c.Options(domain.FacetTechnique, nil); len(techniques) != 0 {
		t.Errorf("Expected no technique options, got %v", techniques)
	}
}
