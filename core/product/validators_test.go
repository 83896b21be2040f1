package product_test

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/product"
)

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	product.InitValidators(validate, translator)
	return validate
}

func TestNewModule_Validate(t *testing.T) {
	validate := newValidate(t)

	tests := []struct {
		name    string
		data    product.NewModule
		wantErr bool
	}{
		{name: "name required", data: product.NewModule{Type: product.ModuleTypeCourse}, wantErr: true},
		{name: "type required", data: product.NewModule{Name: "Quiz"}, wantErr: true},
		{name: "unknown type", data: product.NewModule{Name: "Quiz", Type: "homework"}, wantErr: true},
		{name: "negative sequence", data: product.NewModule{Name: "Quiz", Type: product.ModuleTypeAssessment, Sequence: -1}, wantErr: true},
		{name: "whitespace name trimmed", data: product.NewModule{Name: "  Quiz 1  ", Type: product.ModuleTypeAssessment}},
		{name: "ok", data: product.NewModule{Name: "Quiz 1", Type: product.ModuleTypeAssessment, Sequence: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.data.Name != "Quiz 1" {
				t.Errorf("Name = %q, want cleaned %q", tt.data.Name, "Quiz 1")
			}
		})
	}
}

func TestUpdateModule_Validate(t *testing.T) {
	validate := newValidate(t)

	orig := product.Module{ID: "m1", Name: "Quiz 1", Type: product.ModuleTypeAssessment, Sequence: 2}

	t.Run("omitted fields keep original values", func(t *testing.T) {
		data := product.UpdateModule{}
		if err := data.Validate(orig, validate); err != nil {
			t.Fatalf("Validate() failed: %v", err)
		}
		if data.Name != orig.Name || data.Type != orig.Type {
			t.Errorf("got %q/%q, want %q/%q", data.Name, data.Type, orig.Name, orig.Type)
		}
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		data := product.UpdateModule{Type: "homework"}
		if err := data.Validate(orig, validate); err == nil {
			t.Error("Validate() expected error for unknown type")
		}
	})
}

func TestModuleType_Valid(t *testing.T) {
	for _, mt := range product.AllModuleTypes {
		if !mt.Valid() {
			t.Errorf("%s reported invalid", mt)
		}
	}
	if product.ModuleType("homework").Valid() {
		t.Error("unknown type reported valid")
	}
}
