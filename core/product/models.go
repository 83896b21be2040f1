package product

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cultusedu/cultus/core"
)

// ModuleType categorizes a unit of content or evaluation within a Product.
type ModuleType string

const (
	ModuleTypeCourse        ModuleType = "course"
	ModuleTypeAssessment    ModuleType = "assessment"
	ModuleTypeProject       ModuleType = "project"
	ModuleTypeInterview     ModuleType = "interview"
	ModuleTypeExpertSession ModuleType = "expert_session"
)

var AllModuleTypes = []ModuleType{
	ModuleTypeCourse,
	ModuleTypeAssessment,
	ModuleTypeProject,
	ModuleTypeInterview,
	ModuleTypeExpertSession,
}

func (t ModuleType) Valid() bool {
	for _, mt := range AllModuleTypes {
		if t == mt {
			return true
		}
	}
	return false
}

func (t ModuleType) String() string { return string(t) }

// Product is a named container of one or more Modules.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    *bool     `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Module belongs to exactly one Product. Sequence is used for display
// ordering only; it never gates progression.
type Module struct {
	ID        string     `json:"id"`
	ProductID string     `json:"product_id"`
	Name      string     `json:"name"`
	Type      ModuleType `json:"type"`
	Sequence  int        `json:"sequence"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

// NewProduct contains information needed to create a new Product.
type NewProduct struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (np *NewProduct) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

// UpdateProduct defines what information may be provided to modify an existing Product.
type UpdateProduct struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (up *UpdateProduct) Validate(orig Product, validate *validator.Validate) error {
	name := core.CleanString(up.Name)
	if name != "" {
		up.Name = name
	} else {
		up.Name = orig.Name
	}

	desc := core.CleanString(up.Description)
	if desc != "" {
		up.Description = desc
	} else {
		up.Description = orig.Description
	}

	return validate.Struct(up)
}

// NewModule contains information needed to add a Module to a Product.
type NewModule struct {
	Name     string     `json:"name" validate:"required"`
	Type     ModuleType `json:"type" validate:"required,moduletype"`
	Sequence int        `json:"sequence" validate:"min=0"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	return validate.Struct(nm)
}

// UpdateModule defines what information may be provided to modify an existing Module.
// A Module cannot move to another Product.
type UpdateModule struct {
	Name     string     `json:"name"`
	Type     ModuleType `json:"type" validate:"omitempty,moduletype"`
	Sequence *int       `json:"sequence" validate:"omitempty,min=0"`
}

func (um *UpdateModule) Validate(orig Module, validate *validator.Validate) error {
	name := core.CleanString(um.Name)
	if name != "" {
		um.Name = name
	} else {
		um.Name = orig.Name
	}

	if um.Type == "" {
		um.Type = orig.Type
	}

	return validate.Struct(um)
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (f *QueryFilter) Clean() {
	f.Search = core.CleanString(f.Search)
}
