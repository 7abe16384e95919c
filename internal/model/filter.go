package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldKey is the canonical name of a search filter.
type FieldKey string

// Essential filters, in the order the agent asks for them.
const (
	FieldDistrict  FieldKey = "district"
	FieldMinArea   FieldKey = "min_area"
	FieldStatus    FieldKey = "status"
	FieldMaxBudget FieldKey = "max_budget"
	FieldBedrooms  FieldKey = "bedrooms"
)

// Optional filters.
const (
	FieldPetFriendly FieldKey = "pet_friendly"
	FieldBalcony     FieldKey = "balcony"
	FieldTerrace     FieldKey = "terrace"
	FieldFurnished   FieldKey = "furnished"
	FieldBathrooms   FieldKey = "bathrooms"
)

// EssentialFields lists the required filters in fixed priority order.
var EssentialFields = []FieldKey{FieldDistrict, FieldMinArea, FieldStatus, FieldMaxBudget, FieldBedrooms}

// OptionalFields lists the refinement filters.
var OptionalFields = []FieldKey{FieldPetFriendly, FieldBalcony, FieldTerrace, FieldFurnished, FieldBathrooms}

// IsEssential reports whether key belongs to the essential group.
func (k FieldKey) IsEssential() bool {
	for _, f := range EssentialFields {
		if f == k {
			return true
		}
	}
	return false
}

// IsOptional reports whether key belongs to the optional group.
func (k FieldKey) IsOptional() bool {
	for _, f := range OptionalFields {
		if f == k {
			return true
		}
	}
	return false
}

// PropertyStatus is the occupancy state of a property.
type PropertyStatus string

const (
	StatusAvailable   PropertyStatus = "AVAILABLE"
	StatusOccupied    PropertyStatus = "OCCUPIED"
	StatusMaintenance PropertyStatus = "MAINTENANCE"
	StatusSold        PropertyStatus = "SOLD"
)

var statusAliases = map[string]PropertyStatus{
	"disponible":       StatusAvailable,
	"libre":            StatusAvailable,
	"ocupado":          StatusOccupied,
	"ocupada":          StatusOccupied,
	"mantenimiento":    StatusMaintenance,
	"en mantenimiento": StatusMaintenance,
	"vendido":          StatusSold,
	"vendida":          StatusSold,
}

// ParseStatus upper-cases s and resolves Spanish aliases. The result is not
// guaranteed to be a known status; validation decides that.
func ParseStatus(s string) PropertyStatus {
	s = strings.TrimSpace(s)
	if st, ok := statusAliases[strings.ToLower(s)]; ok {
		return st
	}
	return PropertyStatus(strings.ToUpper(s))
}

// EssentialFilters are the filters that must all be present before a search runs.
type EssentialFilters struct {
	District  *string         `json:"district,omitempty" validate:"omitempty,min=1,max=100"`
	MinArea   *float64        `json:"min_area,omitempty" validate:"omitempty,gt=0"`
	Status    *PropertyStatus `json:"status,omitempty" validate:"omitempty,oneof=AVAILABLE OCCUPIED MAINTENANCE SOLD"`
	MaxBudget *float64        `json:"max_budget,omitempty" validate:"omitempty,gt=0"`
	Bedrooms  *int            `json:"bedrooms,omitempty" validate:"omitempty,min=0,max=20"`
}

// OptionalFilters refine a search but never block it.
type OptionalFilters struct {
	PetFriendly *bool `json:"pet_friendly,omitempty"`
	Balcony     *bool `json:"balcony,omitempty"`
	Terrace     *bool `json:"terrace,omitempty"`
	Furnished   *bool `json:"furnished,omitempty"`
	Bathrooms   *int  `json:"bathrooms,omitempty" validate:"omitempty,min=0,max=20"`
}

// FilterSet is the collected filter record of a conversation. A nil field has
// not been collected yet.
type FilterSet struct {
	EssentialFilters
	OptionalFilters
}

// Missing returns the essential fields not yet collected, in priority order.
func (e EssentialFilters) Missing() []FieldKey {
	var missing []FieldKey
	for _, key := range EssentialFields {
		if !e.has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

func (e EssentialFilters) has(key FieldKey) bool {
	switch key {
	case FieldDistrict:
		return e.District != nil
	case FieldMinArea:
		return e.MinArea != nil
	case FieldStatus:
		return e.Status != nil
	case FieldMaxBudget:
		return e.MaxBudget != nil
	case FieldBedrooms:
		return e.Bedrooms != nil
	}
	return false
}

// IsEmpty reports whether no field at all has been collected.
func (f FilterSet) IsEmpty() bool {
	return len(f.Fields()) == 0
}

// Get returns the value of key, or nil when it has not been collected.
func (f FilterSet) Get(key FieldKey) any {
	switch key {
	case FieldDistrict:
		return deref(f.District)
	case FieldMinArea:
		return deref(f.MinArea)
	case FieldStatus:
		if f.Status == nil {
			return nil
		}
		return string(*f.Status)
	case FieldMaxBudget:
		return deref(f.MaxBudget)
	case FieldBedrooms:
		return deref(f.Bedrooms)
	case FieldPetFriendly:
		return deref(f.PetFriendly)
	case FieldBalcony:
		return deref(f.Balcony)
	case FieldTerrace:
		return deref(f.Terrace)
	case FieldFurnished:
		return deref(f.Furnished)
	case FieldBathrooms:
		return deref(f.Bathrooms)
	}
	return nil
}

// Fields returns the collected values keyed by canonical name.
func (f FilterSet) Fields() map[FieldKey]any {
	out := make(map[FieldKey]any)
	for _, key := range append(append([]FieldKey{}, EssentialFields...), OptionalFields...) {
		if v := f.Get(key); v != nil {
			out[key] = v
		}
	}
	return out
}

// Merge overwrites f with every non-nil field of update (last write wins).
func (f *FilterSet) Merge(update FilterSet) {
	if update.District != nil {
		f.District = update.District
	}
	if update.MinArea != nil {
		f.MinArea = update.MinArea
	}
	if update.Status != nil {
		f.Status = update.Status
	}
	if update.MaxBudget != nil {
		f.MaxBudget = update.MaxBudget
	}
	if update.Bedrooms != nil {
		f.Bedrooms = update.Bedrooms
	}
	if update.PetFriendly != nil {
		f.PetFriendly = update.PetFriendly
	}
	if update.Balcony != nil {
		f.Balcony = update.Balcony
	}
	if update.Terrace != nil {
		f.Terrace = update.Terrace
	}
	if update.Furnished != nil {
		f.Furnished = update.Furnished
	}
	if update.Bathrooms != nil {
		f.Bathrooms = update.Bathrooms
	}
}

// Clone returns a deep copy of f.
func (f FilterSet) Clone() FilterSet {
	var out FilterSet
	out.Merge(FilterSet{
		EssentialFilters: EssentialFilters{
			District:  clonePtr(f.District),
			MinArea:   clonePtr(f.MinArea),
			Status:    clonePtr(f.Status),
			MaxBudget: clonePtr(f.MaxBudget),
			Bedrooms:  clonePtr(f.Bedrooms),
		},
		OptionalFilters: OptionalFilters{
			PetFriendly: clonePtr(f.PetFriendly),
			Balcony:     clonePtr(f.Balcony),
			Terrace:     clonePtr(f.Terrace),
			Furnished:   clonePtr(f.Furnished),
			Bathrooms:   clonePtr(f.Bathrooms),
		},
	})
	return out
}

// Set assigns a loosely typed value to key, converting between compatible
// Go types. It returns a *ValidationError when the value has the wrong type.
func (f *FilterSet) Set(key FieldKey, value any) error {
	switch key {
	case FieldDistrict:
		s, ok := value.(string)
		if !ok {
			return typeError(key, "string", value)
		}
		s = strings.TrimSpace(s)
		f.District = &s
	case FieldMinArea:
		v, ok := toFloat(value)
		if !ok {
			return typeError(key, "number", value)
		}
		f.MinArea = &v
	case FieldStatus:
		s, ok := value.(string)
		if !ok {
			return typeError(key, "string", value)
		}
		st := ParseStatus(s)
		f.Status = &st
	case FieldMaxBudget:
		v, ok := toFloat(value)
		if !ok {
			return typeError(key, "number", value)
		}
		f.MaxBudget = &v
	case FieldBedrooms:
		v, ok := toInt(value)
		if !ok {
			return typeError(key, "integer", value)
		}
		f.Bedrooms = &v
	case FieldPetFriendly, FieldBalcony, FieldTerrace, FieldFurnished:
		b, ok := value.(bool)
		if !ok {
			return typeError(key, "boolean", value)
		}
		switch key {
		case FieldPetFriendly:
			f.PetFriendly = &b
		case FieldBalcony:
			f.Balcony = &b
		case FieldTerrace:
			f.Terrace = &b
		case FieldFurnished:
			f.Furnished = &b
		}
	case FieldBathrooms:
		v, ok := toInt(value)
		if !ok {
			return typeError(key, "integer", value)
		}
		f.Bathrooms = &v
	default:
		return &ValidationError{Field: key, Message: "unknown filter"}
	}
	return nil
}

// ValidationError describes why a filter group was rejected.
type ValidationError struct {
	Group   string
	Field   FieldKey
	Message string
}

func (e *ValidationError) Error() string {
	if e.Group != "" {
		return fmt.Sprintf("invalid %s filters: %s: %s", e.Group, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid filter %s: %s", e.Field, e.Message)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateEssentials builds the essential group from current plus values and
// checks it against the schema. On success it returns only the fields present
// in values; on failure nothing from values may be applied.
func ValidateEssentials(values map[FieldKey]any, current EssentialFilters) (EssentialFilters, error) {
	update, merged, err := buildGroup(values, FilterSet{EssentialFilters: current}, "essential")
	if err != nil {
		return EssentialFilters{}, err
	}
	if err := validateStruct(merged.EssentialFilters, "essential"); err != nil {
		return EssentialFilters{}, err
	}
	return update.EssentialFilters, nil
}

// ValidateOptionals is the optional-group counterpart of ValidateEssentials.
func ValidateOptionals(values map[FieldKey]any, current OptionalFilters) (OptionalFilters, error) {
	update, merged, err := buildGroup(values, FilterSet{OptionalFilters: current}, "optional")
	if err != nil {
		return OptionalFilters{}, err
	}
	if err := validateStruct(merged.OptionalFilters, "optional"); err != nil {
		return OptionalFilters{}, err
	}
	return update.OptionalFilters, nil
}

func buildGroup(values map[FieldKey]any, current FilterSet, group string) (update, merged FilterSet, err error) {
	merged = current.Clone()
	for key, value := range values {
		if err := update.Set(key, value); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				ve.Group = group
			}
			return FilterSet{}, FilterSet{}, err
		}
	}
	merged.Merge(update)
	return update, merged, nil
}

func validateStruct(s any, group string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Group:   group,
			Field:   structFieldKeys[fe.StructField()],
			Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
		}
	}
	return &ValidationError{Group: group, Message: err.Error()}
}

var structFieldKeys = map[string]FieldKey{
	"District":    FieldDistrict,
	"MinArea":     FieldMinArea,
	"Status":      FieldStatus,
	"MaxBudget":   FieldMaxBudget,
	"Bedrooms":    FieldBedrooms,
	"PetFriendly": FieldPetFriendly,
	"Balcony":     FieldBalcony,
	"Terrace":     FieldTerrace,
	"Furnished":   FieldFurnished,
	"Bathrooms":   FieldBathrooms,
}

func typeError(key FieldKey, want string, got any) error {
	return &ValidationError{Field: key, Message: fmt.Sprintf("expected %s, got %T", want, got)}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
