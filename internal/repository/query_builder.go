package repository

import (
	"fmt"
	"strings"

	"property-agent/internal/model"
)

// DefaultSearchLimit caps the rows returned when no positive limit is configured
const DefaultSearchLimit = 5

// propertyColumns is the fixed projection of a property search. Row mapping
// into model.Property depends on these aliases.
var propertyColumns = []string{
	"p.id",
	"p.number",
	"p.floor",
	"p.type",
	"p.area",
	"p.bedrooms",
	"p.bathrooms",
	"p.balcony",
	"p.terrace",
	"p.furnished",
	"p.pet_friendly",
	"p.commercial_value",
	"p.monthly_maintenance",
	"p.status",
	"b.name AS building_name",
	"b.address AS building_address",
	"b.district AS district",
}

const propertyFrom = "property_infrastructure.property p " +
	"JOIN property_infrastructure.building b ON p.building_id = b.id"

type predicate struct {
	field    model.FieldKey
	column   string
	operator string
}

// predicates are emitted in this order, one per collected field
var predicates = []predicate{
	{model.FieldDistrict, "b.district", "="},
	{model.FieldMinArea, "p.area", ">="},
	{model.FieldStatus, "p.status", "="},
	{model.FieldMaxBudget, "p.commercial_value", "<="},
	{model.FieldBedrooms, "p.bedrooms", "="},
	{model.FieldPetFriendly, "p.pet_friendly", "="},
	{model.FieldBalcony, "p.balcony", "="},
	{model.FieldTerrace, "p.terrace", "="},
	{model.FieldFurnished, "p.furnished", "="},
	{model.FieldBathrooms, "p.bathrooms", "="},
}

// BuildPropertySearchQuery compiles filters into a read-only SELECT. Filter
// values only ever travel in Args; the SQL text is built from the fixed
// column and predicate tables above. Identical input yields identical output.
func BuildPropertySearchQuery(filters model.FilterSet, limit int) model.QueryPlan {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var whereClauses []string
	args := []any{}
	argIndex := 1

	for _, p := range predicates {
		value := filters.Get(p.field)
		if value == nil {
			continue
		}
		whereClauses = append(whereClauses, fmt.Sprintf("%s %s $%d", p.column, p.operator, argIndex))
		args = append(args, value)
		argIndex++
	}

	whereClause := "1=1"
	if len(whereClauses) > 0 {
		whereClause = strings.Join(whereClauses, " AND ")
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY p.commercial_value DESC LIMIT %d",
		strings.Join(propertyColumns, ", "),
		propertyFrom,
		whereClause,
		limit,
	)

	return model.QueryPlan{SQL: query, Args: args}
}
