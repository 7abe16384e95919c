package model

// Property is one row of the property search, joined with its building
type Property struct {
	ID                 int64    `json:"id" db:"id"`
	Number             *string  `json:"number,omitempty" db:"number"`
	Floor              *int     `json:"floor,omitempty" db:"floor"`
	Type               *string  `json:"type,omitempty" db:"type"`
	Area               *float64 `json:"area,omitempty" db:"area"`
	Bedrooms           *int     `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms          *int     `json:"bathrooms,omitempty" db:"bathrooms"`
	Balcony            *bool    `json:"balcony,omitempty" db:"balcony"`
	Terrace            *bool    `json:"terrace,omitempty" db:"terrace"`
	Furnished          *bool    `json:"furnished,omitempty" db:"furnished"`
	PetFriendly        *bool    `json:"pet_friendly,omitempty" db:"pet_friendly"`
	CommercialValue    *float64 `json:"commercial_value,omitempty" db:"commercial_value"`
	MonthlyMaintenance *float64 `json:"monthly_maintenance,omitempty" db:"monthly_maintenance"`
	Status             *string  `json:"status,omitempty" db:"status"`
	BuildingName       *string  `json:"building_name,omitempty" db:"building_name"`
	BuildingAddress    *string  `json:"building_address,omitempty" db:"building_address"`
	District           *string  `json:"district,omitempty" db:"district"`
}

// QueryPlan is a compiled SELECT and its positional arguments
type QueryPlan struct {
	SQL  string
	Args []any
}
