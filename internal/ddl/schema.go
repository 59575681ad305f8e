package ddl

import (
	"fmt"

	"tripetl/internal/trip"
)

// Dimension tables. Names are fixed; only the fact table is configurable.
const (
	VendorsTable = "vendors"
	ZonesTable   = "zones"
)

// factTypes types every fact column listed in trip.FactColumns.
var factTypes = map[string]ColumnDef{
	"vendor_id":             {Type: BigInt, Nullable: true, References: VendorsTable + ".vendor_id"},
	"pickup_datetime":       {Type: Timestamp, Nullable: true},
	"dropoff_datetime":      {Type: Timestamp, Nullable: true},
	"pickup_lat":            {Type: Float, Nullable: true},
	"pickup_lon":            {Type: Float, Nullable: true},
	"dropoff_lat":           {Type: Float, Nullable: true},
	"dropoff_lon":           {Type: Float, Nullable: true},
	"pickup_zone_id":        {Type: BigInt, Nullable: true, References: ZonesTable + ".zone_id"},
	"dropoff_zone_id":       {Type: BigInt, Nullable: true, References: ZonesTable + ".zone_id"},
	"passenger_count":       {Type: Int, Nullable: true},
	"trip_distance_km":      {Type: Float, Nullable: true},
	"trip_duration_seconds": {Type: Float, Nullable: true},
	"fare_amount":           {Type: Float, Nullable: true},
	"tip_amount":            {Type: Float, Nullable: true},
	"trip_speed_kmh":        {Type: Float, Nullable: true},
	"fare_per_km":           {Type: Float, Nullable: true},
	"tip_pct":               {Type: Float, Nullable: true},
	"hour_of_day":           {Type: Int, Nullable: true},
	"day_of_week":           {Type: String, Size: 16, Nullable: true},
}

// StarSchema returns the vendors, zones and fact table definitions in
// creation order. The fact table gets a surrogate "id" followed by
// trip.FactColumns.
func StarSchema(factTable string) ([]TableDef, error) {
	if factTable == "" {
		return nil, fmt.Errorf("ddl: fact table name must not be empty")
	}

	vendors := TableDef{
		Name: VendorsTable,
		Columns: []ColumnDef{
			{Name: "vendor_id", Type: Identity, PrimaryKey: true},
			{Name: "vendor_code", Type: String, Size: 64, Unique: true},
			{Name: "vendor_name", Type: String, Size: 255, Nullable: true},
		},
	}
	zones := TableDef{
		Name: ZonesTable,
		Columns: []ColumnDef{
			{Name: "zone_id", Type: Identity, PrimaryKey: true},
			{Name: "zone_name", Type: String, Size: 255, Nullable: true},
		},
	}

	fact := TableDef{Name: factTable}
	fact.Columns = append(fact.Columns, ColumnDef{Name: "id", Type: Identity, PrimaryKey: true})
	for _, name := range trip.FactColumns {
		c, ok := factTypes[name]
		if !ok {
			return nil, fmt.Errorf("ddl: no type for fact column %q", name)
		}
		c.Name = name
		fact.Columns = append(fact.Columns, c)
	}

	return []TableDef{vendors, zones, fact}, nil
}
