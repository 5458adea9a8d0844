package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names, shared by the column declarations below and the query builders.
const (
	TablePatients     = "patients"
	TablePrescribers  = "prescribers"
	TableDevices      = "devices"
	TableOrders       = "orders"
	TableOrderDevices = "order_devices"
)

var (
	// PatientsColumns holds the columns for the "patients" table.
	PatientsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "medical_record_number", Type: field.TypeString, Unique: true, Size: 50},
		{Name: "first_name", Type: field.TypeString, Size: 100},
		{Name: "last_name", Type: field.TypeString, Size: 100},
		{Name: "age", Type: field.TypeInt, Nullable: true},
	}
	// PatientsTable holds the schema information for the "patients" table.
	PatientsTable = &schema.Table{
		Name:       TablePatients,
		Columns:    PatientsColumns,
		PrimaryKey: []*schema.Column{PatientsColumns[0]},
	}
	// PrescribersColumns holds the columns for the "prescribers" table.
	PrescribersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "first_name", Type: field.TypeString, Size: 100},
		{Name: "last_name", Type: field.TypeString, Size: 100},
		{Name: "npi", Type: field.TypeString, Unique: true, Nullable: true, Size: 10},
		{Name: "phone_number", Type: field.TypeString, Nullable: true, Size: 20},
		{Name: "email", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "clinic_name", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "clinic_address", Type: field.TypeString, Nullable: true, Size: 2147483647},
	}
	// PrescribersTable holds the schema information for the "prescribers" table.
	PrescribersTable = &schema.Table{
		Name:       TablePrescribers,
		Columns:    PrescribersColumns,
		PrimaryKey: []*schema.Column{PrescribersColumns[0]},
	}
	// DevicesColumns holds the columns for the "devices" table.
	DevicesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sku", Type: field.TypeString, Unique: true, Nullable: true, Size: 100},
		{Name: "name", Type: field.TypeString, Size: 255},
		{Name: "details", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "authorization_required", Type: field.TypeBool, Default: false},
		{Name: "cost_per_unit", Type: field.TypeInt, Nullable: true},
		{Name: "device_type", Type: field.TypeString, Nullable: true, Size: 100},
	}
	// DevicesTable holds the schema information for the "devices" table.
	DevicesTable = &schema.Table{
		Name:       TableDevices,
		Columns:    DevicesColumns,
		PrimaryKey: []*schema.Column{DevicesColumns[0]},
	}
	// OrdersColumns holds the columns for the "orders" table.
	OrdersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "item_name", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "order_cost_raw", Type: field.TypeInt, Nullable: true},
		{Name: "order_cost_to_insurer", Type: field.TypeInt, Nullable: true},
		{Name: "item_quantity", Type: field.TypeInt, Nullable: true},
		{Name: "reason_prescribed", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "patient_id", Type: field.TypeInt},
		{Name: "prescriber_id", Type: field.TypeInt},
	}
	// OrdersTable holds the schema information for the "orders" table.
	OrdersTable = &schema.Table{
		Name:       TableOrders,
		Columns:    OrdersColumns,
		PrimaryKey: []*schema.Column{OrdersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "orders_patients_orders",
				Columns:    []*schema.Column{OrdersColumns[7]},
				RefColumns: []*schema.Column{PatientsColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "orders_prescribers_orders",
				Columns:    []*schema.Column{OrdersColumns[8]},
				RefColumns: []*schema.Column{PrescribersColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "order_patient_id_prescriber_id_created_at",
				Unique:  false,
				Columns: []*schema.Column{OrdersColumns[7], OrdersColumns[8], OrdersColumns[6]},
			},
		},
	}
	// OrderDevicesColumns holds the columns for the "order_devices" table.
	OrderDevicesColumns = []*schema.Column{
		{Name: "order_id", Type: field.TypeInt},
		{Name: "device_id", Type: field.TypeInt},
		{Name: "quantity", Type: field.TypeInt, Default: 1},
	}
	// OrderDevicesTable holds the schema information for the "order_devices" table.
	OrderDevicesTable = &schema.Table{
		Name:       TableOrderDevices,
		Columns:    OrderDevicesColumns,
		PrimaryKey: []*schema.Column{OrderDevicesColumns[0], OrderDevicesColumns[1]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "order_devices_orders_order",
				Columns:    []*schema.Column{OrderDevicesColumns[0]},
				RefColumns: []*schema.Column{OrdersColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "order_devices_devices_device",
				Columns:    []*schema.Column{OrderDevicesColumns[1]},
				RefColumns: []*schema.Column{DevicesColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		PatientsTable,
		PrescribersTable,
		DevicesTable,
		OrdersTable,
		OrderDevicesTable,
	}
)

func init() {
	OrdersTable.ForeignKeys[0].RefTable = PatientsTable
	OrdersTable.ForeignKeys[1].RefTable = PrescribersTable
	OrderDevicesTable.ForeignKeys[0].RefTable = OrdersTable
	OrderDevicesTable.ForeignKeys[1].RefTable = DevicesTable
}

// Migrate creates missing tables, indexes and foreign keys. It never drops.
func (db *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		db.logger.Error("schema migration failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	db.logger.Info("schema migrated", "tables", len(Tables))
	return nil
}
