package entity

import "time"

// OrderFields are the scalar attributes of an order. Costs are minor currency units.
type OrderFields struct {
	ItemName           *string `json:"item_name"`
	OrderCostRaw       *int    `json:"order_cost_raw"`
	OrderCostToInsurer *int    `json:"order_cost_to_insurer"`
	ItemQuantity       *int    `json:"item_quantity"`
	ReasonPrescribed   *string `json:"reason_prescribed"`
}

// Order is a persisted order with its relationships loaded.
type Order struct {
	ID int `json:"id"`
	OrderFields
	PatientID    int           `json:"patient_id"`
	PrescriberID int           `json:"prescriber_id"`
	CreatedAt    time.Time     `json:"created_at"`
	Patient      *Patient      `json:"patient,omitempty"`
	Prescriber   *Prescriber   `json:"prescriber,omitempty"`
	Devices      []OrderDevice `json:"devices"`
}

// OrderDevice is one device line of an order.
type OrderDevice struct {
	Device
	Quantity int `json:"quantity"`
}

// DeviceLine is a resolved device id plus quantity, ready to attach.
type DeviceLine struct {
	DeviceID int
	Quantity int
}

// DuplicateWarning describes an existing order that resembles a new one.
type DuplicateWarning struct {
	OrderID          int      `json:"order_id"`
	ItemName         *string  `json:"item_name"`
	ItemQuantity     *int     `json:"item_quantity"`
	ReasonPrescribed *string  `json:"reason_prescribed"`
	SimilarityScore  int      `json:"similarity_score"`
	Reasons          []string `json:"reasons"`
}

// OrderRequest is the persistence-only input. Exactly one of PatientID and
// Patient, and exactly one of PrescriberID and Prescriber, must be set.
type OrderRequest struct {
	OrderFields
	PatientID    *int             `json:"patient_id,omitempty"`
	Patient      *PatientDraft    `json:"patient,omitempty"`
	PrescriberID *int             `json:"prescriber_id,omitempty"`
	Prescriber   *PrescriberDraft `json:"prescriber,omitempty"`
	DeviceIDs    []int            `json:"device_ids,omitempty"`
	Devices      []DeviceDraft    `json:"devices,omitempty"`
}

// CreateOrderResult is returned by both write paths.
type CreateOrderResult struct {
	Order             *Order             `json:"order"`
	DuplicateWarnings []DuplicateWarning `json:"duplicate_warnings"`
	HasDuplicates     bool               `json:"has_duplicates"`
}
