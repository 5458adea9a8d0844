package entity

// Device is a stored catalog device. SKU is unique when present.
type Device struct {
	ID                    int     `json:"id"`
	SKU                   *string `json:"sku"`
	Name                  string  `json:"name"`
	Details               *string `json:"details"`
	AuthorizationRequired bool    `json:"authorization_required"`
	CostPerUnit           *int    `json:"cost_per_unit"` // minor currency units
	DeviceType            *string `json:"device_type"`
}

// DeviceDraft is device data awaiting resolution. Quantity belongs to the
// order line, not to the device row.
type DeviceDraft struct {
	Name                  string  `json:"name"`
	SKU                   *string `json:"sku"`
	Details               *string `json:"details"`
	AuthorizationRequired bool    `json:"authorization_required"`
	CostPerUnit           *int    `json:"cost_per_unit"`
	DeviceType            *string `json:"device_type"`
	Quantity              int     `json:"quantity"`
}

// HasSKU reports whether the draft carries a non-blank SKU.
func (d DeviceDraft) HasSKU() bool {
	return d.SKU != nil && *d.SKU != ""
}
