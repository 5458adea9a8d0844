package orders

import (
	"fmt"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
)

// ValidateRequest enforces the request shape before any storage access:
// exactly one of id or draft per relationship, one device input kind, and
// the column constraints of every draft.
func ValidateRequest(req entity.OrderRequest) error {
	switch {
	case req.PatientID == nil && req.Patient == nil:
		return common.InvalidRequestShape("Either patient_id or patient must be provided", "patient_id", "patient")
	case req.PatientID != nil && req.Patient != nil:
		return common.InvalidRequestShape("Provide either patient_id or patient, not both", "patient_id", "patient")
	case req.PrescriberID == nil && req.Prescriber == nil:
		return common.InvalidRequestShape("Either prescriber_id or prescriber must be provided", "prescriber_id", "prescriber")
	case req.PrescriberID != nil && req.Prescriber != nil:
		return common.InvalidRequestShape("Provide either prescriber_id or prescriber, not both", "prescriber_id", "prescriber")
	case len(req.DeviceIDs) > 0 && len(req.Devices) > 0:
		return common.InvalidRequestShape("Provide either device_ids or devices, not both", "device_ids", "devices")
	}

	v := common.NewValidator()
	if req.Patient != nil {
		validatePatient(v, "patient", *req.Patient)
	}
	if req.Prescriber != nil {
		validatePrescriber(v, "prescriber", *req.Prescriber)
	}
	for i, d := range req.Devices {
		validateDevice(v, fmt.Sprintf("devices[%d]", i), d)
	}
	for i, id := range req.DeviceIDs {
		v.Check(id > 0, fmt.Sprintf("device_ids[%d]", i), "must be a positive id")
	}
	v.Optional("item_name", req.ItemName, common.Length(0, 255))
	v.Optional("item_quantity", req.ItemQuantity, common.AtLeast(1))
	v.Optional("order_cost_raw", req.OrderCostRaw, common.AtLeast(0))
	v.Optional("order_cost_to_insurer", req.OrderCostToInsurer, common.AtLeast(0))
	return v.Err()
}

func validatePatient(v *common.Validator, prefix string, d entity.PatientDraft) {
	v.Field(prefix+".medical_record_number", d.MedicalRecordNumber, common.Required, common.Length(1, 50))
	v.Field(prefix+".first_name", d.FirstName, common.Required, common.Length(1, 100))
	v.Field(prefix+".last_name", d.LastName, common.Required, common.Length(1, 100))
	v.Optional(prefix+".age", d.Age, common.Between(0, 150))
}

func validatePrescriber(v *common.Validator, prefix string, d entity.PrescriberDraft) {
	v.Field(prefix+".first_name", d.FirstName, common.Required, common.Length(1, 100))
	v.Field(prefix+".last_name", d.LastName, common.Required, common.Length(1, 100))
	if d.HasNPI() {
		v.Field(prefix+".npi", d.NPI, common.NPI)
	}
	v.Optional(prefix+".phone_number", d.PhoneNumber, common.Length(0, 20))
	v.Optional(prefix+".email", d.Email, common.Length(0, 255), common.Email)
	v.Optional(prefix+".clinic_name", d.ClinicName, common.Length(0, 255))
}

func validateDevice(v *common.Validator, prefix string, d entity.DeviceDraft) {
	v.Field(prefix+".name", d.Name, common.Required, common.Length(1, 255))
	v.Optional(prefix+".sku", d.SKU, common.Length(0, 100))
	v.Optional(prefix+".cost_per_unit", d.CostPerUnit, common.AtLeast(0))
	v.Optional(prefix+".device_type", d.DeviceType, common.Length(0, 100))
	v.Check(d.Quantity >= 0, prefix+".quantity", "must be positive when set")
}
