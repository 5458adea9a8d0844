package extract

import (
	"fmt"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
)

// ConfidenceScore is the fixed confidence reported for model-based extraction.
const ConfidenceScore = 0.9

// Provenance records where a parsed order came from.
type Provenance struct {
	Filename string
	Model    string
	Tier     string
	Pages    int
}

// Notes renders the free-text extraction note stored with a parsed order.
func (p Provenance) Notes() string {
	if p.Tier == "" {
		return fmt.Sprintf("Extracted from %s using Ollama (%s)", p.Filename, p.Model)
	}
	return fmt.Sprintf("Extracted from %s (%s text) using Ollama (%s)", p.Filename, p.Tier, p.Model)
}

// MapOrder converts a decoded model response into typed drafts.
//
// Required: patient.medical_record_number, patient.first_name,
// patient.last_name, prescriber.first_name, prescriber.last_name and, per
// device, name and sku. A missing or null required value fails with
// IncompleteExtraction naming its path. A missing NPI becomes the sentinel, a
// missing device quantity becomes 1, and costs are never read.
func MapOrder(doc map[string]any, prov Provenance) (entity.ParsedOrder, error) {
	var out entity.ParsedOrder

	patient, err := section(doc, "patient")
	if err != nil {
		return out, err
	}
	pr := reader{obj: patient, prefix: "patient"}
	out.Patient = entity.PatientDraft{
		MedicalRecordNumber: pr.required("medical_record_number"),
		FirstName:           pr.required("first_name"),
		LastName:            pr.required("last_name"),
		Age:                 pr.optionalInt("age"),
	}
	if pr.err != nil {
		return entity.ParsedOrder{}, pr.err
	}

	prescriber, err := section(doc, "prescriber")
	if err != nil {
		return entity.ParsedOrder{}, err
	}
	rr := reader{obj: prescriber, prefix: "prescriber"}
	out.Prescriber = entity.PrescriberDraft{
		FirstName:     rr.required("first_name"),
		LastName:      rr.required("last_name"),
		NPI:           rr.optionalString("npi"),
		PhoneNumber:   rr.optionalString("phone_number"),
		Email:         rr.optionalString("email"),
		ClinicName:    rr.optionalString("clinic_name"),
		ClinicAddress: rr.optionalString("clinic_address"),
	}
	if rr.err != nil {
		return entity.ParsedOrder{}, rr.err
	}
	if out.Prescriber.NPI == nil {
		sentinel := entity.SentinelNPI
		out.Prescriber.NPI = &sentinel
	}

	devices, _ := doc["devices"].([]any)
	out.Devices = make([]entity.DeviceDraft, 0, len(devices))
	for i, item := range devices {
		prefix := fmt.Sprintf("devices[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			return entity.ParsedOrder{}, incomplete(prefix)
		}
		dr := reader{obj: obj, prefix: prefix}
		d := entity.DeviceDraft{
			Name:     dr.required("name"),
			SKU:      dr.optionalString("sku"),
			Quantity: 1,
		}
		if d.SKU == nil && dr.err == nil {
			dr.err = incomplete(prefix + ".sku")
		}
		if q := dr.optionalInt("quantity"); q != nil {
			d.Quantity = *q
		}
		if dr.err != nil {
			return entity.ParsedOrder{}, dr.err
		}
		out.Devices = append(out.Devices, d)
	}

	if order, ok := doc["order"].(map[string]any); ok {
		om := reader{obj: order, prefix: "order"}
		out.ItemName = om.optionalString("item_name")
		out.ItemQuantity = om.optionalInt("item_quantity")
		out.ReasonPrescribed = om.optionalString("reason_prescribed")
	}

	out.ConfidenceScore = ConfidenceScore
	out.ExtractionNotes = prov.Notes()
	out.Tier = prov.Tier
	out.Pages = prov.Pages
	return out, nil
}

func section(doc map[string]any, key string) (map[string]any, error) {
	obj, ok := doc[key].(map[string]any)
	if !ok {
		return nil, incomplete(key)
	}
	return obj, nil
}

// reader pulls typed values out of one JSON object and remembers the first
// missing required path.
type reader struct {
	obj    map[string]any
	prefix string
	err    error
}

func (r *reader) required(key string) string {
	s, ok := r.obj[key].(string)
	if (!ok || s == "") && r.err == nil {
		r.err = incomplete(r.prefix + "." + key)
	}
	return s
}

func (r *reader) optionalString(key string) *string {
	s, ok := r.obj[key].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func (r *reader) optionalInt(key string) *int {
	f, ok := r.obj[key].(float64)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func incomplete(path string) error {
	return common.IncompleteExtraction(path)
}
