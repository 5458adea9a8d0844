package entity

// Extraction tiers.
const (
	TierNative = "native"
	TierOCR    = "ocr"
)

// ParsedOrder is the output of the extraction path. Costs are never
// populated from a document.
type ParsedOrder struct {
	Patient    PatientDraft    `json:"patient"`
	Prescriber PrescriberDraft `json:"prescriber"`
	Devices    []DeviceDraft   `json:"devices"`
	OrderFields

	ConfidenceScore float64 `json:"confidence_score"`
	ExtractionNotes string  `json:"extraction_notes"`
	Tier            string  `json:"tier"`
	Pages           int     `json:"pages"`
}

// Request turns a parsed order into a persistence request that resolves
// every entity by natural key.
func (p ParsedOrder) Request() OrderRequest {
	patient := p.Patient
	prescriber := p.Prescriber
	return OrderRequest{
		OrderFields: p.OrderFields,
		Patient:     &patient,
		Prescriber:  &prescriber,
		Devices:     append([]DeviceDraft(nil), p.Devices...),
	}
}
