package entity

// SentinelNPI is what the extraction prompt asks the model to emit when no NPI is present.
const SentinelNPI = "0000000000"

// Prescriber is a stored prescriber. NPI is unique when present.
type Prescriber struct {
	ID            int     `json:"id"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	NPI           *string `json:"npi"`
	PhoneNumber   *string `json:"phone_number"`
	Email         *string `json:"email"`
	ClinicName    *string `json:"clinic_name"`
	ClinicAddress *string `json:"clinic_address"`
}

// PrescriberDraft is prescriber data awaiting resolution.
type PrescriberDraft struct {
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	NPI           *string `json:"npi"`
	PhoneNumber   *string `json:"phone_number"`
	Email         *string `json:"email"`
	ClinicName    *string `json:"clinic_name"`
	ClinicAddress *string `json:"clinic_address"`
}

// HasNPI reports whether the draft carries a non-blank NPI.
func (d PrescriberDraft) HasNPI() bool {
	return d.NPI != nil && *d.NPI != ""
}
