package entity

// Patient is a stored patient, identified by medical record number.
type Patient struct {
	ID                  int    `json:"id"`
	MedicalRecordNumber string `json:"medical_record_number"`
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	Age                 *int   `json:"age"`
}

// PatientDraft is patient data awaiting resolution. Age nil means unknown.
type PatientDraft struct {
	MedicalRecordNumber string `json:"medical_record_number"`
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	Age                 *int   `json:"age"`
}
