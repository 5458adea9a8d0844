package llm

import (
	"strings"

	"github.com/joseph-ayodele/medorders/internal/entity"
)

var promptFields = []string{
	"- patient.medical_record_number (string): the patient's MRN or medical record number",
	"- patient.first_name (string): the patient's first name",
	"- patient.last_name (string): the patient's last name",
	"- patient.age (number or null): the patient's age in years",
	"",
	"- prescriber.first_name (string): the prescriber's first name",
	"- prescriber.last_name (string): the prescriber's last name",
	`- prescriber.npi (string): the 10-digit NPI number; use "` + entity.SentinelNPI + `" if it is not in the document`,
	"- prescriber.phone_number (string or null): phone number",
	"- prescriber.email (string or null): email address",
	"- prescriber.clinic_name (string or null): clinic or practice name",
	"- prescriber.clinic_address (string or null): clinic address",
	"",
	"- devices (array): every device or item ordered, each with:",
	"  - name (string): device or item name",
	"  - sku (string): SKU or product code",
	"  - quantity (number): quantity ordered; use 1 if the document does not say",
	"",
	"- order.item_name (string or null): the primary item name",
	"- order.item_quantity (number or null): the total quantity",
	"- order.reason_prescribed (string or null): the reason for the order or the diagnosis",
}

const promptShape = `{
  "patient": {
    "medical_record_number": "string",
    "first_name": "string",
    "last_name": "string",
    "age": number_or_null
  },
  "prescriber": {
    "first_name": "string",
    "last_name": "string",
    "npi": "string",
    "phone_number": "string_or_null",
    "email": "string_or_null",
    "clinic_name": "string_or_null",
    "clinic_address": "string_or_null"
  },
  "devices": [
    {
      "name": "string",
      "sku": "string",
      "quantity": number
    }
  ],
  "order": {
    "item_name": "string_or_null",
    "item_quantity": number_or_null,
    "reason_prescribed": "string_or_null"
  }
}`

// BuildExtractionPrompt renders document text into the fixed extraction
// instruction. The output depends only on text.
func BuildExtractionPrompt(text string) string {
	parts := []string{
		"You are a medical document parser. Extract the following information from this medical order document and return it as valid JSON.",
		"",
		"Fields (use null for any field you cannot find; never guess):",
		strings.Join(promptFields, "\n"),
		"",
		"Return ONLY a single JSON object in exactly this shape, with no prose and no markdown fences:",
		promptShape,
		"",
		"Document content:",
		text,
		"",
		"JSON output:",
	}
	return strings.Join(parts, "\n")
}
