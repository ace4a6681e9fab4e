package domain

// OcrField is one structured key/value pair reported by the OCR engine,
// e.g. VENDOR_NAME or EXPIRATION_DATE.
type OcrField struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// OcrResult is produced once per pipeline run and never mutated afterwards.
// Confidence is in [0,1]; PageCount is at least 1.
type OcrResult struct {
	Text       string     `json:"text"`
	Fields     []OcrField `json:"fields,omitempty"`
	Confidence float64    `json:"confidence"`
	PageCount  int        `json:"pageCount"`
}

// Field returns the value of the first field with the given type, or "".
func (r OcrResult) Field(fieldType string) string {
	for _, f := range r.Fields {
		if f.Type == fieldType {
			return f.Value
		}
	}
	return ""
}

// IdentityFields are the identity-document extraction heuristic's output.
type IdentityFields struct {
	FullName       string `json:"fullName,omitempty"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	DocumentNumber string `json:"documentNumber,omitempty"`
	ExpirationDate string `json:"expirationDate,omitempty"`
	Address        string `json:"address,omitempty"`
}

func (f IdentityFields) Empty() bool {
	return f.FullName == "" && f.DateOfBirth == "" && f.DocumentNumber == "" &&
		f.ExpirationDate == "" && f.Address == ""
}

// ExpenseFields are the expense/receipt extraction heuristic's output.
type ExpenseFields struct {
	Vendor   string `json:"vendor,omitempty"`
	Date     string `json:"date,omitempty"`
	Total    string `json:"total,omitempty"`
	Subtotal string `json:"subtotal,omitempty"`
	Tax      string `json:"tax,omitempty"`
}

func (f ExpenseFields) Empty() bool {
	return f.Vendor == "" && f.Date == "" && f.Total == "" && f.Subtotal == "" && f.Tax == ""
}
