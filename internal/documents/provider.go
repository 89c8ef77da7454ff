// internal/documents/provider.go
//
// Document fact lookup. Uploaded documents are OCR-processed by an
// upstream pipeline and the extracted facts indexed into
// Elasticsearch, one document per (email, document_type). The
// validation engine cross-checks self-declared form data against
// these facts.
package documents

import (
	"context"
	"errors"
)

// Document categories as indexed by the ingestion pipeline.
const (
	DocAadhaarCard      = "aadhar_card"
	DocClass10Marksheet = "class_10_marksheet"
	DocClass12Marksheet = "class_12_marksheet"
	DocJEERankCard      = "jee_rank_card"
)

// ErrFactsNotFound means the lookup succeeded but no documents exist
// for the applicant. The caller records a validation issue rather than
// failing the batch.
var ErrFactsNotFound = errors.New("no documents found for applicant")

type AadhaarFacts struct {
	Name          string `json:"name"`
	AadhaarNumber string `json:"aadhaar_number"`
	DOB           string `json:"dob"`
}

type Class10Facts struct {
	Name     string  `json:"name"`
	Year     int     `json:"year"`
	AvgMarks float64 `json:"avg_marks"`
}

type Class12Facts struct {
	Name      string  `json:"name"`
	Year      int     `json:"year"`
	Physics   float64 `json:"physics"`
	Chemistry float64 `json:"chemistry"`
	Maths     float64 `json:"maths"`
}

type JEEFacts struct {
	Name string `json:"name"`
	Year int    `json:"year"`
	Rank int    `json:"rank"`
}

// Facts holds everything extracted from one applicant's documents. A
// nil field means that document category was never uploaded.
type Facts struct {
	Aadhaar *AadhaarFacts `json:"aadhaar,omitempty"`
	Class10 *Class10Facts `json:"class10,omitempty"`
	Class12 *Class12Facts `json:"class12,omitempty"`
	JEE     *JEEFacts     `json:"jee,omitempty"`
}

// Complete reports whether every required document category is present.
func (f *Facts) Complete() bool {
	return f.Aadhaar != nil && f.Class10 != nil && f.Class12 != nil && f.JEE != nil
}

// Provider fetches the extracted document facts for one applicant.
type Provider interface {
	Fetch(ctx context.Context, email string) (*Facts, error)
}
