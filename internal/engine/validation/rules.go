// internal/engine/validation/rules.go
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"admissions-workers/internal/common/config"
	"admissions-workers/internal/documents"
	"admissions-workers/internal/models"
)

// Rule keys, used as metric labels. The human-readable message is what
// gets persisted on the applicant record.
const (
	RuleMobileFormat     = "mobile_format"
	RuleAadhaarFormat    = "aadhaar_format"
	RuleClass12Marks     = "class12_marks_range"
	RuleClass10Stale     = "class10_stale"
	RuleClass12Stale     = "class12_stale"
	RuleJEEYear          = "jee_year"
	RuleDocumentsMissing = "documents_missing"
	RuleAadhaarMismatch  = "aadhaar_mismatch"
	RuleClass10Mismatch  = "class10_mismatch"
	RuleClass12Mismatch  = "class12_mismatch"
	RuleJEEMismatch      = "jee_mismatch"
)

var (
	mobilePattern  = regexp.MustCompile(`^\d{10}$`)
	aadhaarPattern = regexp.MustCompile(`^\d{12}$`)
)

// Issue is one failed validation rule.
type Issue struct {
	Rule    string
	Message string
}

func Messages(issues []Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Message
	}
	return out
}

// CheckRecord runs the record-intrinsic rules in a fixed order so that
// re-validating an unchanged record always yields the same issue list.
func CheckRecord(rec *models.ApplicantRecord, cfg config.ValidationConfig) []Issue {
	var issues []Issue

	if !mobilePattern.MatchString(rec.MobileNumber) {
		issues = append(issues, Issue{RuleMobileFormat, "mobile number must be exactly 10 digits"})
	}
	if !aadhaarPattern.MatchString(rec.AadhaarNumber) {
		issues = append(issues, Issue{RuleAadhaarFormat, "aadhaar number must be exactly 12 digits"})
	}

	subjects := []struct {
		name  string
		marks float64
	}{
		{"physics", rec.Class12Physics},
		{"chemistry", rec.Class12Chemistry},
		{"maths", rec.Class12Maths},
	}
	for _, s := range subjects {
		if s.marks < cfg.MinSubjectMarks || s.marks > 100 {
			issues = append(issues, Issue{RuleClass12Marks, fmt.Sprintf(
				"class 12 %s marks must be between %g and 100", s.name, cfg.MinSubjectMarks)})
		}
	}

	if rec.Class10Year < cfg.EvaluationYear-cfg.Class10MaxAge || rec.Class10Year > cfg.EvaluationYear {
		issues = append(issues, Issue{RuleClass10Stale, fmt.Sprintf(
			"class 10 marksheet must be from the last %d years", cfg.Class10MaxAge)})
	}
	if rec.Class12Year < cfg.EvaluationYear-cfg.Class12MaxAge || rec.Class12Year > cfg.EvaluationYear {
		issues = append(issues, Issue{RuleClass12Stale, fmt.Sprintf(
			"class 12 marksheet must be from the last %d years", cfg.Class12MaxAge)})
	}
	if rec.JEEYear != cfg.EvaluationYear {
		issues = append(issues, Issue{RuleJEEYear, fmt.Sprintf(
			"jee attempt must be from %d", cfg.EvaluationYear)})
	}

	return issues
}

// CrossCheck compares the self-declared form data against the facts
// extracted from uploaded documents. A nil facts means no documents
// were found at all. Categories are checked in a fixed order: aadhaar,
// class 10, class 12, JEE.
func CrossCheck(rec *models.ApplicantRecord, facts *documents.Facts, cfg config.ValidationConfig) []Issue {
	if facts == nil {
		return []Issue{{RuleDocumentsMissing, "no documents uploaded"}}
	}

	var issues []Issue
	add := func(rule, message string) {
		issues = append(issues, Issue{rule, message})
	}

	if facts.Aadhaar == nil {
		add(RuleDocumentsMissing, "document missing: "+documents.DocAadhaarCard)
	} else {
		if !nameMatches(rec.Name, facts.Aadhaar.Name) {
			add(RuleAadhaarMismatch, "name does not match aadhar card")
		}
		if rec.AadhaarNumber != facts.Aadhaar.AadhaarNumber {
			add(RuleAadhaarMismatch, "aadhaar number does not match aadhar card")
		}
		if rec.DOB != facts.Aadhaar.DOB {
			add(RuleAadhaarMismatch, "date of birth does not match aadhar card")
		}
	}

	if facts.Class10 == nil {
		add(RuleDocumentsMissing, "document missing: "+documents.DocClass10Marksheet)
	} else {
		if !nameMatches(rec.Name, facts.Class10.Name) {
			add(RuleClass10Mismatch, "name does not match class 10 marksheet")
		}
		if rec.Class10Year != facts.Class10.Year {
			add(RuleClass10Mismatch, "passing year does not match class 10 marksheet")
		}
		if !marksMatch(rec.Class10AvgMarks, facts.Class10.AvgMarks, cfg.MarksTolerance) {
			add(RuleClass10Mismatch, "average marks do not match class 10 marksheet")
		}
	}

	if facts.Class12 == nil {
		add(RuleDocumentsMissing, "document missing: "+documents.DocClass12Marksheet)
	} else {
		if !nameMatches(rec.Name, facts.Class12.Name) {
			add(RuleClass12Mismatch, "name does not match class 12 marksheet")
		}
		if rec.Class12Year != facts.Class12.Year {
			add(RuleClass12Mismatch, "passing year does not match class 12 marksheet")
		}
		if !marksMatch(rec.Class12Physics, facts.Class12.Physics, cfg.MarksTolerance) {
			add(RuleClass12Mismatch, "physics marks do not match class 12 marksheet")
		}
		if !marksMatch(rec.Class12Chemistry, facts.Class12.Chemistry, cfg.MarksTolerance) {
			add(RuleClass12Mismatch, "chemistry marks do not match class 12 marksheet")
		}
		if !marksMatch(rec.Class12Maths, facts.Class12.Maths, cfg.MarksTolerance) {
			add(RuleClass12Mismatch, "maths marks do not match class 12 marksheet")
		}
	}

	if facts.JEE == nil {
		add(RuleDocumentsMissing, "document missing: "+documents.DocJEERankCard)
	} else {
		if !nameMatches(rec.Name, facts.JEE.Name) {
			add(RuleJEEMismatch, "name does not match jee rank card")
		}
		if rec.JEEYear != facts.JEE.Year {
			add(RuleJEEMismatch, "attempt year does not match jee rank card")
		}
		if rec.JEERank != facts.JEE.Rank {
			add(RuleJEEMismatch, "rank does not match jee rank card")
		}
	}

	return issues
}

func nameMatches(declared, extracted string) bool {
	return strings.EqualFold(strings.TrimSpace(declared), strings.TrimSpace(extracted))
}

func marksMatch(declared, extracted, tolerance float64) bool {
	return math.Abs(declared-extracted) <= tolerance
}
