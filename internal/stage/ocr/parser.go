package ocr

import (
	"regexp"
	"strings"

	"github.com/verid-io/verid/internal/domain"
)

// Label patterns seen on identity documents. Compiled once; the parser is a
// pure function over the recognized text.
var (
	nameRe        = regexp.MustCompile(`(?im)^\s*(?:full\s+name|name|surname)\s*[:\-]\s*(.+)$`)
	dobRe         = regexp.MustCompile(`(?i)(?:date\s+of\s+birth|birth\s+date|dob)\s*[:\-]?\s*(\d{4}-\d{2}-\d{2}|\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`)
	docNumberRe   = regexp.MustCompile(`(?i)(?:document\s+(?:no|number)|passport\s+(?:no|number)|licen[cs]e\s+(?:no|number)|id\s+(?:no|number)|card\s+(?:no|number))\s*[.:\-]?\s*([A-Z0-9][A-Z0-9\-]{4,})`)
	nationalityRe = regexp.MustCompile(`(?im)^\s*nationality\s*[:\-]?\s*([A-Za-z][A-Za-z ]*)$`)
	issueDateRe   = regexp.MustCompile(`(?i)(?:date\s+of\s+issue|issue\s+date|issued\s+on)\s*[:\-]?\s*(\d{4}-\d{2}-\d{2}|\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`)
	expiryDateRe  = regexp.MustCompile(`(?i)(?:date\s+of\s+expiry|expiry\s+date|valid\s+until|expires)\s*[:\-]?\s*(\d{4}-\d{2}-\d{2}|\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`)
	pobRe         = regexp.MustCompile(`(?im)^\s*place\s+of\s+birth\s*[:\-]?\s*(.+)$`)
	addressRe     = regexp.MustCompile(`(?im)^\s*address\s*[:\-]?\s*(.+)$`)
	genderRe      = regexp.MustCompile(`(?i)(?:sex|gender)\s*[:\-]?\s*(male|female|[MF])\b`)

	mrzLineRe = regexp.MustCompile(`^[A-Z0-9<]{40,44}$`)
	dmyRe     = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{2,4})$`)
	isoRe     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
)

// ParseFields maps free OCR text onto the structured field set and a
// document-type label. Fields that cannot be recovered stay nil.
func ParseFields(text string) (domain.DocumentType, domain.OCRFields) {
	fields := domain.OCRFields{}

	if m := nameRe.FindStringSubmatch(text); m != nil {
		fields.FullName = cleanValue(m[1])
	}
	if m := dobRe.FindStringSubmatch(text); m != nil {
		fields.DateOfBirth = strPtr(normalizeDate(m[1]))
	}
	if m := docNumberRe.FindStringSubmatch(text); m != nil {
		fields.DocumentNumber = cleanValue(m[1])
	}
	if m := nationalityRe.FindStringSubmatch(text); m != nil {
		fields.Nationality = cleanValue(m[1])
	}
	if m := issueDateRe.FindStringSubmatch(text); m != nil {
		fields.IssueDate = strPtr(normalizeDate(m[1]))
	}
	if m := expiryDateRe.FindStringSubmatch(text); m != nil {
		fields.ExpiryDate = strPtr(normalizeDate(m[1]))
	}
	if m := pobRe.FindStringSubmatch(text); m != nil {
		fields.PlaceOfBirth = cleanValue(m[1])
	}
	if m := addressRe.FindStringSubmatch(text); m != nil {
		fields.Address = cleanValue(m[1])
	}
	if m := genderRe.FindStringSubmatch(text); m != nil {
		fields.Gender = strPtr(normalizeGender(m[1]))
	}

	docType := classifyDocument(text)

	if mrz := findMRZ(text); mrz != nil {
		docType = domain.DocPassport
		mergeMRZ(&fields, mrz)
	}

	return docType, fields
}

// classifyDocument picks a label from the closed set by keyword.
func classifyDocument(text string) domain.DocumentType {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "passport"):
		return domain.DocPassport
	case strings.Contains(lower, "driving licence"),
		strings.Contains(lower, "driving license"),
		strings.Contains(lower, "driver's license"),
		strings.Contains(lower, "driver license"):
		return domain.DocDriversLicense
	case strings.Contains(lower, "national id"),
		strings.Contains(lower, "national identity"):
		return domain.DocNationalID
	case strings.Contains(lower, "permanent account number"),
		strings.Contains(lower, "pan card"),
		strings.Contains(lower, "income tax department"):
		return domain.DocPANCard
	case strings.Contains(lower, "identity card"),
		strings.Contains(lower, "id card"):
		return domain.DocIDCard
	default:
		return domain.DocOther
	}
}

// mrzData is the parsed second line of a TD3 machine-readable zone, plus
// the name from the first line.
type mrzData struct {
	fullName       string
	documentNumber string
	nationality    string
	dateOfBirth    string
	gender         string
	expiryDate     string
}

// findMRZ scans for a TD3 passport MRZ: a "P<" line followed by a data line.
func findMRZ(text string) *mrzData {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if mrzLineRe.MatchString(line) {
			lines = append(lines, line)
		}
	}

	for i := 0; i+1 < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "P<") || len(lines[i+1]) < 28 {
			continue
		}

		data := &mrzData{fullName: mrzName(lines[i])}
		second := lines[i+1]

		data.documentNumber = strings.Trim(second[0:9], "<")
		data.nationality = strings.Trim(second[10:13], "<")
		data.dateOfBirth = mrzDate(second[13:19], true)
		if sex := second[20]; sex == 'M' || sex == 'F' {
			data.gender = string(sex)
		}
		data.expiryDate = mrzDate(second[21:27], false)
		return data
	}
	return nil
}

// mrzName converts "P<UTOSURNAME<<GIVEN<NAMES<<<" to "GIVEN NAMES SURNAME".
func mrzName(line1 string) string {
	if len(line1) < 6 {
		return ""
	}
	namePart := line1[5:]
	parts := strings.SplitN(namePart, "<<", 2)
	surname := strings.ReplaceAll(parts[0], "<", " ")
	given := ""
	if len(parts) == 2 {
		given = strings.ReplaceAll(parts[1], "<", " ")
	}
	return strings.TrimSpace(strings.TrimSpace(given) + " " + strings.TrimSpace(surname))
}

// mrzDate converts YYMMDD to DD.MM.YYYY. Birth dates pivot on 30 into the
// 1900s; expiry dates are always in the 2000s.
func mrzDate(raw string, birth bool) string {
	if len(raw) != 6 || strings.ContainsRune(raw, '<') {
		return ""
	}
	yy, mm, dd := raw[0:2], raw[2:4], raw[4:6]

	century := "20"
	if birth && yy >= "30" {
		century = "19"
	}
	return dd + "." + mm + "." + century + yy
}

func mergeMRZ(fields *domain.OCRFields, mrz *mrzData) {
	if fields.FullName == nil && mrz.fullName != "" {
		fields.FullName = &mrz.fullName
	}
	if fields.DocumentNumber == nil && mrz.documentNumber != "" {
		fields.DocumentNumber = &mrz.documentNumber
	}
	if fields.Nationality == nil && mrz.nationality != "" {
		fields.Nationality = &mrz.nationality
	}
	if fields.DateOfBirth == nil && mrz.dateOfBirth != "" {
		fields.DateOfBirth = &mrz.dateOfBirth
	}
	if fields.Gender == nil && mrz.gender != "" {
		fields.Gender = &mrz.gender
	}
	if fields.ExpiryDate == nil && mrz.expiryDate != "" {
		fields.ExpiryDate = &mrz.expiryDate
	}
}

// normalizeDate renders recognized dates as DD.MM.YYYY where possible.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)

	if m := isoRe.FindStringSubmatch(raw); m != nil {
		return m[3] + "." + m[2] + "." + m[1]
	}
	if m := dmyRe.FindStringSubmatch(raw); m != nil {
		dd, mm, yyyy := m[1], m[2], m[3]
		if len(dd) == 1 {
			dd = "0" + dd
		}
		if len(mm) == 1 {
			mm = "0" + mm
		}
		if len(yyyy) == 2 {
			yyyy = "20" + yyyy
		}
		return dd + "." + mm + "." + yyyy
	}
	return raw
}

func normalizeGender(raw string) string {
	switch strings.ToLower(raw) {
	case "male", "m":
		return "M"
	default:
		return "F"
	}
}

func cleanValue(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	return &v
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
