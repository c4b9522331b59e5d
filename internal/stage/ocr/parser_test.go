package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verid-io/verid/internal/domain"
)

func TestParseFields_LabeledDocument(t *testing.T) {
	text := `NATIONAL IDENTITY CARD
Name: JANE DOE
Date of Birth: 12/03/1990
Document No: AB1234567
Nationality: Utopian
Date of Issue: 2020-01-15
Date of Expiry: 15/01/2030
Place of Birth: Springfield
Address: 42 Main Street, Springfield
Sex: F`

	docType, fields := ParseFields(text)

	assert.Equal(t, domain.DocNationalID, docType)

	require.NotNil(t, fields.FullName)
	assert.Equal(t, "JANE DOE", *fields.FullName)

	require.NotNil(t, fields.DateOfBirth)
	assert.Equal(t, "12.03.1990", *fields.DateOfBirth)

	require.NotNil(t, fields.DocumentNumber)
	assert.Equal(t, "AB1234567", *fields.DocumentNumber)

	require.NotNil(t, fields.Nationality)
	assert.Equal(t, "Utopian", *fields.Nationality)

	require.NotNil(t, fields.IssueDate)
	assert.Equal(t, "15.01.2020", *fields.IssueDate)

	require.NotNil(t, fields.ExpiryDate)
	assert.Equal(t, "15.01.2030", *fields.ExpiryDate)

	require.NotNil(t, fields.PlaceOfBirth)
	assert.Equal(t, "Springfield", *fields.PlaceOfBirth)

	require.NotNil(t, fields.Address)
	assert.Equal(t, "42 Main Street, Springfield", *fields.Address)

	require.NotNil(t, fields.Gender)
	assert.Equal(t, "F", *fields.Gender)
}

func TestParseFields_PassportMRZ(t *testing.T) {
	text := "REPUBLIC OF UTOPIA\n" +
		"P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<\n" +
		"L898902C36UTO7408122F1204159ZE184226B<<<<<10\n"

	docType, fields := ParseFields(text)

	assert.Equal(t, domain.DocPassport, docType)

	require.NotNil(t, fields.FullName)
	assert.Equal(t, "ANNA MARIA ERIKSSON", *fields.FullName)

	require.NotNil(t, fields.DocumentNumber)
	assert.Equal(t, "L898902C3", *fields.DocumentNumber)

	require.NotNil(t, fields.Nationality)
	assert.Equal(t, "UTO", *fields.Nationality)

	require.NotNil(t, fields.DateOfBirth)
	assert.Equal(t, "12.08.1974", *fields.DateOfBirth)

	require.NotNil(t, fields.Gender)
	assert.Equal(t, "F", *fields.Gender)

	require.NotNil(t, fields.ExpiryDate)
	assert.Equal(t, "15.04.2012", *fields.ExpiryDate)
}

func TestParseFields_EmptyText(t *testing.T) {
	docType, fields := ParseFields("")

	assert.Equal(t, domain.DocOther, docType)
	assert.Equal(t, domain.OCRFields{}, fields)
}

func TestClassifyDocument(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected domain.DocumentType
	}{
		{"passport keyword", "PASSPORT\nREPUBLIC OF UTOPIA", domain.DocPassport},
		{"uk driving licence", "DRIVING LICENCE\nDVLA", domain.DocDriversLicense},
		{"us driver license", "DRIVER LICENSE\nSTATE OF EXAMPLE", domain.DocDriversLicense},
		{"national id", "NATIONAL ID\n", domain.DocNationalID},
		{"pan card", "INCOME TAX DEPARTMENT\nPermanent Account Number", domain.DocPANCard},
		{"identity card", "IDENTITY CARD", domain.DocIDCard},
		{"unknown", "meeting notes", domain.DocOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyDocument(tt.text))
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1990-03-12", "12.03.1990"},
		{"12/03/1990", "12.03.1990"},
		{"12-03-1990", "12.03.1990"},
		{"12.03.1990", "12.03.1990"},
		{"1/2/90", "01.02.2090"},
		{"not a date", "not a date"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeDate(tt.in))
		})
	}
}

func TestMRZDate_CenturyPivot(t *testing.T) {
	// Birth years at or above 30 land in the 1900s; below stay in the 2000s.
	assert.Equal(t, "01.01.1930", mrzDate("300101", true))
	assert.Equal(t, "01.01.2029", mrzDate("290101", true))
	// Expiry dates are always 2000s.
	assert.Equal(t, "01.01.2035", mrzDate("350101", false))
	// Filler characters invalidate the date.
	assert.Equal(t, "", mrzDate("35<101", false))
}
