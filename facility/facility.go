// Package facility holds the accommodation record being enriched and the
// upload-side normalization that maps raw catalog rows onto it.
package facility

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Enrichment statuses. A facility is never "found" with an empty value.
const (
	StatusPending  = "pending"
	StatusFound    = "found"
	StatusNotFound = "not_found"
)

// Facility is one accommodation record.
type Facility struct {
	ID       string `json:"id"`
	RawID    string `json:"raw_id"`
	Name     string `json:"name"`
	City     string `json:"city"`
	District string `json:"district"`
	Type     string `json:"type"`
	Address  string `json:"address"`

	Website       string  `json:"website"`
	WebsiteSource string  `json:"website_source"`
	WebsiteScore  float64 `json:"website_score"`
	WebsiteStatus string  `json:"website_status"`

	Email       string `json:"email"`
	EmailSource string `json:"email_source"`
	EmailStatus string `json:"email_status"`
}

// New creates a facility with a fresh ID and pending statuses.
func New(rawID, name, city, district, docType, address string) *Facility {
	return &Facility{
		ID:            uuid.New().String(),
		RawID:         rawID,
		Name:          name,
		City:          city,
		District:      district,
		Type:          docType,
		Address:       address,
		WebsiteStatus: StatusPending,
		EmailStatus:   StatusPending,
	}
}

// Validate enforces the enrichment invariants before a write.
func (f *Facility) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("missing id")
	}

	if f.Name == "" {
		return fmt.Errorf("missing name")
	}

	if f.WebsiteStatus == StatusFound && f.Website == "" {
		return fmt.Errorf("website_status is found but website is empty")
	}

	if f.EmailStatus == StatusFound && f.Email == "" {
		return fmt.Errorf("email_status is found but email is empty")
	}

	return nil
}

// CsvHeaders returns the export column names.
func (f *Facility) CsvHeaders() []string {
	return []string{
		"id", "raw_id", "name", "city", "district", "type", "address",
		"website", "website_source", "website_score", "website_status",
		"email", "email_source", "email_status",
	}
}

// CsvRow projects the facility onto the export columns.
func (f *Facility) CsvRow() []string {
	return []string{
		f.ID, f.RawID, f.Name, f.City, f.District, f.Type, f.Address,
		f.Website, f.WebsiteSource, fmt.Sprintf("%.1f", f.WebsiteScore), f.WebsiteStatus,
		f.Email, f.EmailSource, f.EmailStatus,
	}
}

// Canonical document type categories from the source catalog.
const (
	DocTypeBasic             = "BASİT KONAKLAMA"
	DocTypeTourismOperation  = "Turizm İşletmesi Belgesi"
	DocTypeBeachOperation    = "PLAJ İŞLETMESİ"
	DocTypeTourismInvestment = "Turizm Yatırımı Belgesi"
	DocTypePartialOperation  = "Kısmi Turizm İşletmesi Belgesi"
)

// NormalizeDocumentType maps a raw document-type value onto one of the five
// canonical categories, falling back to keyword matching for alternate
// encodings.
func NormalizeDocumentType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DocTypeBasic
	}

	switch raw {
	case DocTypeBasic, DocTypeTourismOperation, DocTypeBeachOperation, DocTypeTourismInvestment, DocTypePartialOperation:
		return raw
	}

	lower := strings.ToLower(raw)

	switch {
	case strings.Contains(lower, "basit"):
		return DocTypeBasic
	case strings.Contains(lower, "yatir"), strings.Contains(lower, "yatır"):
		return DocTypeTourismInvestment
	case strings.Contains(lower, "kismi"), strings.Contains(lower, "kısmi"):
		return DocTypePartialOperation
	case strings.Contains(lower, "plaj"):
		return DocTypeBeachOperation
	case strings.Contains(lower, "turizm") && (strings.Contains(lower, "isletmesi") || strings.Contains(lower, "işletmesi")):
		return DocTypeTourismOperation
	}

	return DocTypeBasic
}

// pick returns the first non-empty value among the given keys of a raw row.
func pick(row map[string]any, keys []string, fallback string) string {
	for _, key := range keys {
		if val, ok := row[key]; ok && val != nil {
			s := strings.TrimSpace(fmt.Sprintf("%v", val))
			if s != "" {
				return s
			}
		}
	}

	return fallback
}

// FromUploadRow maps a raw upload row onto a facility, tolerating the key
// aliases seen across catalog dumps.
func FromUploadRow(row map[string]any) *Facility {
	rawID := pick(row, []string{"BelgeNo", "id", "ID", "Id", "raw_id"}, "")
	name := pick(row, []string{"TesisAdi", "adi", "ADI", "tesis_adi", "name"}, "Bilinmeyen Tesis")
	city := pick(row, []string{"Sehir", "Şehir", "Il", "İl", "city", "il"}, "Bilinmiyor")
	district := pick(row, []string{"Ilce", "İlçe", "district", "ilce"}, "Bilinmiyor")
	docType := NormalizeDocumentType(pick(row, []string{"BelgeTuru", "belge_turu", "tur", "TUR", "type"}, ""))
	address := pick(row, []string{"adres", "ADRES", "address"}, "")

	return New(rawID, name, city, district, docType, address)
}
