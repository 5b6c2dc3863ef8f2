package notification

import "strings"

// MinPhoneDigits is the shortest phone number considered dispatchable
const MinPhoneDigits = 10

// Company is a customer of the firm, mirrored from the system of record
type Company struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	TaxID              string `json:"taxId"`
	Phone              string `json:"phone"`
	DueDay             int    `json:"dueDay"`
	MonthlyAmountCents int64  `json:"monthlyAmountCents"`
	Active             bool   `json:"active"`
}

// HasDispatchablePhone reports whether the phone has a plausible number of digits
func (c *Company) HasDispatchablePhone() bool {
	return len(Digits(c.Phone)) >= MinPhoneDigits
}

// Digits strips every non-digit character
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeTaxID returns the digits-only form of a CPF/CNPJ
func NormalizeTaxID(taxID string) string {
	return Digits(taxID)
}

// CompanyIndex resolves companies by normalized tax id.
// Active companies take precedence over inactive ones sharing a tax id.
type CompanyIndex struct {
	active map[string]string
	all    map[string]string
}

// NewCompanyIndex builds an index over the given companies
func NewCompanyIndex(companies []Company) *CompanyIndex {
	idx := &CompanyIndex{
		active: make(map[string]string),
		all:    make(map[string]string),
	}
	for _, c := range companies {
		taxID := NormalizeTaxID(c.TaxID)
		if taxID == "" {
			continue
		}
		if c.Active {
			if _, exists := idx.active[taxID]; !exists {
				idx.active[taxID] = c.ID
			}
		}
		if _, exists := idx.all[taxID]; !exists {
			idx.all[taxID] = c.ID
		}
	}
	return idx
}

// Lookup returns the company id for a tax id, or nil when nothing matches
func (idx *CompanyIndex) Lookup(taxID string) *string {
	taxID = NormalizeTaxID(taxID)
	if taxID == "" {
		return nil
	}
	if id, ok := idx.active[taxID]; ok {
		return &id
	}
	if id, ok := idx.all[taxID]; ok {
		return &id
	}
	return nil
}
