package shared

import "strings"

// Tenant identifies the isolation boundary of a site operated by a company.
type Tenant struct {
	Site    string `json:"site"`
	Company string `json:"company"`
}

// NewTenant trims the site and company names.
func NewTenant(site, company string) Tenant {
	return Tenant{Site: strings.TrimSpace(site), Company: strings.TrimSpace(company)}
}

// Valid reports whether both parts of the tenant are present.
func (t Tenant) Valid() bool {
	return t.Site != "" && t.Company != ""
}

func (t Tenant) String() string {
	return t.Site + "/" + t.Company
}
