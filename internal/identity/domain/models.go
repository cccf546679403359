package domain

import "fmt"

// Metadata keys stored on the billing identity.
const (
	MetadataPack         = "pack"
	MetadataTeamSize     = "team_size"
	MetadataPromoCode    = "promo_code"
	MetadataDocsPerMonth = "docs_per_month"
)

// Identity is the provider-side billing counterparty for one email.
type Identity struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Selection is the latest configuration a requester picked. Nil optional
// fields leave the matching metadata key untouched; an empty value clears it.
type Selection struct {
	Pack         string
	TeamSize     string
	PromoCode    *string
	DocsPerMonth *string
}

func (s Selection) Metadata() map[string]string {
	out := map[string]string{
		MetadataPack:     s.Pack,
		MetadataTeamSize: s.TeamSize,
	}
	if s.PromoCode != nil {
		out[MetadataPromoCode] = *s.PromoCode
	}
	if s.DocsPerMonth != nil {
		out[MetadataDocsPerMonth] = *s.DocsPerMonth
	}
	return out
}

// Description renders the human-readable summary kept on the identity.
func (s Selection) Description() string {
	return fmt.Sprintf("Selection: pack=%s, users=%s", orDash(s.Pack), orDash(s.TeamSize))
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
