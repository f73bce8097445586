package ilit

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// =============================================================================
// CANONICAL FIELDS
// =============================================================================

// Field is a canonical PolicyRecord field name as it appears in sheets and mappings.
type Field string

const (
	FieldIlitName              Field = "ilitName"
	FieldInsuredName           Field = "insuredName"
	FieldTrustees              Field = "trustees"
	FieldInsuranceCompany      Field = "insuranceCompany"
	FieldPolicyNumber          Field = "policyNumber"
	FieldFrequency             Field = "frequency"
	FieldPremiumDueDate        Field = "premiumDueDate"
	FieldPremiumAmount         Field = "premiumAmount"
	FieldGiftDate              Field = "giftDate"
	FieldCrummeyLetterSendDate Field = "crummeyLetterSendDate"
	FieldCrummeyLetterSentDate Field = "crummeyLetterSentDate"
	FieldCrummeySent           Field = "crummeySent"
	FieldStatus                Field = "status"
	FieldNotes                 Field = "notes"
)

// Fields lists every canonical field in template column order.
var Fields = []Field{
	FieldIlitName,
	FieldInsuredName,
	FieldTrustees,
	FieldInsuranceCompany,
	FieldPolicyNumber,
	FieldFrequency,
	FieldPremiumDueDate,
	FieldPremiumAmount,
	FieldGiftDate,
	FieldCrummeyLetterSendDate,
	FieldCrummeyLetterSentDate,
	FieldCrummeySent,
	FieldStatus,
	FieldNotes,
}

// TemplateFields are the columns users are expected to fill in.
// Everything else is derived or optional.
var TemplateFields = []Field{
	FieldIlitName,
	FieldInsuredName,
	FieldTrustees,
	FieldInsuranceCompany,
	FieldPolicyNumber,
	FieldFrequency,
	FieldPremiumDueDate,
	FieldPremiumAmount,
}

func knownField(f Field) bool {
	for _, k := range Fields {
		if k == f {
			return true
		}
	}
	return false
}

// =============================================================================
// ALIAS TABLE - Declarative header spellings, in priority order
// =============================================================================

// AliasTable maps each canonical field to its accepted header spellings.
// Earlier aliases win when a sheet carries more than one of them.
type AliasTable map[Field][]string

// DefaultAliases is the built-in alias table.
func DefaultAliases() AliasTable {
	return AliasTable{
		FieldIlitName:              {"ilitName", "ilit name", "ilit.name", "ilit_name", "trust name", "trustName", "trust", "ilit"},
		FieldInsuredName:           {"insuredName", "insured name", "insured.name", "insured_name", "insured", "client"},
		FieldTrustees:              {"trustees", "trustee", "trustee names"},
		FieldInsuranceCompany:      {"insuranceCompany", "insurance company", "insurance.company", "insurance_company", "company", "carrier", "insurer"},
		FieldPolicyNumber:          {"policyNumber", "policy number", "policy.number", "policy_number", "policy#", "policy #", "policy no", "policy"},
		FieldFrequency:             {"frequency", "paymentFrequency", "payment frequency", "payment.frequency", "payment_frequency", "premium frequency"},
		FieldPremiumDueDate:        {"premiumDueDate", "premium due date", "premium.due.date", "premium_due_date", "duedate", "due date", "due"},
		FieldPremiumAmount:         {"premiumAmount", "premium amount", "premium.amount", "premium_amount", "amount", "premium"},
		FieldGiftDate:              {"giftDate", "gift date", "gift.date", "gift_date"},
		FieldCrummeyLetterSendDate: {"crummeyLetterSendDate", "crummey letter send date", "crummey send date", "letter send date", "send date", "crummey_letter_send_date"},
		FieldCrummeyLetterSentDate: {"crummeyLetterSentDate", "crummey letter sent date", "crummey sent date", "letter sent date", "sent date", "crummey_letter_sent_date"},
		FieldCrummeySent:           {"crummeySent", "crummey sent", "letter sent", "sent"},
		FieldStatus:                {"status", "statusOverride", "status override"},
		FieldNotes:                 {"notes", "note", "comments"},
	}
}

// ParseAliasTable reads a JSON object of field -> ordered alias list.
// Fields present in the document replace the default list for that field;
// fields left out keep their defaults.
func ParseAliasTable(r io.Reader) (AliasTable, error) {
	var raw map[string][]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid alias table: %w", err)
	}

	table := DefaultAliases()
	for name, aliases := range raw {
		f := Field(name)
		if !knownField(f) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		if len(aliases) == 0 {
			return nil, fmt.Errorf("alias table: field %s has no aliases", name)
		}
		table[f] = aliases
	}
	return table, nil
}

// NormalizeHeader is the matching key for headers and aliases:
// lower case, trimmed, inner whitespace collapsed.
func NormalizeHeader(h string) string {
	return strings.ToLower(collapse(h))
}

// =============================================================================
// COLUMN RESOLVER
// =============================================================================

// Column locates a canonical field in one particular sheet.
type Column struct {
	Index  int
	Header string
}

// ColumnMap is the resolved field -> column mapping for one sheet.
// A field missing from the map is unmapped for that sheet.
type ColumnMap map[Field]Column

// Lookup returns the column for f.
func (m ColumnMap) Lookup(f Field) (Column, bool) {
	c, ok := m[f]
	return c, ok
}

// Unmapped lists the canonical fields this sheet does not provide, in Fields order.
func (m ColumnMap) Unmapped() []Field {
	var out []Field
	for _, f := range Fields {
		if _, ok := m[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// ResolveColumns maps a header row onto canonical fields. For every field
// the first alias, in the table's order, that appears in the headers wins.
// When a header text repeats, its first occurrence is used.
func ResolveColumns(headers []string, table AliasTable) ColumnMap {
	index := headerIndex(headers)

	m := make(ColumnMap, len(table))
	for field, aliases := range table {
		for _, alias := range aliases {
			if i, ok := index[NormalizeHeader(alias)]; ok {
				m[field] = Column{Index: i, Header: headers[i]}
				break
			}
		}
	}
	return m
}

// ApplyMapping layers a user-chosen field -> header mapping over a resolved
// map. An empty header unmaps the field.
func ApplyMapping(m ColumnMap, headers []string, mapping map[Field]string) (ColumnMap, error) {
	if len(mapping) == 0 {
		return m, nil
	}
	index := headerIndex(headers)

	out := make(ColumnMap, len(m)+len(mapping))
	for f, c := range m {
		out[f] = c
	}
	for f, header := range mapping {
		if !knownField(f) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, f)
		}
		if strings.TrimSpace(header) == "" {
			delete(out, f)
			continue
		}
		i, ok := index[NormalizeHeader(header)]
		if !ok {
			return nil, &MappingError{Field: f, Header: header}
		}
		out[f] = Column{Index: i, Header: headers[i]}
	}
	return out, nil
}

func headerIndex(headers []string) map[string]int {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := NormalizeHeader(h)
		if key == "" {
			continue
		}
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}
	return index
}
