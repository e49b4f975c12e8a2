package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// NormalizationRule is the canonical casing applied to a taxonomy name
// before uniqueness lookup.
type NormalizationRule int

const (
	RuleNone NormalizationRule = iota
	RuleTitle
	RuleUpper
	RuleLower
)

// Normalize trims the raw name and applies the rule. A name that is empty
// after trimming normalizes to the empty string.
func (r NormalizationRule) Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	switch r {
	case RuleTitle:
		return titleCase(name)
	case RuleUpper:
		return strings.ToUpper(name)
	case RuleLower:
		return strings.ToLower(name)
	default:
		return name
	}
}

// titleCase uppercases the first letter of every word and lowercases the
// rest, treating any non-letter as a word boundary ("t-shirt" -> "T-Shirt").
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}

	return b.String()
}

// TaxonomyKind identifies one of the flat, uniquely-named classification
// types attachable to products. Subcategories are modeled separately
// because their names are only unique within a parent category.
type TaxonomyKind string

const (
	KindCategory TaxonomyKind = "category"
	KindBrand    TaxonomyKind = "brand"
	KindSize     TaxonomyKind = "size"
	KindColor    TaxonomyKind = "color"
	KindTag      TaxonomyKind = "tag"
)

// Rule returns the canonical casing for names of this kind.
func (k TaxonomyKind) Rule() NormalizationRule {
	switch k {
	case KindSize:
		return RuleUpper
	case KindTag:
		return RuleLower
	default:
		return RuleTitle
	}
}

// Table returns the backing table name. Kinds are a closed set, so the
// value is safe to interpolate into SQL.
func (k TaxonomyKind) Table() string {
	switch k {
	case KindCategory:
		return "categories"
	case KindBrand:
		return "brands"
	case KindSize:
		return "sizes"
	case KindColor:
		return "colors"
	case KindTag:
		return "tags"
	}
	return ""
}

// JoinTable returns the product link table for many-to-many kinds, or ""
// for kinds referenced by a column on products.
func (k TaxonomyKind) JoinTable() string {
	switch k {
	case KindSize:
		return "product_sizes"
	case KindColor:
		return "product_colors"
	case KindTag:
		return "product_tags"
	}
	return ""
}

// JoinColumn returns the taxonomy-side column of the link table.
func (k TaxonomyKind) JoinColumn() string {
	switch k {
	case KindSize:
		return "size_id"
	case KindColor:
		return "color_id"
	case KindTag:
		return "tag_id"
	}
	return ""
}

// TaxonomyEntity is a named, deduplicated classification value.
type TaxonomyEntity struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Subcategory is a category-scoped classification value. The (name,
// category) pair is unique; the same name may exist under different
// categories.
type Subcategory struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	CategoryID   uuid.UUID `json:"categoryId"`
	CategoryName string    `json:"category"`
}
