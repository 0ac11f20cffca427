package domain

import "strings"

// LineItem is one purchased entry within a Square order. Items are processed
// in the order they appear in the order; the sequence matters because slots
// are actuated in the same order.
type LineItem struct {
	UID             string
	CatalogObjectID string
}

// Reference returns the catalog identifier used to resolve this item to a
// slot. Square omits catalog_object_id for ad hoc items, in which case the
// line item uid stands in; an empty reference means the item cannot be
// resolved at all.
func (li LineItem) Reference() string {
	if ref := strings.TrimSpace(li.CatalogObjectID); ref != "" {
		return ref
	}
	return strings.TrimSpace(li.UID)
}
