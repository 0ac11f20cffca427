package catalog

import (
	"context"
	"fmt"
)

// Reason identifies which step of slot resolution failed.
type Reason string

// Resolution failure reasons, one per step of the chain.
const (
	// ReasonCatalogFetch: the catalog object for the line item could not be
	// fetched.
	ReasonCatalogFetch Reason = "catalog-fetch-error"
	// ReasonNoAttributes: the catalog object carries no usable custom
	// attribute, so there is no slot assignment to follow.
	ReasonNoAttributes Reason = "no-attributes"
	// ReasonDefinitionFetch: the attribute definition could not be fetched.
	ReasonDefinitionFetch Reason = "definition-fetch-error"
	// ReasonSelectionNotFound: the definition does not declare the selection
	// the item points at.
	ReasonSelectionNotFound Reason = "selection-not-found"
)

// ResolutionError reports why one line item could not be resolved to a slot.
// A resolution failure affects only its own line item; the rest of the order
// proceeds.
type ResolutionError struct {
	Reference string
	Reason    Reason
	Err       error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e == nil {
		return "resolution error"
	}
	if e.Err != nil {
		return fmt.Sprintf("resolve slot for %s: %s: %v", e.Reference, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve slot for %s: %s", e.Reference, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ObjectFetcher fetches catalog objects by id. *Client satisfies it.
type ObjectFetcher interface {
	GetCatalogObject(ctx context.Context, objectID string) (CatalogObject, error)
}

// Resolver walks the catalog dependency chain from a purchased line item to
// its slot label: item object, then the attribute value on it, then the
// attribute definition that names the selection.
type Resolver struct {
	objects ObjectFetcher
}

// NewResolver returns a resolver over the given object fetcher.
func NewResolver(objects ObjectFetcher) *Resolver {
	return &Resolver{objects: objects}
}

// ResolveSlot resolves a line item reference to a slot label. Every failure
// is a *ResolutionError carrying the step that failed.
func (r *Resolver) ResolveSlot(ctx context.Context, reference string) (string, error) {
	object, err := r.objects.GetCatalogObject(ctx, reference)
	if err != nil {
		return "", &ResolutionError{Reference: reference, Reason: ReasonCatalogFetch, Err: err}
	}

	if len(object.CustomAttributes) == 0 {
		return "", &ResolutionError{Reference: reference, Reason: ReasonNoAttributes}
	}
	// Only the first attribute is consulted. The machine's catalog items
	// carry exactly one custom attribute, the slot assignment; anything
	// beyond it is ignored.
	attribute := object.CustomAttributes[0]
	if len(attribute.SelectionUIDs) == 0 {
		return "", &ResolutionError{
			Reference: reference,
			Reason:    ReasonNoAttributes,
			Err:       fmt.Errorf("attribute %s has no selections", attribute.Key),
		}
	}
	if attribute.DefinitionID == "" {
		return "", &ResolutionError{
			Reference: reference,
			Reason:    ReasonNoAttributes,
			Err:       fmt.Errorf("attribute %s names no definition", attribute.Key),
		}
	}
	selectionUID := attribute.SelectionUIDs[0]

	definition, err := r.objects.GetCatalogObject(ctx, attribute.DefinitionID)
	if err != nil {
		return "", &ResolutionError{Reference: reference, Reason: ReasonDefinitionFetch, Err: err}
	}
	for _, selection := range definition.AllowedSelections {
		if selection.UID == selectionUID {
			return selection.Name, nil
		}
	}
	return "", &ResolutionError{
		Reference: reference,
		Reason:    ReasonSelectionNotFound,
		Err:       fmt.Errorf("selection %s not in definition %s", selectionUID, attribute.DefinitionID),
	}
}
