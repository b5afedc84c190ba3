package catalog

import (
	"context"

	"github.com/flowline-ai/flowline/internal/flow"
)

// FlowCatalog adapts the store to the conversation engine's view of the
// service menu.
type FlowCatalog struct {
	store *Store
}

// NewFlowCatalog wraps a catalog store for the flow engine.
func NewFlowCatalog(store *Store) *FlowCatalog {
	if store == nil {
		panic("catalog: store required")
	}
	return &FlowCatalog{store: store}
}

// ListServices returns the bookable services as flow service refs.
func (c *FlowCatalog) ListServices(ctx context.Context, businessID string) ([]flow.ServiceRef, error) {
	services, err := c.store.ListServices(ctx, businessID)
	if err != nil {
		return nil, err
	}
	refs := make([]flow.ServiceRef, 0, len(services))
	for _, svc := range services {
		refs = append(refs, flow.ServiceRef{
			ID:          svc.ID,
			Name:        svc.Name,
			DurationMin: svc.DurationMin,
			PriceCents:  svc.PriceCents,
			Mobile:      svc.Mobile,
		})
	}
	return refs, nil
}
