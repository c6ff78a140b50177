package approval

import "context"

type StoreAPI interface {
	CreateRequest(ctx context.Context, tenantID string, req Request) (Request, error)
	GetRequest(ctx context.Context, tenantID, requestID string) (Request, error)
	// MarkDecided conditionally finalizes a pending request and reports
	// whether this call won the race.
	MarkDecided(ctx context.Context, tenantID, requestID string, status RequestStatus, deciderID, comment string) (bool, error)
	ListPending(ctx context.Context, tenantID string, limit, offset int) ([]Request, int, error)
}
