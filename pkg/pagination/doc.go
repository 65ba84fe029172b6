// Package pagination walks the offset/limit listing of the artifact API.
//
// A run requests pages of one filter sequentially, appends their items in
// server order and stops at the first empty page or the first page shorter
// than the page size. A page exactly as long as the page size is never
// assumed final, so an exact multiple of the page size costs one extra
// request that returns an empty page.
//
// Example usage:
//
//	p := pagination.New(artifactClient, pagination.DefaultConfig())
//	items, total, err := p.FetchAllOfKind(ctx, catalog.KindModel, 12)
//
// Every run is bounded:
//   - MaxPages caps the number of requests (ErrPageLimitExceeded)
//   - each request runs under RequestTimeout (ErrRequestTimeout)
//   - any failure aborts the run and no partial items are returned
package pagination
