// Package fetch retrieves GTFS static archives and GTFS-RT payloads from the
// upstream providers.
//
// Client.Fetch implements the retrieval policy shared by every upstream:
//
//   - each attempt is bounded by a per-attempt timeout
//   - timed out attempts are retried with exponential backoff (timeout, 2x, 4x, ...)
//   - a 202 Accepted response switches to a fixed-interval poll loop, used by
//     the historical archive API while it prepares a download
//   - any other non-200 status is returned immediately as ErrFetchRejected
//
// Upstream expands the URL templates of the KoDa archive API and the GTFS
// Regional live API and carries the operator and feed enumerations.
//
// Example:
//
//	up, err := fetch.NewUpstream(config.UpstreamKoDa, cfg)
//	if err != nil {
//	    return err // *config.MissingCredentialError when KODA_API_KEY is unset
//	}
//	body, err := up.Client(nil).Fetch(ctx, up.StaticURL("otraf", "2024-01-15"))
package fetch
