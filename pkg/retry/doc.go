// Package retry provides a bounded exponential backoff for errors the caller
// classifies as transient.
//
// Only errors accepted by the caller's Classifier are retried; every other error
// is returned immediately. The wait before attempt n is BaseInterval * 2^n with no
// jitter and no cap, and when attempts run out the last error is returned
// unchanged so callers can still match it with errors.Is.
//
// # Usage Example
//
//	policy := retry.NewPolicy(retry.DefaultConfig())
//	err := policy.Do(ctx, controlplane.IsOperationInProgress, func(ctx context.Context) error {
//		return client.DeletePermissionSet(ctx, arn)
//	})
package retry
