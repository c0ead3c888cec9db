// Package permissions stores PermissionInfo records, the durable templates
// from which control-plane access is provisioned.
//
// A record is keyed by its permission id, derived as
// prefix-nameID-accountID. The id is also the name of the permission set and
// group created for it, so the external resources can always be found again by
// name. Ids are unique without regard to case because the identity store
// treats group names that way.
//
// SQLStore is the source of truth; CachedStore adds an LRU and an optional
// Redis layer for reads by exact id.
package permissions

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*CachedStore)(nil)
)
