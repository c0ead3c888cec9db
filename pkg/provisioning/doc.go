// Package provisioning runs the sagas that turn permission records into
// control-plane access and take it away again.
//
// Creating a permission provisions, in order: a permission set named after
// the permission id, its policies, a group with the same name, the permission
// set on the target account, and the account assignment binding the group to
// it. Only then is the record written. Granting adds a user to the group;
// revoking removes them; deleting tears the triple down in reverse.
//
// Every step is idempotent. A duplicate-name response from the control plane
// adopts the existing resource, "already attached" and "already assigned"
// count as success, and a conflicting operation in progress is retried with
// exponential backoff. A saga that fails part way leaves what it created in
// place; running it again completes it. There is no automatic rollback.
//
// Sagas run detached from the caller's cancellation.
package provisioning
