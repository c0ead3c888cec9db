// Package approvalflow is the boundary between an approval workflow and the
// provisioning core. Each callback advances the request's status and, for
// approvals and revocations, runs the matching saga and records its outcome.
package approvalflow
