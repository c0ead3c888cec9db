// Package approval tracks access requests through their approval lifecycle.
//
// A request moves through a fixed set of statuses:
//
//	submitted -> validationFailed | pending
//	pending -> approved | rejected | canceled
//	approved -> approvedActionSucceeded | approvedActionFailed | revoked
//	approvedActionSucceeded -> revoked
//	revoked -> revokedActionSucceeded | revokedActionFailed
//
// Each status is its own Go type, and a type only carries the fields that
// exist once the request has reached it. Stored bodies are flat JSON objects
// whose "status" field selects the variant on decode.
//
// Every transition is a conditional write against the predecessor status, so
// two approvers racing on the same request cannot both win.
package approval

var _ Store = (*SQLStore)(nil)
