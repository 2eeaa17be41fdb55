// Package policy implements storage for the Overseer's access policy.
//
// FileRepository reads the policy from a YAML file and exposes the
// Repository interface the overseer service depends on.
package policy
