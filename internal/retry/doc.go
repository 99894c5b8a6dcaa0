// Package retry implements the bounded-duration retry loop shared by the
// foreground request path and the background scheduler. Both tiers use the
// same loop shape and differ only in the Policy they pass in.
package retry
