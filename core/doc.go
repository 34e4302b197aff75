// Package core contains the relay domain contracts, entities and the per-event
// dispatch pipeline. Signers, delivery clients and event sources live in
// their own packages and depend on core; core must not depend on them.
package core
