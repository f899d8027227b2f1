// Package pipeline runs the post-classification part of a ticket workflow.
//
// # Routing
//
// Which stages run is decided once, right after classification, by a fixed
// table from category to an ordered stage list:
//
//	AI_HISTORY             historian → dispatch → formatter
//	O365, HARDWARE, LOGIN  dispatch → formatter
//	OTHER                  formatter
//
// Every route ends with the formatter, which writes the TicketResult onto
// the TicketContext.
//
// # Errors
//
// Stages never fail because an upstream call failed; they record a fallback
// and mark themselves degraded on the TicketContext. An error returned from
// a stage is an invariant violation and aborts the run.
package pipeline
