// Package callback implements the minimal HTTP listener that receives the
// redirect from a provider's authorization page at the end of an OAuth
// authorization-code flow. The listener parses the query string, publishes an
// AuthorizationEvent describing the outcome, and acknowledges the browser
// with a fixed plain-text page: CSRF validation and token exchange are the
// responsibility of the event's subscribers, not the listener.
package callback
