// Package connect ties the credential lifecycle together: it initiates
// authorization-code flows, subscribes to the events published by the
// callback listener and the expiry monitor, validates CSRF state, drives
// token exchange and refresh, and writes the resulting credentials into the
// store.
package connect
