package creds

// AuthorizationEvent is an immutable snapshot of one redirect received by the
// local callback listener. For any callback that parsed successfully, exactly
// one of Code/Error is populated: Code when the user granted access, Error
// when the provider reported a failure (e.g. the user declined consent)
type AuthorizationEvent struct {
	Code             string
	Error            string
	ErrorDescription string
	State            string
}

// TokenExpiredEvent is published by the expiry monitor, once per detected
// expiry per pass, for each stored credential whose access token has lapsed
type TokenExpiredEvent struct {
	Key        string
	Credential Credential
}

// ChangeKind describes what happened to a stored credential
type ChangeKind string

const (
	ChangeIssued          ChangeKind = "issued"
	ChangeRefreshed       ChangeKind = "refreshed"
	ChangeExpiredTerminal ChangeKind = "expired_terminal"
)

// CredentialChange is the notification fanned out to sibling services (via
// AMQP) whenever the lifecycle of a stored credential advances; it carries no
// token material
type CredentialChange struct {
	Key      string     `json:"key"`
	Provider Provider   `json:"provider"`
	Kind     ChangeKind `json:"kind"`
}
