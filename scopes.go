package creds

// RequiredScopes declares the OAuth scopes requested from each provider when
// initiating an authorization-code flow
var RequiredScopes = map[Provider][]string{
	ProviderTwitch: {
		"chat:read",
		"chat:edit",
		"channel:moderate",
		"whispers:read",
		"whispers:edit",
	},
	ProviderStreamlabs: {
		"donations.read",
		"donations.create",
		"alerts.create",
	},
}
