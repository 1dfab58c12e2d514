// Package identity resolves the stable user identity behind a freshly issued
// Twitch credential, so that credentials can be keyed and labeled by the
// account they were granted for.
package identity

import (
	"fmt"
	"net/http"

	"github.com/nicklaw5/helix/v2"

	"github.com/golden-vcr/creds"
)

// TwitchClient represents the subset of Twitch API client functionality used
// to look up the authenticated user
type TwitchClient interface {
	GetUsers(params *helix.UsersParams) (*helix.UsersResponse, error)
}

type NewTwitchClientFunc func(userAccessToken string) (TwitchClient, error)

type Resolver struct {
	newTwitchClient NewTwitchClientFunc
}

func NewResolver(twitchClientId string) *Resolver {
	return &Resolver{
		newTwitchClient: func(userAccessToken string) (TwitchClient, error) {
			return helix.NewClient(&helix.Options{
				ClientID:        twitchClientId,
				UserAccessToken: userAccessToken,
			})
		},
	}
}

// Resolve stamps UserID, Login, and DisplayName onto the given credential by
// asking the Twitch API who the access token belongs to. Only Twitch
// credentials carry a resolvable identity; other providers are left
// untouched.
func (r *Resolver) Resolve(credential *creds.Credential) error {
	if credential.Provider != creds.ProviderTwitch {
		return nil
	}

	c, err := r.newTwitchClient(credential.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to initialize Twitch API client: %w", err)
	}

	// With no IDs or logins specified, GetUsers describes the user the
	// request was authorized as
	res, err := c.GetUsers(&helix.UsersParams{})
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("got response %d from get users request: %s", res.StatusCode, res.ErrorMessage)
	}
	if len(res.Data.Users) != 1 {
		return fmt.Errorf("got %d users from get users request; expected exactly 1", len(res.Data.Users))
	}

	user := res.Data.Users[0]
	credential.UserID = user.ID
	credential.Login = user.Login
	credential.DisplayName = user.DisplayName
	return nil
}
