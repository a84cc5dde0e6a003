package fleetclient

import (
	"context"
	"fmt"
)

// Profile returns the signed-in user's profile, served from the cache when
// fresh.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	u, err := c.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile patches the mutable profile fields and refreshes the session
// user with the backend's response.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	var updated User
	if err := c.api.Patch(ctx, "/users/profile/", update, &updated); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	c.cache.Invalidate(keyProfile)

	c.mu.Lock()
	if c.state == SessionAuthenticated {
		u := updated
		c.user = &u
	}
	c.mu.Unlock()

	out := updated
	return &out, nil
}

// ChangePassword rotates the account password. The session and its token
// stay valid.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	return c.api.Post(ctx, "/users/change_password/", map[string]string{
		"old_password":     oldPassword,
		"new_password":     newPassword,
		"confirm_password": newPassword,
	}, nil)
}

// RefreshSession exchanges the held refresh token for a new access token and
// persists it. It requires a login in this process; a restored boot session
// holds no refresh token.
func (c *Client) RefreshSession(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}

	c.mu.RLock()
	refresh := c.refreshToken
	c.mu.RUnlock()
	if refresh == "" {
		return ErrNoRefreshToken
	}

	var res LoginResult
	if err := c.api.Post(ctx, "/auth/refresh/", map[string]string{
		"refresh_token": refresh,
	}, &res); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}

	if err := c.tokens.Set(ctx, res.AccessToken); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if res.RefreshToken != "" {
		c.mu.Lock()
		c.refreshToken = res.RefreshToken
		c.mu.Unlock()
	}
	return nil
}
