package apiclient

import "context"

// User is the profile of the account the token was issued for.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Country     string `json:"country,omitempty"`
	Product     string `json:"product,omitempty"`
}

// CurrentUser retrieves the profile of the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.Get(ctx, "/me")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return nil, err
	}

	var user User
	if err := DecodeJSON(resp, &user); err != nil {
		return nil, err
	}

	return &user, nil
}
