package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserID accepts the chat user id as either a JSON number or a string.
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("user_id: not an integer: %s", n)
	}
	*u = UserID(n.String())
	return nil
}

// WebAppRequest is posted by the WebApp backend when a user presses a button.
type WebAppRequest struct {
	UserID UserID `json:"user_id" validate:"required,max=64"`
	Action string `json:"action" validate:"required,max=256"`
}

// WebAppResponse is the relay outcome.
type WebAppResponse struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}
