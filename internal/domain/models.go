package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ChannelID is compared as a string; the API may send it as a number.
type ChannelID string

func (id *ChannelID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ChannelID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("channel id: %w", err)
	}
	*id = ChannelID(n.String())
	return nil
}

type Channel struct {
	ID   ChannelID `json:"id"`
	Name string    `json:"name"`
}

// DisplayName falls back to "Channel <id>" for unnamed channels.
func (c Channel) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return "Channel " + string(c.ID)
}

// StreamRecord is one stream entry exactly as the API returned it. Keys vary
// between API versions, so fields are read through alias rules rather than a
// fixed struct. Numbers are kept as json.Number.
type StreamRecord map[string]any
