package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// Mode is one capture mode a camera supports, e.g. "1280x720 @30fps".
type Mode struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
}

// ListModes returns the capture modes of an active camera ordered by index.
// The server reports them as an object keyed by the decimal index.
func (c *Client) ListModes(ctx context.Context, cameraID string) ([]Mode, error) {
	if cameraID == "" {
		return nil, ErrEmptyCamera
	}
	body, err := c.do(ctx, http.MethodGet, cameraPath(cameraID, "modes"), nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: modes: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: modes is not an object", ErrMalformed)
	}
	modes := make([]Mode, 0, len(raw))
	for k, desc := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: mode index %q", ErrMalformed, k)
		}
		modes = append(modes, Mode{Index: idx, Description: desc})
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i].Index < modes[j].Index })
	return modes, nil
}

// CurrentMode returns the description of the mode the camera runs in.
func (c *Client) CurrentMode(ctx context.Context, cameraID string) (string, error) {
	if cameraID == "" {
		return "", ErrEmptyCamera
	}
	body, err := c.do(ctx, http.MethodGet, cameraPath(cameraID, "modes", "current"), nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// SetMode switches the camera to the mode at index.
func (c *Client) SetMode(ctx context.Context, cameraID string, index int) error {
	if cameraID == "" {
		return ErrEmptyCamera
	}
	if index < 0 {
		return fmt.Errorf("signaling: invalid mode index %d", index)
	}
	_, err := c.do(ctx, http.MethodPut, cameraPath(cameraID, "modes", "set", strconv.Itoa(index)), nil)
	return err
}
