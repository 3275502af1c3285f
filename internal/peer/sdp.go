package peer

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

// MediaSections counts the m= sections of a description per media kind.
func MediaSections(raw string) (map[string]int, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return nil, fmt.Errorf("peer: parse sdp: %w", err)
	}
	out := make(map[string]int, len(desc.MediaDescriptions))
	for _, md := range desc.MediaDescriptions {
		out[md.MediaName.Media]++
	}
	return out, nil
}

// checkOffer verifies raw has at least one media section per transceiver kind.
func checkOffer(raw string, kinds []string) error {
	sections, err := MediaSections(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIncompleteOffer, err)
	}
	want := map[string]int{}
	for _, k := range kinds {
		want[k]++
	}
	for kind, n := range want {
		if sections[kind] < n {
			return fmt.Errorf("%w: %d %s section(s), want %d", ErrIncompleteOffer, sections[kind], kind, n)
		}
	}
	return nil
}
