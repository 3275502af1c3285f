package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoSectionOffer = "v=0\r\n" +
	"o=- 4215 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=sendrecv\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:1\r\n" +
	"a=sendrecv\r\n"

func TestMediaSections(t *testing.T) {
	got, err := MediaSections(twoSectionOffer)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"video": 1, "audio": 1}, got)

	_, err = MediaSections("hello")
	assert.Error(t, err)
}

func TestCheckOffer(t *testing.T) {
	assert.NoError(t, checkOffer(twoSectionOffer, []string{"video", "audio"}))
	assert.ErrorIs(t, checkOffer(twoSectionOffer, []string{"video", "video"}), ErrIncompleteOffer)

	videoOnly := "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\nm=video 9 UDP/TLS/RTP/SAVPF 96\r\n"
	assert.ErrorIs(t, checkOffer(videoOnly, []string{"video", "audio"}), ErrIncompleteOffer)
	assert.ErrorIs(t, checkOffer("", []string{"video"}), ErrIncompleteOffer)
}
