package codec

import (
	"bufio"
	"fmt"
	"io"

	"camscout/internal/domain"
)

// M3UCodec writes a playlist any media player can open
type M3UCodec struct{}

// NewM3UCodec creates a new M3U codec
func NewM3UCodec() *M3UCodec {
	return &M3UCodec{}
}

// Format returns the codec format identifier
func (c *M3UCodec) Format() string {
	return "m3u"
}

// Export writes one entry per stream. Credentials are only embedded in
// the URL when they were found.
func (c *M3UCodec) Export(streams []domain.Stream, w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#EXTM3U")

	for _, s := range streams {
		title := s.Key().String()
		if s.Product != "" {
			title += " (" + s.Product + ")"
		}

		username, password := "", ""
		if s.IDsFound {
			username, password = s.Username, s.Password
		}

		fmt.Fprintf(bw, "#EXTINF:-1,%s\n", title)
		fmt.Fprintln(bw, s.URLFor(username, password, s.Route))
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write M3U: %w", err)
	}
	return nil
}
