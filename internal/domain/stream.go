package domain

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Stream states reported by the mapper or set by validation
const (
	StateOpen    = "open"
	StateClosed  = "closed"
	StateInvalid = "invalid stream"
)

// ServiceRTSP is the service name the mapper assigns to RTSP endpoints
const ServiceRTSP = "rtsp"

// Key identifies a stream within a store
type Key struct {
	Address string
	Port    uint16
}

// String returns host:port
func (k Key) String() string {
	return net.JoinHostPort(k.Address, strconv.Itoa(int(k.Port)))
}

// Stream is one discovered camera endpoint and everything learned about it
type Stream struct {
	Address     string `json:"address" yaml:"address"`
	Port        uint16 `json:"port" yaml:"port"`
	Username    string `json:"username,omitempty" yaml:"username,omitempty"`
	Password    string `json:"password,omitempty" yaml:"password,omitempty"`
	Route       string `json:"route,omitempty" yaml:"route,omitempty"`
	ServiceName string `json:"service_name" yaml:"service_name"`
	Product     string `json:"product,omitempty" yaml:"product,omitempty"`
	Protocol    string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	State       string `json:"state" yaml:"state"`

	// Attack results
	IDsFound  bool `json:"ids_found" yaml:"ids_found"`
	PathFound bool `json:"path_found" yaml:"path_found"`

	ThumbnailPath string `json:"thumbnail_path,omitempty" yaml:"thumbnail_path,omitempty"`
}

// Key returns the identity of the stream
func (s Stream) Key() Key {
	return Key{Address: s.Address, Port: s.Port}
}

// IsOpenRTSP reports whether the stream belongs to the attack working set
func (s Stream) IsOpenRTSP() bool {
	return s.ServiceName == ServiceRTSP && s.State == StateOpen
}

// IsValid reports whether both credentials and route are known
func (s Stream) IsValid() bool {
	return s.IsOpenRTSP() && s.IDsFound && s.PathFound
}

// WithCredentials returns a copy carrying the given credentials and result flag
func (s Stream) WithCredentials(username, password string, found bool) Stream {
	s.Username = username
	s.Password = password
	s.IDsFound = found
	return s
}

// WithRoute returns a copy carrying the given route and result flag
func (s Stream) WithRoute(route string, found bool) Stream {
	s.Route = route
	s.PathFound = found
	return s
}

// WithThumbnail returns a copy pointing at a generated thumbnail
func (s Stream) WithThumbnail(path string) Stream {
	s.ThumbnailPath = path
	return s
}

// WithState returns a copy in the given state
func (s Stream) WithState(state string) Stream {
	s.State = state
	return s
}

// URL builds the rtsp:// address of the stream with its current
// credentials and route.
func (s Stream) URL() string {
	return s.URLFor(s.Username, s.Password, s.Route)
}

// URLFor builds the rtsp:// address using explicit credentials and route
// instead of the ones stored on the stream. Credentials are escaped; the
// route is kept verbatim since many cameras expect a raw query string.
func (s Stream) URLFor(username, password, route string) string {
	var b strings.Builder
	b.WriteString("rtsp://")
	if username != "" || password != "" {
		b.WriteString(url.UserPassword(username, password).String())
		b.WriteByte('@')
	}
	b.WriteString(s.Key().String())
	b.WriteByte('/')
	b.WriteString(strings.TrimPrefix(route, "/"))
	return b.String()
}

// FilterOpenRTSP returns the subset of streams in the attack working set
func FilterOpenRTSP(streams []Stream) []Stream {
	var out []Stream
	for _, s := range streams {
		if s.IsOpenRTSP() {
			out = append(out, s)
		}
	}
	return out
}

// Dedupe keeps one stream per Key. The last occurrence wins and takes the
// position of the first.
func Dedupe(streams []Stream) []Stream {
	index := make(map[Key]int, len(streams))
	var out []Stream
	for _, s := range streams {
		if i, ok := index[s.Key()]; ok {
			out[i] = s
			continue
		}
		index[s.Key()] = len(out)
		out = append(out, s)
	}
	return out
}

// FilterValid returns the subset of streams with credentials and route found
func FilterValid(streams []Stream) []Stream {
	var out []Stream
	for _, s := range streams {
		if s.IsValid() {
			out = append(out, s)
		}
	}
	return out
}
