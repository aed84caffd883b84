package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// DefaultName is the client name reported to the NATS server.
const DefaultName = "roost"

// URL returns the NATS_URL environment variable, falling back to nats.DefaultURL.
func URL() string {
	if u := os.Getenv("NATS_URL"); u != "" {
		return u
	}
	return nats.DefaultURL
}

// NewClient connects to the server named by URL. Without explicit options the
// connection identifies itself as DefaultName and enables compression.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name(DefaultName), nats.Compression(true))
	}
	return nats.Connect(URL(), opts...)
}
