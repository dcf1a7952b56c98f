package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Lookup resolves an address to an ISO country code.
type Lookup interface {
	CountryCode(ip string) string
}

// Provider wraps the GeoIP2 database reader.
type Provider struct {
	db *geoip2.Reader
}

// Open opens the database at path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying reader. Closing a nil provider is a no-op.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}

	return p.db.Close()
}

// CountryCode returns the ISO country code ("US", "DE") of ip, or "" when the
// address is invalid, private or unknown. A nil provider always returns "".
func (p *Provider) CountryCode(ip string) string {
	if p == nil {
		return ""
	}

	addr := net.ParseIP(ip)
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() {
		return ""
	}

	record, err := p.db.Country(addr)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}
