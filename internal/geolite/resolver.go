package geolite

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// CountryResolver maps an address to an ISO country code. An empty code with
// a nil error means the resolver holds no data for the address.
type CountryResolver interface {
	Country(ip net.IP) (string, error)
}

// Database adapts a GeoLite2-Country mmdb file to the CountryResolver
// interface.
type Database struct {
	reader *geoip2.Reader
}

// Open loads the mmdb file at path.
func Open(path string) (*Database, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geolite: open database: %w", err)
	}
	return &Database{reader: reader}, nil
}

func (d *Database) Country(ip net.IP) (string, error) {
	if d == nil || d.reader == nil {
		return "", errors.New("geolite: database not loaded")
	}

	record, err := d.reader.Country(ip)
	if err != nil {
		return "", err
	}
	return record.Country.IsoCode, nil
}

func (d *Database) Close() error {
	if d == nil || d.reader == nil {
		return nil
	}
	return d.reader.Close()
}
