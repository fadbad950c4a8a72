package enrich

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/oschwald/geoip2-golang"
)

const (
	countryDBName = "GeoLite2-Country.mmdb"
	cityDBName    = "GeoLite2-City.mmdb"
	asnDBName     = "GeoLite2-ASN.mmdb"
)

// Info is the origin information attached to a block entry. Zero values mean
// unknown.
type Info struct {
	Country string
	ASN     uint
	ASNOrg  string
}

// Enricher looks up origin information for an address. Lookups never fail;
// missing data yields a zero Info.
type Enricher interface {
	Lookup(ip netip.Addr) Info
}

// Nop is used when no GeoIP databases are configured.
type Nop struct{}

func (Nop) Lookup(netip.Addr) Info { return Info{} }

type GeoIP struct {
	countryDB *geoip2.Reader
	cityDB    *geoip2.Reader
	asnDB     *geoip2.Reader
	logger    *slog.Logger
}

// Open loads whichever of the GeoLite2 Country, City and ASN databases exist
// in dir. A City database is only used when no Country database is present.
func Open(dir string, logger *slog.Logger) (*GeoIP, error) {
	g := &GeoIP{logger: logger}

	var err error
	if g.countryDB, err = openIfExists(filepath.Join(dir, countryDBName)); err != nil {
		return nil, err
	}
	if g.countryDB == nil {
		if g.cityDB, err = openIfExists(filepath.Join(dir, cityDBName)); err != nil {
			return nil, err
		}
	}
	if g.asnDB, err = openIfExists(filepath.Join(dir, asnDBName)); err != nil {
		g.Close()
		return nil, err
	}

	if !g.Enabled() {
		logger.Warn("no GeoLite2 databases found, block entries will not be enriched", "dir", dir)
	}

	return g, nil
}

func openIfExists(path string) (*geoip2.Reader, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return db, nil
}

func (g *GeoIP) Enabled() bool {
	return g.countryDB != nil || g.cityDB != nil || g.asnDB != nil
}

func (g *GeoIP) Lookup(ip netip.Addr) Info {
	var info Info
	if !ip.IsValid() {
		return info
	}
	netIP := net.IP(ip.AsSlice())

	switch {
	case g.countryDB != nil:
		if rec, err := g.countryDB.Country(netIP); err == nil {
			info.Country = rec.Country.IsoCode
		} else {
			g.logger.Debug("country lookup failed", "ip", ip.String(), "error", err)
		}
	case g.cityDB != nil:
		if rec, err := g.cityDB.City(netIP); err == nil {
			info.Country = rec.Country.IsoCode
		} else {
			g.logger.Debug("city lookup failed", "ip", ip.String(), "error", err)
		}
	}

	if g.asnDB != nil {
		if rec, err := g.asnDB.ASN(netIP); err == nil {
			info.ASN = rec.AutonomousSystemNumber
			info.ASNOrg = rec.AutonomousSystemOrganization
		} else {
			g.logger.Debug("asn lookup failed", "ip", ip.String(), "error", err)
		}
	}

	return info
}

func (g *GeoIP) Close() {
	for _, db := range []*geoip2.Reader{g.countryDB, g.cityDB, g.asnDB} {
		if db != nil {
			_ = db.Close()
		}
	}
}
