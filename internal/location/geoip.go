package location

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"safetour/internal/domain"
)

const defaultIPLookupURL = "https://api.ipify.org"

type cityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

// GeoIP estimates the position from the device's public address using a
// MaxMind City database. The fix is coarse; Accuracy carries the database's
// accuracy radius in meters.
type GeoIP struct {
	db        cityLookup
	closer    io.Closer
	client    *http.Client
	lookupURL string
}

// OpenGeoIP opens the City database at path.
func OpenGeoIP(path, lookupURL string, client *http.Client) (*GeoIP, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %q: %w", path, err)
	}
	g := newGeoIP(reader, lookupURL, client)
	g.closer = reader
	return g, nil
}

func newGeoIP(db cityLookup, lookupURL string, client *http.Client) *GeoIP {
	if strings.TrimSpace(lookupURL) == "" {
		lookupURL = defaultIPLookupURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GeoIP{db: db, client: client, lookupURL: lookupURL}
}

func (g *GeoIP) Locate(ctx context.Context) (domain.Location, error) {
	ip, err := g.publicIP(ctx)
	if err != nil {
		return domain.Location{}, err
	}

	record, err := g.db.City(ip)
	if err != nil {
		return domain.Location{}, fmt.Errorf("geoip lookup %s: %w", ip, err)
	}
	if record.Location.Latitude == 0 && record.Location.Longitude == 0 {
		return domain.Location{}, fmt.Errorf("%w: no geoip position for %s", ErrUnavailable, ip)
	}
	return domain.Location{
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
		Accuracy:  float64(record.Location.AccuracyRadius) * 1000,
	}, nil
}

func (g *GeoIP) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer.Close()
}

func (g *GeoIP) publicIP(ctx context.Context) (net.IP, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.lookupURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build ip lookup request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ip lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("ip lookup returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return nil, fmt.Errorf("read ip lookup response: %w", err)
	}
	ip := net.ParseIP(strings.TrimSpace(string(body)))
	if ip == nil {
		return nil, fmt.Errorf("ip lookup returned %q", strings.TrimSpace(string(body)))
	}
	return ip, nil
}
