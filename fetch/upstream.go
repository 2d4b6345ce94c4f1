package fetch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/config"
)

// FeedType names a GTFS-RT feed as the upstream APIs spell it.
type FeedType string

const (
	TripUpdates      FeedType = "TripUpdates"
	VehiclePositions FeedType = "VehiclePositions"
	ServiceAlerts    FeedType = "ServiceAlerts"
)

// FeedTypes lists every known feed type.
var FeedTypes = []FeedType{TripUpdates, VehiclePositions, ServiceAlerts}

// ParseFeedType matches a feed name case-insensitively.
func ParseFeedType(s string) (FeedType, error) {
	for _, f := range FeedTypes {
		if strings.EqualFold(string(f), s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feed type %q", s)
}

// Operators maps the operator codes that publish realtime data to their names.
var Operators = map[string]string{
	"dt":          "Dalatrafik",
	"jlt":         "Jönköpings Länstrafik",
	"klt":         "Kalmar länstrafik",
	"krono":       "Länstrafiken Kronoberg",
	"orebro":      "Länstrafiken Örebro",
	"skane":       "Skånetrafiken",
	"sl":          "SL",
	"ul":          "UL",
	"vastmanland": "VL",
	"varm":        "Värmlandstrafik",
	"xt":          "X-trafik",
	"otraf":       "Östgötatrafiken",
}

// OperatorCodes returns the known operator codes in sorted order.
func OperatorCodes() []string {
	codes := make([]string, 0, len(Operators))
	for c := range Operators {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// ValidateOperator rejects operator codes the upstreams do not serve.
func ValidateOperator(code string) error {
	if _, ok := Operators[code]; !ok {
		return fmt.Errorf("unknown operator %q (known: %s)", code, strings.Join(OperatorCodes(), ", "))
	}
	return nil
}

// Upstream is one configured provider of static and realtime data.
type Upstream struct {
	Name string
	cfg  config.UpstreamConfig
}

// NewUpstream selects the named upstream from cfg and verifies its credentials.
func NewUpstream(name string, cfg *config.AppConfig) (*Upstream, error) {
	if err := cfg.RequireCredentials(name); err != nil {
		return nil, err
	}
	switch name {
	case config.UpstreamKoDa:
		return &Upstream{Name: name, cfg: cfg.KoDa}, nil
	default:
		return &Upstream{Name: name, cfg: cfg.Regional}, nil
	}
}

// Historical reports whether the upstream serves archived days rather than a live snapshot.
func (u *Upstream) Historical() bool {
	return u.Name == config.UpstreamKoDa
}

// StaticURL expands the static archive template.
func (u *Upstream) StaticURL(operator, date string) string {
	return expand(u.cfg.StaticURL, operator, date, "", u.cfg.StaticKey)
}

// RealtimeURL expands the realtime template for one feed.
func (u *Upstream) RealtimeURL(operator string, feed FeedType, date string) string {
	return expand(u.cfg.RealtimeURL, operator, date, string(feed), u.cfg.RealtimeKey)
}

// Client builds a fetch client with the upstream's retry policy.
func (u *Upstream) Client(m Metrics) *Client {
	return NewClient(Options{
		Timeout:      u.cfg.Timeout(),
		MaxRetries:   u.cfg.MaxRetries,
		PollInterval: u.cfg.PollInterval(),
		MaxPolls:     u.cfg.MaxPolls,
		Metrics:      m,
	})
}

func expand(tmpl, operator, date, feed, key string) string {
	r := strings.NewReplacer(
		"{operator}", operator,
		"{date}", date,
		"{feed}", feed,
		"{key}", key,
	)
	return r.Replace(tmpl)
}
