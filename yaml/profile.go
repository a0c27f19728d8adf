// Package yaml loads crawl profiles: reusable crawl settings stored as YAML.
package yaml

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/fwojciec/harvest"
	yamlv3 "gopkg.in/yaml.v3"
)

// ErrProfileNotFound is returned when the profile file does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// Profile holds crawl settings. Zero values mean "not set" and leave the
// corresponding CrawlConfig field untouched.
type Profile struct {
	Depth     int    `yaml:"depth"`
	Workers   int    `yaml:"workers"`
	SiteCap   int    `yaml:"site_cap"`
	CapPolicy string `yaml:"cap_policy"`

	Selector  string `yaml:"selector"`
	Attribute string `yaml:"attribute"`
	Distinct  bool   `yaml:"distinct"`
	Sitemaps  bool   `yaml:"sitemaps"`

	// Render selects the headless browser transport.
	Render bool `yaml:"render"`

	AllowDomains []string `yaml:"allow_domains"`
	DenyDomains  []string `yaml:"deny_domains"`
	Schemes      []string `yaml:"schemes"`
	Extensions   []string `yaml:"extensions"`

	// Policy is the collision policy used when saving resources.
	Policy string `yaml:"policy"`
}

// LoadProfile reads and validates the profile at path.
// If the file does not exist, it returns ErrProfileNotFound.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return ParseProfile(data)
}

// ParseProfile decodes a profile document. Unknown keys are rejected.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	dec := yamlv3.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, harvest.Errorf(harvest.EINVALID, "invalid profile: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate returns an error if a set field holds an unusable value.
func (p *Profile) Validate() error {
	if p.Depth < 0 {
		return harvest.Errorf(harvest.EINVALID, "profile depth must be positive, got %d", p.Depth)
	}
	if p.Workers < 0 {
		return harvest.Errorf(harvest.EINVALID, "profile workers must be positive, got %d", p.Workers)
	}
	if p.SiteCap < harvest.Unbounded {
		return harvest.Errorf(harvest.EINVALID, "profile site_cap must be -1 or positive, got %d", p.SiteCap)
	}
	if _, err := harvest.ParseCapPolicy(p.CapPolicy); err != nil {
		return err
	}
	if _, err := harvest.ParseCollisionPolicy(p.Policy); err != nil {
		return err
	}
	return nil
}

// Apply copies the set fields of the profile onto cfg. Boolean switches can
// only be turned on. List fields replace the configured lists.
func (p *Profile) Apply(cfg *harvest.CrawlConfig) {
	if p.Depth != 0 {
		cfg.Depth = p.Depth
	}
	if p.Workers != 0 {
		cfg.Workers = p.Workers
	}
	if p.SiteCap != 0 {
		cfg.SiteCap = p.SiteCap
	}
	if p.CapPolicy != "" {
		// Validated on load.
		cfg.CapPolicy, _ = harvest.ParseCapPolicy(p.CapPolicy)
	}
	if p.Selector != "" {
		cfg.Selector = p.Selector
	}
	if p.Attribute != "" {
		cfg.Attribute = p.Attribute
	}
	cfg.Distinct = cfg.Distinct || p.Distinct
	cfg.Sitemaps = cfg.Sitemaps || p.Sitemaps

	if p.AllowDomains != nil {
		cfg.Filter.AllowDomains = p.AllowDomains
	}
	if p.DenyDomains != nil {
		cfg.Filter.DenyDomains = p.DenyDomains
	}
	if p.Schemes != nil {
		cfg.Filter.Schemes = p.Schemes
	}
	if p.Extensions != nil {
		cfg.Filter.Extensions = p.Extensions
	}
}

// CollisionPolicy returns the profile's collision policy, or fallback when
// the profile does not set one.
func (p *Profile) CollisionPolicy(fallback harvest.CollisionPolicy) harvest.CollisionPolicy {
	if p.Policy == "" {
		return fallback
	}
	policy, err := harvest.ParseCollisionPolicy(p.Policy)
	if err != nil {
		return fallback
	}
	return policy
}
