// CLAUDE:SUMMARY Input validation for companies and products, and product URL normalization.
// CLAUDE:EXPORTS NormalizeProductURL
package marketintel

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/hazyhaar/marketintel/marketintel/internal/extract"
)

const (
	maxNameLen   = 255
	maxFieldLen  = 100
	maxURLLen    = 4096
	maxConfigLen = 8192
)

// validateCompanyInput checks a company's own fields. References to other
// companies are checked against the store by the caller.
func validateCompanyInput(c *Company) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Domain = strings.ToLower(strings.TrimSpace(c.Domain))
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(c.Name) > maxNameLen {
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLen)
	}
	if len(c.Domain) > maxNameLen {
		return fmt.Errorf("%w: domain exceeds %d characters", ErrValidation, maxNameLen)
	}
	if strings.ContainsAny(c.Domain, "/ ") {
		return fmt.Errorf("%w: domain must be a bare host name", ErrValidation)
	}
	if len(c.Industry) > maxFieldLen {
		return fmt.Errorf("%w: industry exceeds %d characters", ErrValidation, maxFieldLen)
	}
	if c.CompetitorTo != "" && c.CompetitorTo == c.ID {
		return fmt.Errorf("%w: a company cannot compete with itself", ErrValidation)
	}
	return nil
}

// validateProductInput checks a product's fields and normalizes its URL and
// tracking configuration in place.
func validateProductInput(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.CompanyID == "" {
		return fmt.Errorf("%w: company_id is required", ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(p.Name) > maxNameLen {
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLen)
	}
	if len(p.Category) > maxFieldLen || len(p.ExternalID) > maxFieldLen {
		return fmt.Errorf("%w: category and external_id are limited to %d characters", ErrValidation, maxFieldLen)
	}

	if p.URL != "" {
		if len(p.URL) > maxURLLen {
			return fmt.Errorf("%w: url exceeds %d characters", ErrValidation, maxURLLen)
		}
		u, err := NormalizeProductURL(p.URL)
		if err != nil {
			return err
		}
		p.URL = u
	}

	if p.ConfigJSON == "" {
		p.ConfigJSON = "{}"
	}
	if len(p.ConfigJSON) > maxConfigLen {
		return fmt.Errorf("%w: tracking_config exceeds %d bytes", ErrValidation, maxConfigLen)
	}
	if !json.Valid([]byte(p.ConfigJSON)) {
		return fmt.Errorf("%w: tracking_config is not valid JSON", ErrValidation)
	}
	if _, err := extract.ParseConfig(p.ConfigJSON); err != nil {
		return err
	}
	return nil
}

// NormalizeProductURL canonicalizes an http(s) product URL: lowercases the
// scheme and host, strips the scheme's default port and drops the fragment.
// Path and query are kept as given; retailers encode variants in them.
func NormalizeProductURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty URL", ErrValidation)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: url scheme must be http or https", ErrValidation)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrValidation)
	}

	host := strings.ToLower(parsed.Host)
	if h, port, err := net.SplitHostPort(host); err == nil {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = h
			if strings.Contains(h, ":") {
				host = "[" + h + "]"
			}
		}
	}

	parsed.Scheme = scheme
	parsed.Host = host
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String(), nil
}
