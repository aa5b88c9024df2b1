package signals

import (
	"net/http"
	"net/url"
	"strings"
)

// Query parameter names for campaign attribution
const (
	ParamUTMSource   = "utm_source"
	ParamUTMMedium   = "utm_medium"
	ParamUTMCampaign = "utm_campaign"
)

// maxParamLength caps campaign values; longer values are treated as absent
const maxParamLength = 256

// FromURL builds the environment from a page URL and a referrer string.
// A malformed URL yields no campaign parameters; it is never an error.
func FromURL(pageURL, referrer string) Environment {
	env := Environment{Referrer: normalizeReferrer(referrer)}

	if pageURL == "" {
		return env
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return env
	}
	// ParseQuery keeps every well-formed pair even when it reports an error
	query, _ := url.ParseQuery(u.RawQuery)
	return withQuery(env, query)
}

// FromRequest builds the environment from an incoming page request:
// campaign parameters from its query string and the Referer header.
func FromRequest(r *http.Request) Environment {
	env := Environment{Referrer: normalizeReferrer(r.Referer())}
	if r.URL == nil {
		return env
	}
	query, _ := url.ParseQuery(r.URL.RawQuery)
	return withQuery(env, query)
}

func withQuery(env Environment, query url.Values) Environment {
	env.UTMSource = param(query, ParamUTMSource)
	env.UTMMedium = param(query, ParamUTMMedium)
	env.UTMCampaign = param(query, ParamUTMCampaign)
	return env
}

// param returns the first value of key, lower-cased and trimmed.
// Oversized values are treated as absent.
func param(query url.Values, key string) string {
	v := strings.TrimSpace(query.Get(key))
	if len(v) > maxParamLength {
		return ""
	}
	return strings.ToLower(v)
}

func normalizeReferrer(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if len(referrer) > 2048 {
		return ""
	}
	return strings.ToLower(referrer)
}
