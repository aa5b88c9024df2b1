package signals

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pubomax/website-navigator/rules"
)

func TestFields(t *testing.T) {
	assert.Empty(t, AttributeRecord{}.Fields())

	record := AttributeRecord{Timeline: "urgent", Industry: "finance"}
	assert.Equal(t, []Field{
		{Name: rules.AttrIndustry, Value: "finance"},
		{Name: rules.AttrTimeline, Value: "urgent"},
	}, record.Fields())
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		name     string
		pageURL  string
		referrer string
		want     Environment
	}{
		{
			name:    "campaign parameters",
			pageURL: "https://acme.example/?utm_source=LinkedIn&utm_medium=cpc&utm_campaign=Enterprise-Push",
			want:    Environment{UTMSource: "linkedin", UTMMedium: "cpc", UTMCampaign: "enterprise-push"},
		},
		{
			name:     "referrer only",
			pageURL:  "https://acme.example/pricing",
			referrer: " https://WWW.Facebook.com/groups ",
			want:     Environment{Referrer: "https://www.facebook.com/groups"},
		},
		{
			name:    "first value wins",
			pageURL: "https://acme.example/?utm_source=a&utm_source=b",
			want:    Environment{UTMSource: "a"},
		},
		{
			name:    "empty url",
			pageURL: "",
			want:    Environment{},
		},
		{
			name:     "malformed url",
			pageURL:  "://bad url%zz",
			referrer: "https://news.example",
			want:     Environment{Referrer: "https://news.example"},
		},
		{
			name:    "oversized parameter",
			pageURL: "https://acme.example/?utm_campaign=" + strings.Repeat("x", maxParamLength+1) + "&utm_source=google",
			want:    Environment{UTMSource: "google"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromURL(tt.pageURL, tt.referrer))
		})
	}
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/landing?utm_medium=Email&utm_campaign=spring", nil)
	req.Header.Set("Referer", "https://mailchimp.com/c/1")

	env := FromRequest(req)

	assert.Equal(t, Environment{
		UTMMedium:   "email",
		UTMCampaign: "spring",
		Referrer:    "https://mailchimp.com/c/1",
	}, env)
}

func TestEnvironmentVars(t *testing.T) {
	env := Environment{UTMSource: "google", Referrer: "https://x.example"}

	vars := env.Vars(3)

	assert.Equal(t, rules.Vars{UTMSource: "google", Referrer: "https://x.example", VisitCount: 3}, vars)
}
