package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubomax/website-navigator/rules"
	"github.com/pubomax/website-navigator/scoring"
)

const testTable = "../../rules/testdata/table.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RULE_TABLE_PATH", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScoreCommand(t *testing.T) {
	out, err := execute(t, "score", "--business-size", "enterprise", "--acquisition-channel", "referral")
	require.NoError(t, err)

	assert.Contains(t, out, "Score: 100%")
	assert.Contains(t, out, "businessSize")
	assert.Contains(t, out, "positive")
}

func TestScoreCommandJSON(t *testing.T) {
	out, err := execute(t, "score", "--business-size", "startup", "--json")
	require.NoError(t, err)

	var score scoring.Score
	require.NoError(t, json.Unmarshal([]byte(out), &score))
	assert.Equal(t, 40, score.Percentage)
	require.Len(t, score.Factors, 1)
	assert.Equal(t, rules.ImpactNegative, score.Factors[0].Impact)
}

func TestScoreCommandEmptyRecord(t *testing.T) {
	out, err := execute(t, "score")
	require.NoError(t, err)
	assert.Contains(t, out, "Score: 0%")
}

func TestSegmentCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "utm campaign",
			args: []string{"segment", "--url", "https://acme.example/?utm_source=linkedin&utm_campaign=enterprise-push"},
			want: []string{"Segment: enterprise", "Rule:    utm-enterprise", "Stored:  yes"},
		},
		{
			name: "visit count",
			args: []string{"segment", "--visits", "4"},
			want: []string{"Segment: highIntent", "Rule:    visits-high-intent"},
		},
		{
			name: "stored segment wins",
			args: []string{"segment", "--referrer", "https://www.facebook.com/", "--stored", "marketing"},
			want: []string{"Segment: marketing", "Source:  history"},
		},
		{
			name: "custom table",
			args: []string{"segment", "--table", testTable, "--referrer", "https://newsletter.example/issue-4"},
			want: []string{"Segment: marketing", "Rule:    referrer-newsletter"},
		},
		{
			name: "no signals",
			args: []string{"segment"},
			want: []string{"Segment: general", "Source:  default"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestSegmentCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "segment", "--visits", "0")
	assert.Error(t, err)

	_, err = execute(t, "segment", "--stored", "vip")
	assert.Error(t, err)
}

// resultRow returns the fields of the results row for ruleID
func resultRow(t *testing.T, out, ruleID string) []string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == ruleID {
			return fields
		}
	}
	t.Fatalf("no row for rule %s in:\n%s", ruleID, out)
	return nil
}

func TestSegmentCommandExplain(t *testing.T) {
	out, err := execute(t, "segment", "--visits", "2", "--explain")
	require.NoError(t, err)

	assert.Contains(t, out, "Segment: returning")
	assert.Contains(t, out, "RULE")
	for _, rule := range rules.DefaultTable().Segments {
		row := resultRow(t, out, rule.ID)
		want := "false"
		if rule.ID == "visits-returning" {
			want = "true"
		}
		assert.Equal(t, want, row[3], rule.ID)
		assert.NotEqual(t, "0", row[4], "cost of %s", rule.ID)
	}
	results := out[strings.Index(out, "RULE"):]
	assert.Less(t, strings.Index(results, "utm-enterprise"), strings.Index(results, "visits-returning"), "rules are listed in priority order")
}

func TestSegmentCommandSingleRule(t *testing.T) {
	out, err := execute(t, "segment", "--referrer", "https://www.linkedin.com/", "--rule", "referrer-linkedin")
	require.NoError(t, err)

	row := resultRow(t, out, "referrer-linkedin")
	assert.Equal(t, []string{"referrer-linkedin", "20", "enterprise", "true"}, row[:4])
	assert.NotContains(t, out, "Segment:")

	_, err = execute(t, "segment", "--rule", "no-such-rule")
	assert.Error(t, err)
}

func TestTableValidateCommand(t *testing.T) {
	out, err := execute(t, "table", "validate", testTable, "../../rules/testdata/table.json")
	require.NoError(t, err)
	assert.Contains(t, out, "OK   "+testTable)

	out, err = execute(t, "table", "validate", testTable, "../../rules/testdata/invalid_band.yaml")
	require.Error(t, err)
	assert.Contains(t, out, "FAIL ../../rules/testdata/invalid_band.yaml")
	assert.Contains(t, err.Error(), "1 of 2 tables invalid")
}

func TestTableShowCommand(t *testing.T) {
	out, err := execute(t, "table", "show", "--format", "json")
	require.NoError(t, err)

	var table rules.Table
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	assert.Equal(t, rules.DefaultTableVersion, table.Version)
	assert.Len(t, table.Segments, len(rules.DefaultTable().Segments))

	out, err = execute(t, "table", "show", "--table", testTable)
	require.NoError(t, err)
	assert.Contains(t, out, "version: 2025.1-test")

	_, err = execute(t, "table", "show", "--format", "xml")
	assert.Error(t, err)
}
