package countries

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const canada = `[{
  "name": {"common": "Canada", "official": "Canada"},
  "cca2": "CA", "cca3": "CAN", "status": "officially-assigned", "unMember": true,
  "region": "Americas", "latlng": [60.0, -95.0], "landlocked": false,
  "area": 9984670, "population": 38005238,
  "timezones": ["UTC-03:30", "UTC-04:00"], "continents": ["North America"],
  "flags": {"png": "https://flagcdn.com/w320/ca.png", "svg": "https://flagcdn.com/ca.svg"}
}]`

const southAfricaDoc = `[{
  "name": {"common": "South Africa", "official": "Republic of South Africa"},
  "languages": {"afr": "Afrikaans", "eng": "English", "sfs": %q, "zul": "Zulu"}
}]`

func independent(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"cca3": "C%03d", "independent": true}`, i)
	}
	return "[" + strings.Join(items, ",") + "]"
}

type fixture struct {
	canada      string
	independent string
	southAfrica string
}

func newServer(t *testing.T, f fixture) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body string
		switch r.URL.Path {
		case "/v3.1/name/Canada":
			body = f.canada
		case "/v3.1/independent":
			body = f.independent
		case "/v3.1/name/South Africa":
			body = f.southAfrica
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("fullText") == "" && r.URL.Path != "/v3.1/independent" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func run(t *testing.T, f fixture) map[string]*runner.CaseResult {
	t.Helper()
	server := newServer(t, f)

	result, err := runner.NewRunner(&runner.Config{BaseURL: server.URL + "/v3.1"}).Run(context.Background(), Suite())
	require.NoError(t, err)

	byName := make(map[string]*runner.CaseResult, len(result.Results))
	for _, r := range result.Results {
		byName[r.Name] = r
	}
	return byName
}

func TestSuite_Cases(t *testing.T) {
	s := Suite()
	require.Len(t, s.Cases, 3)
	assert.Equal(t, SchemaValidation, s.Cases[0].Name)
	assert.Equal(t, TotalCountries, s.Cases[1].Name)
	assert.Equal(t, SASLLanguage, s.Cases[2].Name)

	env := &runner.Env{BaseURL: DefaultBaseURL}
	assert.Equal(t, DefaultBaseURL+"/name/Canada?fullText=true", s.Cases[0].Build(env).URL())
	assert.Equal(t, DefaultBaseURL+"/independent", s.Cases[1].Build(env).URL())
	assert.Equal(t, DefaultBaseURL+"/name/South%20Africa?fullText=true", s.Cases[2].Build(env).URL())
}

func TestSuite_AllPass(t *testing.T) {
	results := run(t, fixture{
		canada:      canada,
		independent: independent(IndependentCount),
		southAfrica: fmt.Sprintf(southAfricaDoc, "SASL"),
	})

	for name, r := range results {
		assert.True(t, r.Passed, "%s failed: %v %v", name, r.Error, r.FailedAssertions())
	}
}

func TestSchemaValidation_ReportsPointer(t *testing.T) {
	broken := strings.Replace(canada, `"area": 9984670`, `"area": "huge"`, 1)
	results := run(t, fixture{canada: broken, independent: independent(IndependentCount), southAfrica: "[]"})

	r := results[SchemaValidation]
	require.False(t, r.Passed)
	failed := r.FailedAssertions()
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Message, "Schema validation failed:")
	assert.Contains(t, failed[0].Message, " at #/0/area : ")
}

func TestSchemaValidation_RootNotArray(t *testing.T) {
	results := run(t, fixture{canada: `{"status": 404, "message": "Not Found"}`, independent: "[]", southAfrica: "[]"})

	r := results[SchemaValidation]
	assert.False(t, r.Passed)
	assert.Len(t, r.FailedAssertions(), 2)
}

func TestTotalCountries_WrongCount(t *testing.T) {
	results := run(t, fixture{canada: canada, independent: independent(194), southAfrica: "[]"})

	r := results[TotalCountries]
	require.False(t, r.Passed)
	assert.Equal(t, "expected length 195, got 194", r.FailedAssertions()[0].Message)
}

func TestSASLLanguage(t *testing.T) {
	tests := []struct {
		language string
		passed   bool
	}{
		{"SASL", true},
		{"sasl", true},
		{"south african sign language", true},
		{"official south african sign language (sasl)", true},
		{"South African Sign Language", false},
		{"Sasl", false},
		{"Xhosa", false},
	}

	for _, tt := range tests {
		t.Run(tt.language, func(t *testing.T) {
			results := run(t, fixture{
				canada:      canada,
				independent: "[]",
				southAfrica: fmt.Sprintf(southAfricaDoc, tt.language),
			})
			assert.Equal(t, tt.passed, results[SASLLanguage].Passed)
		})
	}
}

func TestSASLLanguage_CountryMissing(t *testing.T) {
	results := run(t, fixture{
		canada:      canada,
		independent: "[]",
		southAfrica: `[{"name": {"common": "Lesotho"}, "languages": {"sot": "SASL"}}]`,
	})

	r := results[SASLLanguage]
	require.False(t, r.Passed)
	assert.Len(t, r.FailedAssertions(), 2)
}
