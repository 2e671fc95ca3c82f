// Package countries holds the REST Countries v3.1 test suite.
package countries

import (
	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
)

// DefaultBaseURL is the public REST Countries endpoint.
const DefaultBaseURL = "https://restcountries.com/v3.1"

// IndependentCount is the number of independent countries the API reports.
const IndependentCount = 195

const (
	SchemaValidation = "schemaValidation"
	TotalCountries   = "confirmTotalCountriesIs195"
	SASLLanguage     = "validateSASLInSouthAfricaLanguages"
)

const southAfrica = `body.#(name.common=="South Africa")`

// Suite returns the country cases in execution order.
func Suite() *runner.Suite {
	return &runner.Suite{
		Name: "REST Countries",
		Cases: []*runner.Case{
			schemaValidation(),
			totalCountries(),
			saslLanguage(),
		},
	}
}

func jsonGet(env *runner.Env, endpoint string) *http.GetRequest {
	req := http.NewGetRequest(env.Client, env.BaseURL, endpoint)
	req.AddHeader("Content-type", "application/json")
	return req
}

func schemaValidation() *runner.Case {
	return &runner.Case{
		Name:        SchemaValidation,
		Description: "Canada matches the country schema",
		Tags:        []string{"schema", "smoke"},
		Build: func(env *runner.Env) http.Requester {
			req := jsonGet(env, "/name/Canada")
			req.AddQueryParam("fullText", "true")
			return req
		},
		Assertions: []*assertions.Assertion{
			assertions.Expect("status", assertions.OpEquals, 200),
			assertions.Expect("header Content-Type", assertions.OpStartsWith, "application/json"),
			assertions.Expect("body", assertions.OpType, "array"),
			assertions.Expect("body", assertions.OpSchema, schema.Countries),
		},
	}
}

func totalCountries() *runner.Case {
	return &runner.Case{
		Name:        TotalCountries,
		Description: "there are exactly 195 independent countries",
		Tags:        []string{"count"},
		Build: func(env *runner.Env) http.Requester {
			return jsonGet(env, "/independent")
		},
		Assertions: []*assertions.Assertion{
			assertions.Expect("status", assertions.OpEquals, 200),
			assertions.Expect("body", assertions.OpLength, IndependentCount),
		},
	}
}

func saslLanguage() *runner.Case {
	return &runner.Case{
		Name:        SASLLanguage,
		Description: "South Africa lists South African Sign Language",
		Tags:        []string{"languages"},
		Build: func(env *runner.Env) http.Requester {
			req := jsonGet(env, "/name/South Africa")
			req.AddQueryParam("fullText", "true")
			return req
		},
		Assertions: []*assertions.Assertion{
			assertions.Expect("status", assertions.OpEquals, 200),
			assertions.Expect(southAfrica, assertions.OpExists, nil),
			assertions.Expect(southAfrica+".languages", assertions.OpSome, SASLMatchers()),
		},
	}
}

// SASLMatchers accept a language name that identifies South African Sign
// Language. Matching is case-sensitive.
func SASLMatchers() []assertions.Matcher {
	return []assertions.Matcher{
		{Operator: assertions.OpContains, Value: "south african sign language"},
		{Operator: assertions.OpEquals, Value: "SASL"},
		{Operator: assertions.OpEquals, Value: "sasl"},
	}
}
