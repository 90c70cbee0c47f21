// Package spec provides a fluent builder for HTTP requests in test suites.
//
// A Spec describes one call, runs it, and checks the response through dotted
// paths resolved by package extract:
//
//	spec.Get(server.URL+"/get").
//		T(t).
//		SetParams(map[string]any{"abc": "111"}).
//		SetHeader("Accept", "application/json").
//		Run(nil).
//		AssertStatusCode(200).
//		AssertHeader("content-type", "application/json").
//		AssertBody("args.abc", "111").
//		Validate(`headers."Content-Type"`, "application/json")
//
// Merge setters (SetParams, SetHeaders, SetCookies and their single-key forms)
// add to what is already there; Replace* setters and SetJSON/SetData replace.
//
// The first error of a chain sticks: later steps do nothing and Err returns
// it. When the spec is bound to a test with T, the error fails the test with a
// colored report instead.
//
// Passing the same session from http.NewSession to several Run calls carries
// cookies between them:
//
//	session := http.NewSession()
//	spec.Get(server.URL+"/cookies/set/token/abc").Run(session)
//	spec.Get(server.URL+"/cookies").T(t).Run(session).AssertBody("cookies.token", "abc")
package spec
