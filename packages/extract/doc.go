// Package extract resolves dotted paths against an executed response.
//
// A walk starts at the response object and moves through one of a few node
// kinds per segment:
//
//	status_code                  response attribute
//	headers."Content-Type"       header map, case-insensitive
//	body.args.abc                JSON body, exact keys
//	body.items.0.id              JSON array index
//	json().origin                strict JSON parse of the body
//	request.headers.Cookie       the request as it was sent
//	cookies.session              cookies set by the response
//
// Failures carry the offending segment in a *LookupError.
package extract
