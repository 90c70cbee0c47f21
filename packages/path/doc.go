// Package path parses the dotted path expressions used to address values in
// a response, such as status_code, headers."Content-Type" or body.args.abc.
package path
