// Package env handles variables and {{placeholder}} interpolation.
//
// It provides functionality for:
//   - Loading environment files (.env, .env.local, etc.)
//   - Variable interpolation using {{variable}} syntax
//   - Built-in function evaluation ({{uuid()}}, {{timestamp()}}, ...)
//   - OS environment lookups with {{$NAME}}
//   - Captures of values extracted from earlier responses
package env
