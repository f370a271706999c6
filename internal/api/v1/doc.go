// Package apiv1 pins the public API contract. The OpenAPI document at
// public/docs/v1/openapi.yml is served through the swagger middleware and is
// the source of truth for the endpoint shapes; the test in this package keeps
// the document loadable and internally consistent.
package apiv1
