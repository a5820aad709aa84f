// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing expected sessions and observing store
// traffic. They are not intended for production usage.
package testutil
