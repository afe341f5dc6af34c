// Package testutil provides fixtures shared by scoreline's package tests:
// seeded stores, an events-file builder and deterministic run ids.
package testutil
