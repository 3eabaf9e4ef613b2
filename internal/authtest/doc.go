// Package authtest runs a fake primary and ledger API for tests.
package authtest
