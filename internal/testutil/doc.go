// Package testutil holds helpers shared by tests and the scenario harness.
package testutil
