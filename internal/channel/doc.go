// Package channel resolves a stored channel row into the Profile every
// pipeline stage consumes, and carries the default channel catalogue that is
// seeded into an empty database.
package channel
