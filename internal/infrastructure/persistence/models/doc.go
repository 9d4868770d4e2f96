// Package models contains GORM persistence models that map to database tables.
// Domain types carry no ORM tags; each model converts to and from its domain
// counterpart with ToDomain and FromDomain.
//
// Timestamps are stored in UTC so range queries compare correctly on every
// supported driver.
package models
