// Package models contains GORM persistence models for the local cache tables.
// These models are separate from domain entities so the domain layer stays free of ORM tags.
// Each model has ToDomain and ...FromDomain mappers.
package models
