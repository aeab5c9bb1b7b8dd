// Package triage provides the business boundary for ARIA's email workflow
// engine. It defines the Service (validation, dedup, atomic transitions,
// escalation notification), Store interface (persistence), typed errors,
// and domain models.
package triage
