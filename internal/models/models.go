// Package models defines data structures used throughout the feedback application.
package models

import (
	"database/sql"
	"time"
)

// Role names for admin accounts. Every operator account carries exactly one role.
const (
	RoleAdmin   = "admin"
	RoleFounder = "founder"
	RoleCEO     = "ceo"
)

// ValidRoles lists the accepted account roles.
var ValidRoles = []string{RoleAdmin, RoleFounder, RoleCEO}

// IsValidRole reports whether role is a recognized account role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// CanManageUsers reports whether the role may create, deactivate or delete
// operator accounts.
func CanManageUsers(role string) bool {
	return role == RoleAdmin
}

// CanDeleteSubmissions reports whether the role may soft-delete submissions.
func CanDeleteSubmissions(role string) bool {
	return role == RoleAdmin
}

// User represents an operator account in the system
type User struct {
	ID           int       `json:"id" yaml:"id"`
	Email        string    `json:"email" yaml:"email"`
	Name         string    `json:"name" yaml:"name"`
	PasswordHash string    `json:"-" yaml:"-"` // Omit from JSON responses
	Role         string    `json:"role" yaml:"role"`
	IsActive     bool      `json:"is_active" yaml:"is_active"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// RateLimitEvent records one accepted public submission for a fingerprint.
type RateLimitEvent struct {
	ID          int       `json:"id"`
	IPHash      string    `json:"ip_hash"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// RateLimitStats summarizes the rate_limit_events table for reporting.
type RateLimitStats struct {
	TotalEntries int `json:"total_entries"`
	LastHour     int `json:"last_hour"`
	LastDay      int `json:"last_day"`
	Stale        int `json:"stale"`
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

// AnalyticsSummary aggregates submission counts for the dashboard.
type AnalyticsSummary struct {
	ByCategory map[string]int `json:"by_category"`
	ByStatus   map[string]int `json:"by_status"`
	ByTag      map[string]int `json:"by_tag"`
	Daily      []DailyCount   `json:"daily"`
}

// DailyCount is one per-day submission count in the analytics response.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// InboxStats carries the headline counters shown alongside the inbox listing.
type InboxStats struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	Read     int `json:"read"`
	Resolved int `json:"resolved"`
}
