package service

import (
	"github.com/noah-isme/feedback-insights-api/internal/models"
)

// Decision is the outcome of an authorization check: an explicit allow/deny
// plus the reason, instead of exception-driven fallback chains.
type Decision struct {
	Allow  bool
	Reason string
}

func allow(reason string) Decision {
	return Decision{Allow: true, Reason: reason}
}

func deny(reason string) Decision {
	return Decision{Allow: false, Reason: reason}
}

// CanViewAggregates decides whether the caller may read question, department
// or institution statistics. Directors see everything; a head of department
// sees aggregates too (scoping to their own department happens in the
// handler, not here).
func CanViewAggregates(claims *models.JWTClaims) Decision {
	if claims == nil {
		return deny("no authenticated user")
	}
	switch {
	case claims.HasRole(models.RoleExecutiveDirector):
		return allow("executive director")
	case claims.HasRole(models.RoleAcademicDirector):
		return allow("academic director")
	case claims.HasRole(models.RoleHOD):
		return allow("head of department")
	}
	return deny("requires a director or head-of-department role")
}

// CanViewIndividualReports decides whether the caller may read per-user
// breakdowns. These expose individual submissions, so they are limited to
// directors.
func CanViewIndividualReports(claims *models.JWTClaims) Decision {
	if claims == nil {
		return deny("no authenticated user")
	}
	if claims.HasRole(models.RoleExecutiveDirector) || claims.HasRole(models.RoleAcademicDirector) {
		return allow("director")
	}
	return deny("individual breakdowns require a director role")
}

// CanSubmitFeedback decides whether the caller may record ratings.
func CanSubmitFeedback(claims *models.JWTClaims) Decision {
	if claims == nil {
		return deny("no authenticated user")
	}
	if claims.HasRole(models.RoleStudent) || claims.HasRole(models.RoleStaff) {
		return allow("feedback submitter")
	}
	return deny("feedback submission requires a student or staff role")
}
