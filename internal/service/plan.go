package service

import (
	"fmt"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
	"github.com/Rocksteady808/roolify-sub002/internal/routing"
)

// Plan is the recipient selection for one submission
type Plan struct {
	Admin routing.Evaluation `json:"admin"`
	User  routing.Evaluation `json:"user"`

	// Problems lists route lists that could not be decoded. Such a list
	// counts as empty, so only its fallback applies.
	Problems []string `json:"problems,omitempty"`
}

// PlanNotifications evaluates both route lists of settings against fields
func PlanNotifications(settings *models.NotificationSettings, fields routing.Fields, resolver routing.Resolver) Plan {
	var plan Plan

	admin, err := settings.ParsedAdminRoutes()
	if err != nil {
		plan.Problems = append(plan.Problems, fmt.Sprintf("admin routes: %v", err))
	}
	user, err := settings.ParsedUserRoutes()
	if err != nil {
		plan.Problems = append(plan.Problems, fmt.Sprintf("user routes: %v", err))
	}

	plan.Admin = routing.Aggregate(fields, admin, settings.AdminFallbackEmail, routing.WithResolver(resolver))
	plan.User = routing.Aggregate(fields, user, settings.UserFallbackEmail, routing.WithResolver(resolver))
	return plan
}
