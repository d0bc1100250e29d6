package statistics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/repairdesk/internal/models"
)

type ActivityType string

const (
	ActivityServiceCreated   ActivityType = "SERVICE_CREATED"
	ActivityServiceCompleted ActivityType = "SERVICE_COMPLETED"
	ActivityCustomerAdded    ActivityType = "CUSTOMER_ADDED"
)

const (
	recentServices  = 5
	recentCustomers = 3
	activityLimit   = 6
)

type Activity struct {
	ID          string       `json:"id"`
	Type        ActivityType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Time        time.Time    `json:"time"`
	TimeAgo     string       `json:"timeAgo"`
}

// Activities merges recent ticket and customer events, newest first.
func (s *Service) Activities(ctx context.Context) ([]Activity, error) {
	var services []models.Service
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(recentServices).Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent services: %w", err)
	}
	var customers []models.Customer
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(recentCustomers).Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent customers: %w", err)
	}

	now := s.now()
	activities := make([]Activity, 0, 2*len(services)+len(customers))
	for _, svc := range services {
		device := fmt.Sprintf("%s - %s %s", svc.ServiceNumber, svc.Brand, svc.Model)
		activities = append(activities, Activity{
			ID:          "service-" + svc.ID,
			Type:        ActivityServiceCreated,
			Title:       "New service ticket created",
			Description: device,
			Time:        svc.CreatedAt,
		})
		if svc.CompletedAt != nil {
			activities = append(activities, Activity{
				ID:          "service-completed-" + svc.ID,
				Type:        ActivityServiceCompleted,
				Title:       "Service completed",
				Description: device,
				Time:        *svc.CompletedAt,
			})
		}
	}
	for _, c := range customers {
		activities = append(activities, Activity{
			ID:          "customer-" + c.ID,
			Type:        ActivityCustomerAdded,
			Title:       "New customer added",
			Description: c.Name,
			Time:        c.CreatedAt,
		})
	}

	sort.SliceStable(activities, func(i, j int) bool { return activities[i].Time.After(activities[j].Time) })
	activities = lo.Slice(activities, 0, activityLimit)
	for i := range activities {
		activities[i].TimeAgo = timeAgo(now, activities[i].Time)
	}
	return activities, nil
}

func timeAgo(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	}
	return t.Format(time.DateOnly)
}
