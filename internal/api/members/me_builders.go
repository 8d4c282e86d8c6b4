package members

import (
	"time"

	"acessonucleo-hub/internal/domain/access"
	"acessonucleo-hub/internal/domain/plans"
	"acessonucleo-hub/internal/domain/subscribers"
)

func BuildUserDTO(sub *subscribers.Subscriber) UserDTO {
	return UserDTO{
		ID:          sub.ID,
		Email:       sub.Email,
		Name:        sub.Name,
		Role:        string(sub.Role),
		Status:      string(sub.Status),
		LastLoginAt: sub.LastLoginAt,
		CreatedAt:   sub.CreatedAt,
	}
}

// BuildPlanDTO returns nil for subscribers without a recognised plan.
func BuildPlanDTO(now time.Time, sub *subscribers.Subscriber) *PlanDTO {
	p, ok := sub.PlanRef()
	if !ok {
		return nil
	}
	info, err := plans.Lookup(p)
	if err != nil {
		return nil
	}
	return &PlanDTO{
		Value:     string(info.Plan),
		Label:     info.Label,
		Duration:  info.DurationLabel,
		ExpiresAt: sub.ExpiresAt,
		DaysLeft:  daysLeft(now, sub.ExpiresAt),
	}
}

func daysLeft(now time.Time, end *time.Time) *int {
	if end == nil {
		return nil
	}
	d := 0
	if now.Before(*end) {
		d = int(end.Sub(now).Hours() / 24)
	}
	return &d
}

func BuildAccessDTO(res access.Result) AccessDTO {
	return AccessDTO{
		Decision:  string(res.Decision),
		Redirect:  res.Redirect,
		Status:    string(res.EffectiveStatus),
		Expired:   res.Expired,
		AdminNote: res.AdminNote,
	}
}
