package members

import "time"

type MeResponse struct {
	User   UserDTO   `json:"user"`
	Plan   *PlanDTO  `json:"plano"`
	Access AccessDTO `json:"acesso"`
}

type UserDTO struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"nome"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"ultimo_login"`
	CreatedAt   time.Time  `json:"criado_em"`
}

type PlanDTO struct {
	Value     string     `json:"value"`
	Label     string     `json:"label"`
	Duration  string     `json:"duration"`
	ExpiresAt *time.Time `json:"data_expiracao"`
	DaysLeft  *int       `json:"dias_restantes"`
}

type AccessDTO struct {
	Decision  string  `json:"decision"`
	Redirect  string  `json:"redirect"`
	Status    string  `json:"status_efetivo"`
	Expired   bool    `json:"expirado"`
	AdminNote *string `json:"observacao_admin,omitempty"`
}
