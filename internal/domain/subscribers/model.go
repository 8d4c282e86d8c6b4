package subscribers

import (
	"strings"
	"time"

	"acessonucleo-hub/internal/domain/plans"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSubscriber Role = "assinante"
)

type Status string

const (
	StatusPending   Status = "pendente"
	StatusActive    Status = "ativo"
	StatusSuspended Status = "suspenso"
	StatusRejected  Status = "rejeitado"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusRejected:
		return true
	}
	return false
}

// Subscriber is one row per end user. Column and JSON names are the storage
// wire contract.
type Subscriber struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      *string    `gorm:"column:user_id;type:uuid;uniqueIndex:idx_assinantes_user_id" json:"user_id"`
	Name        string     `gorm:"column:nome;not null" json:"nome"`
	Email       string     `gorm:"column:email;not null;uniqueIndex:idx_assinantes_email" json:"email"`
	Role        Role       `gorm:"column:role;type:varchar(20);not null;default:'assinante'" json:"role"`
	Status      Status     `gorm:"column:status;type:varchar(20);not null;default:'pendente';index" json:"status"`
	Plan        *string    `gorm:"column:plano" json:"plano"`
	ExpiresAt   *time.Time `gorm:"column:data_expiracao" json:"data_expiracao"`
	AdminNote   *string    `gorm:"column:observacao_admin" json:"observacao_admin"`
	LastLoginAt *time.Time `gorm:"column:ultimo_login" json:"ultimo_login"`
	CreatedAt   time.Time  `gorm:"column:criado_em;autoCreateTime" json:"criado_em"`
}

func (Subscriber) TableName() string { return "assinantes" }

func (s *Subscriber) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Email = NormalizeEmail(s.Email)
	return nil
}

// New returns the row created at registration: pending, subscriber role, no plan.
func New(userID, email, name string, role Role) *Subscriber {
	if role == "" {
		role = RoleSubscriber
	}
	uid := userID
	return &Subscriber{
		UserID: &uid,
		Name:   name,
		Email:  NormalizeEmail(email),
		Role:   role,
		Status: StatusPending,
	}
}

// PlanRef parses the stored plan label. Legacy or unset values report false.
func (s *Subscriber) PlanRef() (plans.Plan, bool) {
	if s.Plan == nil {
		return "", false
	}
	p, err := plans.Parse(*s.Plan)
	if err != nil {
		return "", false
	}
	return p, true
}

func (s *Subscriber) IsAdmin() bool { return s.Role == RoleAdmin }

// Expired reports whether an expiration is set and already past at now.
func (s *Subscriber) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LocalPart is used as a display-name fallback when a provider omits the name.
func LocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// RoleFor grants the admin role to the configured bootstrap email only.
func RoleFor(email, adminEmail string) Role {
	if adminEmail != "" && NormalizeEmail(email) == NormalizeEmail(adminEmail) {
		return RoleAdmin
	}
	return RoleSubscriber
}
