package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-navigator/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	ResourceUserTasks = "user_tasks"

	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"

	DecisionAllowed = "allowed"
	DecisionDenied  = "denied"

	ReasonOwner    = "owner"
	ReasonNotOwner = "not_owner"
	ReasonNotFound = "not_found"
)

// AuthorizationService decides row ownership for user_tasks requests and
// keeps an audit trail of the decisions.
type AuthorizationService interface {
	IsAuthorized(ctx context.Context, request AuthorizationRequest) (*AuthorizationDecision, error)
	LogAuthorizationDecision(ctx context.Context, decision AuthorizationDecision) error
}

type AuthorizationServiceImpl struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuthorizationService(db *gorm.DB) *AuthorizationServiceImpl {
	return &AuthorizationServiceImpl{db: db, now: time.Now}
}

type AuthorizationRequest struct {
	UserID     uuid.UUID  `json:"user_id"`
	Resource   string     `json:"resource"`
	Action     string     `json:"action"`
	ResourceID *uuid.UUID `json:"resource_id"`
	// OwnerID is the user_id a create request asks to write.
	OwnerID       *uuid.UUID `json:"owner_id"`
	IPAddress     string     `json:"ip_address"`
	UserAgent     string     `json:"user_agent"`
	RequestMethod string     `json:"request_method"`
	RequestPath   string     `json:"request_path"`
}

type AuthorizationDecision struct {
	UserID        uuid.UUID  `json:"user_id"`
	Resource      string     `json:"resource"`
	Action        string     `json:"action"`
	ResourceID    *uuid.UUID `json:"resource_id"`
	Decision      string     `json:"decision"`
	Reason        string     `json:"reason"`
	Timestamp     time.Time  `json:"timestamp"`
	IPAddress     string     `json:"ip_address"`
	UserAgent     string     `json:"user_agent"`
	RequestMethod string     `json:"request_method"`
	RequestPath   string     `json:"request_path"`
}

func (d *AuthorizationDecision) Allowed() bool {
	return d.Decision == DecisionAllowed
}

func (s *AuthorizationServiceImpl) IsAuthorized(ctx context.Context, request AuthorizationRequest) (*AuthorizationDecision, error) {
	decision := &AuthorizationDecision{
		UserID:        request.UserID,
		Resource:      request.Resource,
		Action:        request.Action,
		ResourceID:    request.ResourceID,
		Decision:      DecisionDenied,
		Timestamp:     s.now().UTC(),
		IPAddress:     request.IPAddress,
		UserAgent:     request.UserAgent,
		RequestMethod: request.RequestMethod,
		RequestPath:   request.RequestPath,
	}

	if request.Resource != ResourceUserTasks {
		decision.Reason = fmt.Sprintf("unknown resource %q", request.Resource)
		return decision, nil
	}
	if request.UserID == uuid.Nil {
		decision.Reason = ReasonNotOwner
		return decision, nil
	}

	switch request.Action {
	case ActionRead:
		if request.ResourceID == nil {
			decision.allow()
			return decision, nil
		}
		return s.evaluateRowOwnership(ctx, request, decision)
	case ActionCreate:
		if request.OwnerID != nil && *request.OwnerID != request.UserID {
			decision.Reason = ReasonNotOwner
			return decision, nil
		}
		decision.allow()
		return decision, nil
	case ActionUpdate:
		if request.ResourceID == nil {
			decision.Reason = ReasonNotFound
			return decision, nil
		}
		return s.evaluateRowOwnership(ctx, request, decision)
	default:
		decision.Reason = fmt.Sprintf("unknown action %q", request.Action)
		return decision, nil
	}
}

func (d *AuthorizationDecision) allow() {
	d.Decision = DecisionAllowed
	d.Reason = ReasonOwner
}

func (s *AuthorizationServiceImpl) evaluateRowOwnership(ctx context.Context, request AuthorizationRequest, decision *AuthorizationDecision) (*AuthorizationDecision, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Select("id", "user_id").
		Where("id = ?", *request.ResourceID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		decision.Reason = ReasonNotFound
		return decision, nil
	}
	if err != nil {
		decision.Reason = fmt.Sprintf("ownership lookup failed: %v", err)
		return decision, err
	}

	if task.UserID != request.UserID {
		decision.Reason = ReasonNotOwner
		return decision, nil
	}

	decision.allow()
	return decision, nil
}

func (s *AuthorizationServiceImpl) LogAuthorizationDecision(ctx context.Context, decision AuthorizationDecision) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}

	auditLog := models.AuditLog{
		ID:            id,
		UserID:        decision.UserID,
		Action:        fmt.Sprintf("%s_%s", decision.Action, decision.Resource),
		Resource:      decision.Resource,
		ResourceID:    decision.ResourceID,
		Decision:      decision.Decision,
		Reason:        decision.Reason,
		IPAddress:     decision.IPAddress,
		UserAgent:     decision.UserAgent,
		RequestMethod: decision.RequestMethod,
		RequestPath:   decision.RequestPath,
		Timestamp:     decision.Timestamp,
	}

	return s.db.WithContext(ctx).Create(&auditLog).Error
}
