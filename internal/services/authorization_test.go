package services_test

import (
	"context"
	"testing"
	"time"

	"task-navigator/internal/models"
	"task-navigator/internal/services"
	"task-navigator/internal/testutil"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type AuthorizationTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service services.AuthorizationService

	ownerID uuid.UUID
	otherID uuid.UUID
	task    models.Task
}

func (suite *AuthorizationTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())
	suite.service = services.NewAuthorizationService(suite.db)

	suite.ownerID = testutil.CreateUser(suite.T(), suite.db, "owner@example.com", "password123").ID
	suite.otherID = testutil.CreateUser(suite.T(), suite.db, "other@example.com", "password123").ID
	suite.task = testutil.CreateTask(suite.T(), suite.db, suite.ownerID, "Owned", time.Now().UTC())
}

func (suite *AuthorizationTestSuite) decide(req services.AuthorizationRequest) *services.AuthorizationDecision {
	if req.Resource == "" {
		req.Resource = services.ResourceUserTasks
	}
	decision, err := suite.service.IsAuthorized(context.Background(), req)
	suite.Require().NoError(err)
	return decision
}

func (suite *AuthorizationTestSuite) TestListIsAllowedForAnyAuthenticatedUser() {
	decision := suite.decide(services.AuthorizationRequest{UserID: suite.otherID, Action: services.ActionRead})
	suite.True(decision.Allowed())
	suite.Equal(services.ReasonOwner, decision.Reason)
}

func (suite *AuthorizationTestSuite) TestOwnerMayUpdate() {
	decision := suite.decide(services.AuthorizationRequest{
		UserID:     suite.ownerID,
		Action:     services.ActionUpdate,
		ResourceID: &suite.task.ID,
	})
	suite.True(decision.Allowed())
}

func (suite *AuthorizationTestSuite) TestNonOwnerUpdateIsDenied() {
	decision := suite.decide(services.AuthorizationRequest{
		UserID:     suite.otherID,
		Action:     services.ActionUpdate,
		ResourceID: &suite.task.ID,
	})
	suite.False(decision.Allowed())
	suite.Equal(services.ReasonNotOwner, decision.Reason)
}

func (suite *AuthorizationTestSuite) TestMissingRowIsDenied() {
	missing := uuid.Must(uuid.NewV4())
	decision := suite.decide(services.AuthorizationRequest{
		UserID:     suite.ownerID,
		Action:     services.ActionUpdate,
		ResourceID: &missing,
	})
	suite.False(decision.Allowed())
	suite.Equal(services.ReasonNotFound, decision.Reason)
}

func (suite *AuthorizationTestSuite) TestCreateForAnotherUserIsDenied() {
	decision := suite.decide(services.AuthorizationRequest{
		UserID:  suite.ownerID,
		Action:  services.ActionCreate,
		OwnerID: &suite.otherID,
	})
	suite.False(decision.Allowed())
	suite.Equal(services.ReasonNotOwner, decision.Reason)

	decision = suite.decide(services.AuthorizationRequest{
		UserID:  suite.ownerID,
		Action:  services.ActionCreate,
		OwnerID: &suite.ownerID,
	})
	suite.True(decision.Allowed())

	decision = suite.decide(services.AuthorizationRequest{UserID: suite.ownerID, Action: services.ActionCreate})
	suite.True(decision.Allowed(), "an omitted owner defaults to the caller")
}

func (suite *AuthorizationTestSuite) TestUnknownResourceOrActionIsDenied() {
	decision := suite.decide(services.AuthorizationRequest{UserID: suite.ownerID, Resource: "users", Action: services.ActionRead})
	suite.False(decision.Allowed())

	decision = suite.decide(services.AuthorizationRequest{UserID: suite.ownerID, Action: "delete", ResourceID: &suite.task.ID})
	suite.False(decision.Allowed())

	decision = suite.decide(services.AuthorizationRequest{UserID: uuid.Nil, Action: services.ActionRead})
	suite.False(decision.Allowed())
}

func (suite *AuthorizationTestSuite) TestLogAuthorizationDecision() {
	decision := suite.decide(services.AuthorizationRequest{
		UserID:        suite.otherID,
		Action:        services.ActionUpdate,
		ResourceID:    &suite.task.ID,
		IPAddress:     "10.0.0.1",
		UserAgent:     "test-agent",
		RequestMethod: "PATCH",
		RequestPath:   "/rest/v1/user_tasks/" + suite.task.ID.String(),
	})

	suite.Require().NoError(suite.service.LogAuthorizationDecision(context.Background(), *decision))

	var logs []models.AuditLog
	suite.Require().NoError(suite.db.Find(&logs).Error)
	suite.Require().Len(logs, 1)
	suite.Equal("update_user_tasks", logs[0].Action)
	suite.Equal(services.DecisionDenied, logs[0].Decision)
	suite.Equal(services.ReasonNotOwner, logs[0].Reason)
	suite.Equal(suite.otherID, logs[0].UserID)
	suite.Require().NotNil(logs[0].ResourceID)
	suite.Equal(suite.task.ID, *logs[0].ResourceID)
	suite.Equal("PATCH", logs[0].RequestMethod)
}

func TestAuthorizationTestSuite(t *testing.T) {
	suite.Run(t, new(AuthorizationTestSuite))
}
