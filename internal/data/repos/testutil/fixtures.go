package testutil

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/classroom-backend/internal/domain"
)

// Classroom bundles the rows one provisioning attempt needs.
type Classroom struct {
	Org        *types.Organization
	User       *types.User
	Group      *types.Group
	Assignment *types.Assignment
	Invitation *types.Invitation
}

func SeedOrganization(tb testing.TB, ctx context.Context, tx *gorm.DB, login string) *types.Organization {
	tb.Helper()
	org := &types.Organization{
		ID:       uuid.New(),
		GitHubID: rand.Int64N(1 << 40),
		Login:    login,
		Title:    login,
	}
	if err := tx.WithContext(ctx).Create(org).Error; err != nil {
		tb.Fatalf("seed organization: %v", err)
	}
	return org
}

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, login string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:          uuid.New(),
		GitHubUID:   rand.Int64N(1 << 40),
		GitHubLogin: login,
		AccessToken: "user-token-" + login,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedGroup(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID uuid.UUID, title string) *types.Group {
	tb.Helper()
	g := &types.Group{
		ID:             uuid.New(),
		OrganizationID: orgID,
		GitHubTeamID:   rand.Int64N(1 << 40),
		Title:          title,
		Slug:           title,
	}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed group: %v", err)
	}
	return g
}

func SeedAssignment(tb testing.TB, ctx context.Context, tx *gorm.DB, a *types.Assignment) *types.Assignment {
	tb.Helper()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Title == "" {
		a.Title = "Intro"
	}
	if a.Slug == "" {
		a.Slug = "intro"
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assignment: %v", err)
	}
	return a
}

func SeedInvitation(tb testing.TB, ctx context.Context, tx *gorm.DB, assignmentID uuid.UUID) *types.Invitation {
	tb.Helper()
	inv := &types.Invitation{ID: uuid.New(), AssignmentID: assignmentID, Key: uuid.NewString()}
	if err := tx.WithContext(ctx).Create(inv).Error; err != nil {
		tb.Fatalf("seed invitation: %v", err)
	}
	return inv
}

// SeedClassroom creates an organization, a student, a group and an
// assignment shaped by configure.
func SeedClassroom(tb testing.TB, ctx context.Context, tx *gorm.DB, configure func(a *types.Assignment)) *Classroom {
	tb.Helper()
	org := SeedOrganization(tb, ctx, tx, "acme-"+uuid.NewString()[:8])
	a := &types.Assignment{OrganizationID: org.ID, PublicRepo: true}
	if configure != nil {
		configure(a)
	}
	a = SeedAssignment(tb, ctx, tx, a)
	return &Classroom{
		Org:        org,
		User:       SeedUser(tb, ctx, tx, "octocat"),
		Group:      SeedGroup(tb, ctx, tx, org.ID, "team-"+uuid.NewString()[:8]),
		Assignment: a,
		Invitation: SeedInvitation(tb, ctx, tx, a.ID),
	}
}
