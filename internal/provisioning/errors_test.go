package provisioning

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/classroom-backend/internal/domain"
)

func TestKindOfWrapped(t *testing.T) {
	perr := newError(nil, KindLinkPersistFailed, "dup", errBoom)
	wrapped := fmt.Errorf("job: %w", perr)
	if KindOf(wrapped) != KindLinkPersistFailed || !IsKind(wrapped, KindLinkPersistFailed) {
		t.Fatalf("KindOf: got=%q", KindOf(wrapped))
	}
	if !errors.Is(wrapped, errBoom) {
		t.Fatalf("cause should unwrap")
	}
	if KindOf(errBoom) != "" || IsKind(nil, KindLinkPersistFailed) {
		t.Fatalf("non-provisioning error should have no kind")
	}
}

func TestUserMessages(t *testing.T) {
	ex := NewExercise(
		&types.Assignment{Slug: "a", Kind: types.AssignmentKindGroup},
		&types.Organization{},
		Team{Group: &types.Group{Slug: "g"}},
		uuid.New(),
	)
	cases := map[Kind]string{
		KindRepositoryCreationFailed:         "GitHub repository could not be created, please try again.",
		KindTemplateRepositoryCreationFailed: "GitHub repository could not be created from template, please try again.",
		KindStarterCodeImportFailed:          "We were not able to import you the starter code to your group assignment, please try again.",
		KindCollaboratorAdditionFailed:       "We were not able to add the group to the group assignment, please try again.",
		KindLinkPersistFailed:                "Group assignment could not be created, please try again.",
	}
	for kind, want := range cases {
		if got := newError(ex, kind, "", nil).UserMessage(); got != want {
			t.Fatalf("%s: want=%q got=%q", kind, want, got)
		}
	}

	quota := newError(ex, KindQuotaExceeded, "", nil)
	quota.privateRepos = 1
	if msg := quota.UserMessage(); !strings.Contains(msg, "limit of 1 repository has been reached") {
		t.Fatalf("quota message: got=%q", msg)
	}
}
