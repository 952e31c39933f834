package studyguide_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	"github.com/theepangnani/emai-dev-03-sub000/tests"
)

type fakeGenerator struct {
	err    error
	source string
}

func (g *fakeGenerator) Generate(_ context.Context, guideType studyguide.Type, title, source string) (string, error) {
	g.source = source
	if g.err != nil {
		return "", g.err
	}
	return string(guideType) + ": " + title, nil
}

func TestService_Generate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, env.Users, "Teach", "teach@test.cd", "", []user.Role{user.RoleTeacher}, true)
	kid := testutil.CreateUser(t, env.Users, "Kid", "kid@test.cd", "", []user.Role{user.RoleStudent}, true)
	mom := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)
	stranger := testutil.CreateUser(t, env.Users, "Stranger", "stranger@test.cd", "", []user.Role{user.RoleParent}, true)
	_, err := env.Rosters.LinkChild(ctx, mom, roster.LinkChild{StudentEmail: kid.Email, Relationship: roster.RelationshipMother})
	require.NoError(t, err)

	math, err := env.Courses.Create(ctx, teacher, course.NewCourse{Name: "Math"})
	require.NoError(t, err)
	notes, err := env.Courses.CreateContent(ctx, teacher, course.NewContent{
		CourseID: math.ID, Title: "Fractions", ContentType: course.ContentNotes, Text: "A fraction is a part of a whole.",
	})
	require.NoError(t, err)
	empty, err := env.Courses.CreateContent(ctx, teacher, course.NewContent{CourseID: math.ID, Title: "Link", ContentType: course.ContentResources})
	require.NoError(t, err)

	gen := &fakeGenerator{}
	svc := studyguide.NewService(env.Repos.StudyGuides, env.Courses, env.Access, gen, env.Audit, env.Logger)

	_, err = svc.Generate(ctx, kid, studyguide.GenerateRequest{CourseContentID: empty.ID, GuideType: studyguide.TypeQuiz})
	assert.Equal(t, studyguide.ErrNoSource, err)

	g, err := svc.Generate(ctx, kid, studyguide.GenerateRequest{CourseContentID: notes.ID, GuideType: studyguide.TypeQuiz})
	require.NoError(t, err)
	assert.Equal(t, "Fractions", g.Title)
	assert.Equal(t, "quiz: Fractions", g.Content)
	assert.Equal(t, math.ID, g.CourseID.String)
	assert.Equal(t, notes.Text, gen.source)

	t.Run("generator failure", func(t *testing.T) {
		gen.err = errors.New("quota exceeded")
		_, err := svc.Generate(ctx, kid, studyguide.GenerateRequest{CourseContentID: notes.ID, GuideType: studyguide.TypeFlashcards})
		assert.Equal(t, studyguide.ErrGenerationFailed, err)
		gen.err = nil

		noAI := studyguide.NewService(env.Repos.StudyGuides, env.Courses, env.Access, nil, env.Audit, env.Logger)
		_, err = noAI.Generate(ctx, kid, studyguide.GenerateRequest{CourseContentID: notes.ID, GuideType: studyguide.TypeQuiz})
		assert.Equal(t, studyguide.ErrGenerationFailed, err)
	})

	t.Run("visibility", func(t *testing.T) {
		_, err := svc.Get(ctx, mom, g.ID)
		assert.NoError(t, err, "parents see their children's guides")
		_, err = svc.Get(ctx, stranger, g.ID)
		assert.Equal(t, studyguide.ErrNotFound, err)

		guides, err := svc.List(ctx, mom, nil)
		require.NoError(t, err)
		assert.Len(t, guides, 1)
		guides, err = svc.List(ctx, stranger, &studyguide.QueryFilter{})
		require.NoError(t, err)
		assert.Empty(t, guides)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, studyguide.ErrOwnerOnly, svc.Delete(ctx, mom, g.ID))
		require.NoError(t, svc.Delete(ctx, kid, g.ID))
		_, err := svc.Get(ctx, kid, g.ID)
		assert.Equal(t, studyguide.ErrNotFound, err)
	})
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.Users, "Teach", "teach@test.cd", "", []user.Role{user.RoleTeacher}, true)
	kid := testutil.CreateUser(t, env.Users, "Kid", "kid@test.cd", "", []user.Role{user.RoleStudent}, true)

	secret, err := env.Courses.Create(ctx, teacher, course.NewCourse{Name: "Secret", IsPrivate: true})
	require.NoError(t, err)

	_, err = env.StudyGuides.Create(ctx, kid, studyguide.NewGuide{
		CourseID: null.StringFrom(secret.ID), GuideType: studyguide.TypeStudyGuide, Title: "Mine", Content: "notes",
	})
	assert.Equal(t, course.ErrNotFound, err, "invisible courses cannot be referenced")

	g, err := env.StudyGuides.Create(ctx, kid, studyguide.NewGuide{GuideType: studyguide.TypeStudyGuide, Title: "Mine", Content: "notes"})
	require.NoError(t, err)
	assert.Equal(t, kid.ID, g.UserID)
	assert.False(t, g.CourseID.Valid)
}
