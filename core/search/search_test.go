package search_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/search"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	"github.com/theepangnani/emai-dev-03-sub000/tests"
)

func resultIDs(results []search.Result) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestService_Search(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, env.Users, "Admin", "admin@test.cd", "", []user.Role{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, env.Users, "Teach", "teach@test.cd", "", []user.Role{user.RoleTeacher}, true)
	kid := testutil.CreateUser(t, env.Users, "Kid", "kid@test.cd", "", []user.Role{user.RoleStudent}, true)
	mom := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)
	stranger := testutil.CreateUser(t, env.Users, "Stranger", "stranger@test.cd", "", []user.Role{user.RoleParent}, true)
	_, err := env.Rosters.LinkChild(ctx, mom, roster.LinkChild{StudentEmail: kid.Email, Relationship: roster.RelationshipMother})
	require.NoError(t, err)

	algebra, err := env.Courses.Create(ctx, teacher, course.NewCourse{Name: "Algebra", IsPrivate: true})
	require.NoError(t, err)
	sheet, err := env.Courses.CreateContent(ctx, teacher, course.NewContent{
		CourseID: algebra.ID, Title: "Algebra cheat sheet", ContentType: course.ContentNotes,
	})
	require.NoError(t, err)
	homework, err := env.Tasks.Create(ctx, kid, task.NewTask{Title: "Algebra homework", Priority: task.PriorityLow})
	require.NoError(t, err)
	guide, err := env.StudyGuides.Create(ctx, kid, studyguide.NewGuide{
		GuideType: studyguide.TypeStudyGuide, Title: "My algebra notes", Content: strings.Repeat("x", 200),
	})
	require.NoError(t, err)

	q := search.Query{Q: "algebra"}

	t.Run("private course hidden", func(t *testing.T) {
		res, err := env.Search.Search(ctx, kid, q)
		require.NoError(t, err)
		assert.Empty(t, res.Courses)
		assert.Empty(t, res.Contents)
		assert.Equal(t, []string{homework.ID}, resultIDs(res.Tasks))
		require.Equal(t, []string{guide.ID}, resultIDs(res.StudyGuides))
		assert.True(t, strings.HasSuffix(res.StudyGuides[0].Snippet, "..."))
		assert.Equal(t, 2, res.Total)
	})

	t.Run("enrollment reveals the course", func(t *testing.T) {
		_, err := env.Courses.AddStudent(ctx, teacher, algebra.ID, kid.Email)
		require.NoError(t, err)

		res, err := env.Search.Search(ctx, kid, q)
		require.NoError(t, err)
		assert.Equal(t, []string{algebra.ID}, resultIDs(res.Courses))
		assert.Equal(t, []string{sheet.ID}, resultIDs(res.Contents))
	})

	t.Run("parents search their children's items", func(t *testing.T) {
		res, err := env.Search.Search(ctx, mom, q)
		require.NoError(t, err)
		assert.Equal(t, 4, res.Total)

		res, err = env.Search.Search(ctx, stranger, q)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Total)
	})

	t.Run("types and limit", func(t *testing.T) {
		res, err := env.Search.Search(ctx, admin, search.Query{Q: "algebra", Types: []search.EntityType{search.EntityTask}, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, res.Tasks, 1)
		assert.Empty(t, res.Courses)
		assert.Equal(t, 1, res.Total)
	})
}
