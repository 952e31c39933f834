package inmemdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
)

func TestCourseRepository_DeleteCourse(t *testing.T) {
	ctx := context.Background()
	db := Open()
	courses, tasks, guides := NewCourseRepository(db), NewTaskRepository(db), NewStudyGuideRepository(db)

	math, err := courses.CreateCourse(ctx, course.Course{Name: "Math"})
	require.NoError(t, err)
	chem, err := courses.CreateCourse(ctx, course.Course{Name: "Chemistry"})
	require.NoError(t, err)
	notes, err := courses.CreateContent(ctx, course.Content{CourseID: math.ID, Title: "Notes"})
	require.NoError(t, err)

	linked, err := tasks.CreateTask(ctx, task.Task{
		Title: "Homework", CourseID: null.StringFrom(math.ID), CourseContentID: null.StringFrom(notes.ID),
	})
	require.NoError(t, err)
	other, err := tasks.CreateTask(ctx, task.Task{Title: "Lab", CourseID: null.StringFrom(chem.ID)})
	require.NoError(t, err)
	guide, err := guides.CreateGuide(ctx, studyguide.Guide{
		Title: "Fractions", CourseID: null.StringFrom(math.ID), CourseContentID: null.StringFrom(notes.ID),
	})
	require.NoError(t, err)

	require.NoError(t, courses.DeleteCourse(ctx, math.ID))

	_, err = courses.GetContent(ctx, notes.ID)
	assert.Error(t, err)

	got, err := tasks.GetTask(ctx, linked.ID)
	require.NoError(t, err)
	assert.False(t, got.CourseID.Valid)
	assert.False(t, got.CourseContentID.Valid)

	got, err = tasks.GetTask(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, chem.ID, got.CourseID.String)

	g, err := guides.GetGuide(ctx, guide.ID)
	require.NoError(t, err)
	assert.False(t, g.CourseID.Valid)
	assert.False(t, g.CourseContentID.Valid)
}

func TestCourseRepository_DeleteContent(t *testing.T) {
	ctx := context.Background()
	db := Open()
	courses, tasks := NewCourseRepository(db), NewTaskRepository(db)

	math, err := courses.CreateCourse(ctx, course.Course{Name: "Math"})
	require.NoError(t, err)
	notes, err := courses.CreateContent(ctx, course.Content{CourseID: math.ID, Title: "Notes"})
	require.NoError(t, err)
	tk, err := tasks.CreateTask(ctx, task.Task{
		Title: "Homework", CourseID: null.StringFrom(math.ID), CourseContentID: null.StringFrom(notes.ID),
	})
	require.NoError(t, err)

	require.NoError(t, courses.DeleteContent(ctx, notes.ID))

	got, err := tasks.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, math.ID, got.CourseID.String)
	assert.False(t, got.CourseContentID.Valid)
}
