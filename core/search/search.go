// Package search looks up courses, study guides, tasks and course contents the actor may see.
package search

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/access"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type EntityType string

const (
	EntityCourse     EntityType = "course"
	EntityStudyGuide EntityType = "study_guide"
	EntityTask       EntityType = "task"
	EntityContent    EntityType = "course_content"

	defaultLimit = 10
	snippetLen   = 160
)

type Query struct {
	Q     string       `query:"q" validate:"required,min=2,max=100"`
	Types []EntityType `query:"types" validate:"omitempty,dive,oneof=course study_guide task course_content"`
	Limit int          `query:"limit" validate:"omitempty,min=1,max=50"`
}

func (q *Query) Validate(validate *validator.Validate) error {
	q.Q = core.CleanString(q.Q)
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	return validate.Struct(q)
}

func (q Query) wants(t EntityType) bool {
	if len(q.Types) == 0 {
		return true
	}
	for _, qt := range q.Types {
		if qt == t {
			return true
		}
	}
	return false
}

type Result struct {
	Type    EntityType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

type Results struct {
	Query       string   `json:"query"`
	Courses     []Result `json:"courses"`
	StudyGuides []Result `json:"study_guides"`
	Tasks       []Result `json:"tasks"`
	Contents    []Result `json:"course_contents"`
	Total       int      `json:"total"`
}

type Scoper interface {
	SearchScope(ctx context.Context, usr user.User) (access.Scope, error)
}

type Service interface {
	Search(ctx context.Context, usr user.User, q Query) (Results, error)
}

type service struct {
	scoper  Scoper
	courses course.Repository
	guides  studyguide.Repository
	tasks   task.Repository
}

var _ Service = (*service)(nil)

func NewService(scoper Scoper, courses course.Repository, guides studyguide.Repository, tasks task.Repository) Service {
	return &service{scoper: scoper, courses: courses, guides: guides, tasks: tasks}
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}

func (svc *service) Search(ctx context.Context, usr user.User, q Query) (Results, error) {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	scope, err := svc.scoper.SearchScope(ctx, usr)
	if err != nil {
		return Results{}, errors.Wrap(err, "resolving search scope")
	}
	res := Results{
		Query:       q.Q,
		Courses:     []Result{},
		StudyGuides: []Result{},
		Tasks:       []Result{},
		Contents:    []Result{},
	}

	if q.wants(EntityCourse) {
		courses, err := svc.courses.QueryCourses(ctx, &course.QueryFilter{Search: q.Q, IDs: scope.CourseIDs}, nil)
		if err != nil {
			return Results{}, errors.Wrap(err, "searching courses")
		}
		for i, c := range courses {
			if i == q.Limit {
				break
			}
			res.Courses = append(res.Courses, Result{Type: EntityCourse, ID: c.ID, Title: c.Name, Snippet: snippet(c.Description)})
		}
	}

	if q.wants(EntityStudyGuide) {
		guides, err := svc.guides.QueryGuides(ctx, &studyguide.QueryFilter{Search: q.Q, UserIDs: scope.UserIDs})
		if err != nil {
			return Results{}, errors.Wrap(err, "searching study guides")
		}
		for i, g := range guides {
			if i == q.Limit {
				break
			}
			res.StudyGuides = append(res.StudyGuides, Result{Type: EntityStudyGuide, ID: g.ID, Title: g.Title, Snippet: snippet(g.Content)})
		}
	}

	if q.wants(EntityTask) {
		tasks, err := svc.tasks.QueryTasks(ctx, &task.QueryFilter{Search: q.Q, UserIDs: scope.UserIDs, IncludeArchived: true}, nil)
		if err != nil {
			return Results{}, errors.Wrap(err, "searching tasks")
		}
		for i, t := range tasks {
			if i == q.Limit {
				break
			}
			res.Tasks = append(res.Tasks, Result{Type: EntityTask, ID: t.ID, Title: t.Title, Snippet: snippet(t.Description)})
		}
	}

	if q.wants(EntityContent) {
		contents, err := svc.courses.QueryContents(ctx, course.ContentFilter{Search: q.Q, CourseIDs: scope.CourseIDs})
		if err != nil {
			return Results{}, errors.Wrap(err, "searching course contents")
		}
		for i, c := range contents {
			if i == q.Limit {
				break
			}
			res.Contents = append(res.Contents, Result{Type: EntityContent, ID: c.ID, Title: c.Title, Snippet: snippet(c.Description)})
		}
	}

	res.Total = len(res.Courses) + len(res.StudyGuides) + len(res.Tasks) + len(res.Contents)
	return res, nil
}
