package googlesvc

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/api/classroom/v1"
	"google.golang.org/api/option"

	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type ClassroomFetcher struct {
	oauth *OAuth
	opts  []option.ClientOption
}

var _ communication.Fetcher = (*ClassroomFetcher)(nil)

func NewClassroomFetcher(oauth *OAuth, opts ...option.ClientOption) *ClassroomFetcher {
	return &ClassroomFetcher{oauth: oauth, opts: opts}
}

func (f *ClassroomFetcher) Source() communication.Source { return communication.SourceClassroom }

type classroomTeacher struct {
	name, email string
}

func (f *ClassroomFetcher) FetchSince(ctx context.Context, usr user.User, since time.Time) ([]communication.Item, string, error) {
	ts, tok, err := f.oauth.tokenSource(ctx, usr.GoogleToken)
	if err != nil {
		return nil, "", err
	}
	svc, err := classroom.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, f.opts...)...)
	if err != nil {
		return nil, "", errors.Wrap(err, "creating classroom client")
	}

	courses, err := svc.Courses.List().CourseStates("ACTIVE").Context(ctx).Do()
	if err != nil {
		return nil, "", errors.Wrap(err, "listing classroom courses")
	}

	var items []communication.Item
	for _, c := range courses.Courses {
		teachers, err := f.teachers(ctx, svc, c.Id)
		if err != nil {
			return nil, "", err
		}
		anns, err := svc.Courses.Announcements.List(c.Id).Context(ctx).Do()
		if err != nil {
			return nil, "", errors.Wrapf(err, "listing announcements of course %s", c.Id)
		}
		for _, a := range anns.Announcements {
			created, err := time.Parse(time.RFC3339, a.CreationTime)
			if err != nil || !created.After(since) {
				continue
			}
			t := teachers[a.CreatorUserId]
			items = append(items, communication.Item{
				SourceID:     a.Id,
				SenderName:   t.name,
				SenderEmail:  t.email,
				Subject:      subjectOf(a.Text),
				Body:         a.Text,
				CourseName:   c.Name,
				ReceivedAt:   created.UTC(),
				TeacherName:  t.name,
				TeacherEmail: t.email,
			})
		}
	}

	token, err := refreshed(ts, tok)
	return items, token, err
}

func (f *ClassroomFetcher) teachers(ctx context.Context, svc *classroom.Service, courseID string) (map[string]classroomTeacher, error) {
	res, err := svc.Courses.Teachers.List(courseID).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrapf(err, "listing teachers of course %s", courseID)
	}
	teachers := make(map[string]classroomTeacher, len(res.Teachers))
	for _, t := range res.Teachers {
		if t.Profile == nil {
			continue
		}
		var name string
		if t.Profile.Name != nil {
			name = t.Profile.Name.FullName
		}
		teachers[t.UserId] = classroomTeacher{name: name, email: strings.ToLower(t.Profile.EmailAddress)}
	}
	return teachers, nil
}

// subjectOf uses the first line of an announcement, shortened, as its subject.
func subjectOf(text string) string {
	line := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	if r := []rune(line); len(r) > 80 {
		return string(r[:77]) + "..."
	}
	return line
}
