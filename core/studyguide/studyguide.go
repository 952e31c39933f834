package studyguide

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type Type string

const (
	TypeStudyGuide Type = "study_guide"
	TypeQuiz       Type = "quiz"
	TypeFlashcards Type = "flashcards"
)

var (
	ErrNotFound  = core.NewNotFoundError("study guide not found")
	ErrOwnerOnly = core.NewForbiddenError("only the owner can delete a study guide")
	ErrNoSource  = core.NewValidationError(errors.New("the course content has no text to generate from"))
	// ErrGenerationFailed is returned when the generator is unavailable or fails.
	ErrGenerationFailed = errors.New("study guide generation failed")
)

type Guide struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	CourseID        null.String `json:"course_id"`
	CourseContentID null.String `json:"course_content_id"`
	GuideType       Type        `json:"guide_type"`
	Title           string      `json:"title"`
	Content         string      `json:"content"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type NewGuide struct {
	CourseID  null.String `json:"course_id"`
	GuideType Type        `json:"guide_type" validate:"required,oneof=study_guide quiz flashcards"`
	Title     string      `json:"title" validate:"required,max=200"`
	Content   string      `json:"content" validate:"required"`
}

func (ng *NewGuide) Validate(validate *validator.Validate) error {
	ng.Title = core.CleanString(ng.Title)
	return validate.Struct(ng)
}

type GenerateRequest struct {
	CourseContentID string `json:"course_content_id" validate:"required"`
	GuideType       Type   `json:"guide_type" validate:"required,oneof=study_guide quiz flashcards"`
	Title           string `json:"title" validate:"max=200"`
}

func (gr *GenerateRequest) Validate(validate *validator.Validate) error {
	gr.Title = core.CleanString(gr.Title)
	return validate.Struct(gr)
}

type QueryFilter struct {
	GuideType Type     `query:"guide_type"`
	CourseID  string   `query:"course_id"`
	Search    string   `query:"search"`
	UserIDs   []string `query:"-"` // nil: no restriction
}

func (qf *QueryFilter) Match(g Guide) bool {
	if qf == nil {
		return true
	}
	if qf.GuideType != "" && g.GuideType != qf.GuideType {
		return false
	}
	if qf.CourseID != "" && g.CourseID.String != qf.CourseID {
		return false
	}
	if qf.Search != "" && !core.ContainsFold(g.Title, qf.Search) && !core.ContainsFold(g.Content, qf.Search) {
		return false
	}
	if qf.UserIDs != nil && !core.ContainsString(qf.UserIDs, g.UserID) {
		return false
	}
	return true
}

type (
	Repository interface {
		CreateGuide(ctx context.Context, g Guide) (Guide, error)
		GetGuide(ctx context.Context, id string) (Guide, error)
		QueryGuides(ctx context.Context, filter *QueryFilter) ([]Guide, error)
		DeleteGuide(ctx context.Context, id string) error
	}

	Generator interface {
		Generate(ctx context.Context, guideType Type, title, source string) (string, error)
	}

	Access interface {
		AccessibleUserIDs(ctx context.Context, usr user.User) ([]string, error)
	}

	Service interface {
		Create(ctx context.Context, usr user.User, ng NewGuide) (Guide, error)
		// Generate builds a guide from a course content visible to usr.
		Generate(ctx context.Context, usr user.User, gr GenerateRequest) (Guide, error)
		Get(ctx context.Context, usr user.User, id string) (Guide, error)
		List(ctx context.Context, usr user.User, filter *QueryFilter) ([]Guide, error)
		Delete(ctx context.Context, usr user.User, id string) error
	}

	service struct {
		repo      Repository
		courseSvc course.Service
		access    Access
		generator Generator
		audit     audit.Service
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

// NewService builds the service. generator may be nil, Generate then always fails.
func NewService(repo Repository, courseSvc course.Service, access Access, generator Generator, auditSvc audit.Service, logger core.Logger) Service {
	return &service{repo: repo, courseSvc: courseSvc, access: access, generator: generator, audit: auditSvc, logger: logger}
}

func (svc *service) Create(ctx context.Context, usr user.User, ng NewGuide) (Guide, error) {
	if ng.CourseID.Valid {
		if _, err := svc.courseSvc.Get(ctx, usr, ng.CourseID.String); err != nil {
			return Guide{}, err
		}
	}
	now := core.Now()
	g, err := svc.repo.CreateGuide(ctx, Guide{
		UserID:    usr.ID,
		CourseID:  ng.CourseID,
		GuideType: ng.GuideType,
		Title:     ng.Title,
		Content:   ng.Content,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return g, errors.Wrap(err, "creating study guide")
}

func (svc *service) Generate(ctx context.Context, usr user.User, gr GenerateRequest) (Guide, error) {
	content, err := svc.courseSvc.GetContent(ctx, usr, gr.CourseContentID)
	if err != nil {
		return Guide{}, err
	}
	source := content.Text
	if source == "" {
		source = content.Description
	}
	if source == "" {
		return Guide{}, ErrNoSource
	}
	if svc.generator == nil {
		return Guide{}, ErrGenerationFailed
	}

	title := gr.Title
	if title == "" {
		title = content.Title
	}
	text, err := svc.generator.Generate(ctx, gr.GuideType, title, source)
	if err != nil {
		svc.logger.Error("generating study guide", err, usr)
		return Guide{}, ErrGenerationFailed
	}

	now := core.Now()
	g, err := svc.repo.CreateGuide(ctx, Guide{
		UserID:          usr.ID,
		CourseID:        null.StringFrom(content.CourseID),
		CourseContentID: null.StringFrom(content.ID),
		GuideType:       gr.GuideType,
		Title:           title,
		Content:         text,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Guide{}, errors.Wrap(err, "creating study guide")
	}
	svc.audit.Log(ctx, usr.ID, audit.ActionStudyGuideGen, "study_guide", g.ID, g.GuideType)
	return g, nil
}

func (svc *service) Get(ctx context.Context, usr user.User, id string) (Guide, error) {
	g, err := svc.repo.GetGuide(ctx, id)
	if err != nil {
		return Guide{}, err
	}
	if usr.IsAdmin() || g.UserID == usr.ID {
		return g, nil
	}
	ids, err := svc.access.AccessibleUserIDs(ctx, usr)
	if err != nil {
		return Guide{}, errors.Wrap(err, "resolving accessible users")
	}
	if !core.ContainsString(ids, g.UserID) {
		return Guide{}, ErrNotFound
	}
	return g, nil
}

func (svc *service) List(ctx context.Context, usr user.User, filter *QueryFilter) ([]Guide, error) {
	if filter == nil {
		filter = &QueryFilter{}
	}
	filter.UserIDs = nil
	if !usr.IsAdmin() {
		ids, err := svc.access.AccessibleUserIDs(ctx, usr)
		if err != nil {
			return nil, errors.Wrap(err, "resolving accessible users")
		}
		filter.UserIDs = ids
	}
	return svc.repo.QueryGuides(ctx, filter)
}

func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	g, err := svc.Get(ctx, usr, id)
	if err != nil {
		return err
	}
	if g.UserID != usr.ID {
		return ErrOwnerOnly
	}
	return svc.repo.DeleteGuide(ctx, g.ID)
}
