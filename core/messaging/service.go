package messaging

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

var (
	// errors
	ErrConversationNotFound = core.NewNotFoundError("conversation not found")
	ErrRecipientNotAllowed  = core.NewForbiddenError("you cannot message this user")
	ErrSelfMessage          = core.NewValidationError(errors.New("cannot message yourself"))
)

type (
	Repository interface {
		CreateConversation(ctx context.Context, c Conversation) (Conversation, error)
		GetConversation(ctx context.Context, id string) (Conversation, error)
		// FindConversation returns the conversation between a and b, in either order.
		FindConversation(ctx context.Context, a, b string) (Conversation, error)
		QueryConversations(ctx context.Context, userID string) ([]Conversation, error)
		TouchConversation(ctx context.Context, id string, at time.Time) error

		CreateMessage(ctx context.Context, m Message) (Message, error)
		QueryMessages(ctx context.Context, conversationID string) ([]Message, error)
		// MarkMessagesRead marks the messages of conversationID not sent by readerID as read.
		MarkMessagesRead(ctx context.Context, conversationID, readerID string, at time.Time) error
		// UnreadCounts returns, per conversation, the number of unread messages not sent by userID.
		UnreadCounts(ctx context.Context, userID string) (map[string]int, error)
	}

	Service interface {
		ValidRecipients(ctx context.Context, usr user.User) ([]Recipient, error)
		CreateOrContinue(ctx context.Context, usr user.User, nc NewConversation) (ConversationDetail, error)
		SendMessage(ctx context.Context, usr user.User, conversationID string, nm NewMessage) (Message, error)
		Conversations(ctx context.Context, usr user.User) ([]ConversationSummary, error)
		// Conversation returns a conversation with its messages and marks the received ones as read.
		Conversation(ctx context.Context, usr user.User, id string) (ConversationDetail, error)
		UnreadCount(ctx context.Context, usr user.User) (int, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		users    user.Repository
		rosters  roster.Repository
		courses  course.Repository
		notifSvc notification.Service
		audit    audit.Service
		window   time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	users user.Repository,
	rosters roster.Repository,
	courses course.Repository,
	notifSvc notification.Service,
	auditSvc audit.Service,
	conf *core.Config,
) Service {
	return &service{
		tx:       tx,
		repo:     repo,
		users:    users,
		rosters:  rosters,
		courses:  courses,
		notifSvc: notifSvc,
		audit:    auditSvc,
		window:   conf.MessageNotifyWindow,
	}
}

// recipientSet accumulates recipients keyed by user id, merging related student names.
type recipientSet map[string]*Recipient

func (rs recipientSet) add(usr user.User, role user.Role, studentName string) {
	r, ok := rs[usr.ID]
	if !ok {
		r = &Recipient{UserID: usr.ID, Name: usr.Name, Role: role, StudentNames: []string{}}
		rs[usr.ID] = r
	}
	if studentName != "" && !containsName(r.StudentNames, studentName) {
		r.StudentNames = append(r.StudentNames, studentName)
	}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func (rs recipientSet) slice() []Recipient {
	recipients := make([]Recipient, 0, len(rs))
	for _, r := range rs {
		recipients = append(recipients, *r)
	}
	sort.Slice(recipients, func(i, j int) bool {
		if recipients[i].Name == recipients[j].Name {
			return recipients[i].UserID < recipients[j].UserID
		}
		return recipients[i].Name < recipients[j].Name
	})
	return recipients
}

// ValidRecipients lists the users usr may start a conversation with. Every active admin is
// eligible. Parents reach the teachers of their children, teachers the parents of their students.
// Admins reach every active user.
func (svc *service) ValidRecipients(ctx context.Context, usr user.User) ([]Recipient, error) {
	rs, err := svc.recipients(ctx, usr)
	if err != nil {
		return nil, err
	}
	return rs.slice(), nil
}

func (svc *service) recipients(ctx context.Context, usr user.User) (recipientSet, error) {
	rs := make(recipientSet)
	active := true

	admins, err := svc.users.QueryUsers(ctx, &user.QueryFilter{Roles: []user.Role{user.RoleAdmin}, IsActive: &active}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying admins")
	}
	for _, a := range admins {
		rs.add(a, user.RoleAdmin, "")
	}

	if usr.HasRole(user.RoleAdmin) {
		all, err := svc.users.QueryUsers(ctx, &user.QueryFilter{IsActive: &active}, nil)
		if err != nil {
			return nil, errors.Wrap(err, "querying users")
		}
		for _, u := range all {
			if _, ok := rs[u.ID]; !ok {
				rs.add(u, u.ActiveRole, "")
			}
		}
	}
	if usr.HasRole(user.RoleParent) {
		if err = svc.addTeachersOfChildren(ctx, usr, rs); err != nil {
			return nil, err
		}
	}
	if usr.HasRole(user.RoleTeacher) {
		if err = svc.addParentsOfStudents(ctx, usr, rs); err != nil {
			return nil, err
		}
	}

	delete(rs, usr.ID)
	return rs, nil
}

// studentNames maps student profile ids to the names of their users.
func (svc *service) studentNames(ctx context.Context, studentIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(studentIDs))
	if len(studentIDs) == 0 {
		return names, nil
	}
	profiles, err := svc.rosters.ListStudentProfiles(ctx, studentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "listing student profiles")
	}
	userIDs := make([]string, 0, len(profiles))
	for _, p := range profiles {
		userIDs = append(userIDs, p.UserID)
	}
	users, err := svc.users.QueryUsers(ctx, &user.QueryFilter{IDs: userIDs}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	byID := make(map[string]string, len(users))
	for _, u := range users {
		byID[u.ID] = u.Name
	}
	for _, p := range profiles {
		names[p.ID] = byID[p.UserID]
	}
	return names, nil
}

func (svc *service) activeUsers(ctx context.Context, ids []string) (map[string]user.User, error) {
	byID := make(map[string]user.User, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	active := true
	users, err := svc.users.QueryUsers(ctx, &user.QueryFilter{IDs: core.UniqueStrings(ids), IsActive: &active}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func (svc *service) addTeachersOfChildren(ctx context.Context, parent user.User, rs recipientSet) error {
	links, err := svc.rosters.QueryParentLinks(ctx, roster.LinkFilter{ParentIDs: []string{parent.ID}})
	if err != nil {
		return errors.Wrap(err, "querying parent links")
	}
	if len(links) == 0 {
		return nil
	}
	studentIDs := make([]string, 0, len(links))
	for _, l := range links {
		studentIDs = append(studentIDs, l.StudentID)
	}
	names, err := svc.studentNames(ctx, studentIDs)
	if err != nil {
		return err
	}

	// course teachers
	enrollments, err := svc.courses.QueryEnrollments(ctx, course.EnrollmentFilter{StudentIDs: studentIDs})
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	courseStudents := make(map[string][]string)
	courseIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		courseStudents[e.CourseID] = append(courseStudents[e.CourseID], e.StudentID)
		courseIDs = append(courseIDs, e.CourseID)
	}
	if len(courseIDs) > 0 {
		courses, err := svc.courses.QueryCourses(ctx, &course.QueryFilter{IDs: core.UniqueStrings(courseIDs)}, nil)
		if err != nil {
			return errors.Wrap(err, "querying courses")
		}
		teacherStudents := make(map[string][]string)
		teacherIDs := make([]string, 0, len(courses))
		for _, c := range courses {
			if c.TeacherID.Valid {
				teacherStudents[c.TeacherID.String] = append(teacherStudents[c.TeacherID.String], courseStudents[c.ID]...)
				teacherIDs = append(teacherIDs, c.TeacherID.String)
			}
		}
		if len(teacherIDs) > 0 {
			profiles, err := svc.rosters.ListTeacherProfiles(ctx, core.UniqueStrings(teacherIDs))
			if err != nil {
				return errors.Wrap(err, "listing teacher profiles")
			}
			userIDs := make([]string, 0, len(profiles))
			for _, p := range profiles {
				if p.UserID.Valid {
					userIDs = append(userIDs, p.UserID.String)
				}
			}
			teachers, err := svc.activeUsers(ctx, userIDs)
			if err != nil {
				return err
			}
			for _, p := range profiles {
				t, ok := teachers[p.UserID.String]
				if !p.UserID.Valid || !ok {
					continue
				}
				for _, sid := range teacherStudents[p.ID] {
					rs.add(t, user.RoleTeacher, names[sid])
				}
			}
		}
	}

	// manually linked teachers
	tlinks, err := svc.rosters.QueryTeacherLinks(ctx, roster.TeacherLinkFilter{StudentIDs: studentIDs})
	if err != nil {
		return errors.Wrap(err, "querying teacher links")
	}
	userIDs := make([]string, 0, len(tlinks))
	for _, l := range tlinks {
		if l.TeacherUserID.Valid {
			userIDs = append(userIDs, l.TeacherUserID.String)
		}
	}
	teachers, err := svc.activeUsers(ctx, userIDs)
	if err != nil {
		return err
	}
	for _, l := range tlinks {
		if t, ok := teachers[l.TeacherUserID.String]; ok && l.TeacherUserID.Valid {
			rs.add(t, user.RoleTeacher, names[l.StudentID])
		}
	}
	return nil
}

func (svc *service) addParentsOfStudents(ctx context.Context, teacher user.User, rs recipientSet) error {
	var studentIDs []string
	manualParents := make(map[string][]string) // parent id -> student ids

	tp, err := svc.rosters.GetTeacherProfile(ctx, roster.TeacherFilter{UserID: teacher.ID})
	switch {
	case err == nil:
		courseIDs, err := svc.courses.CourseIDsTaughtBy(ctx, []string{tp.ID})
		if err != nil {
			return errors.Wrap(err, "getting taught courses")
		}
		if len(courseIDs) > 0 {
			enrollments, err := svc.courses.QueryEnrollments(ctx, course.EnrollmentFilter{CourseIDs: courseIDs})
			if err != nil {
				return errors.Wrap(err, "querying enrollments")
			}
			for _, e := range enrollments {
				studentIDs = append(studentIDs, e.StudentID)
			}
		}
	case errors.Cause(err) != roster.ErrTeacherNotFound:
		return errors.Wrap(err, "getting teacher profile")
	}

	tlinks, err := svc.rosters.QueryTeacherLinks(ctx, roster.TeacherLinkFilter{TeacherUserIDs: []string{teacher.ID}})
	if err != nil {
		return errors.Wrap(err, "querying teacher links")
	}
	for _, l := range tlinks {
		manualParents[l.CreatedBy] = append(manualParents[l.CreatedBy], l.StudentID)
		studentIDs = append(studentIDs, l.StudentID)
	}
	if len(studentIDs) == 0 {
		return nil
	}
	studentIDs = core.UniqueStrings(studentIDs)

	names, err := svc.studentNames(ctx, studentIDs)
	if err != nil {
		return err
	}

	parentStudents := manualParents
	links, err := svc.rosters.QueryParentLinks(ctx, roster.LinkFilter{StudentIDs: studentIDs})
	if err != nil {
		return errors.Wrap(err, "querying parent links")
	}
	for _, l := range links {
		parentStudents[l.ParentID] = append(parentStudents[l.ParentID], l.StudentID)
	}

	parentIDs := make([]string, 0, len(parentStudents))
	for id := range parentStudents {
		parentIDs = append(parentIDs, id)
	}
	parents, err := svc.activeUsers(ctx, parentIDs)
	if err != nil {
		return err
	}
	for id, sids := range parentStudents {
		p, ok := parents[id]
		if !ok {
			continue
		}
		for _, sid := range sids {
			rs.add(p, user.RoleParent, names[sid])
		}
	}
	return nil
}

func (svc *service) participant(ctx context.Context, id string) (Participant, error) {
	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Participant{ID: id}, nil
		}
		return Participant{}, errors.Wrap(err, "getting participant")
	}
	return participantOf(usr), nil
}

// CreateOrContinue appends a message to the conversation between usr and the recipient, creating it
// when the pair has none. The recipient must be eligible.
func (svc *service) CreateOrContinue(ctx context.Context, usr user.User, nc NewConversation) (ConversationDetail, error) {
	if nc.RecipientID == usr.ID {
		return ConversationDetail{}, ErrSelfMessage
	}
	rs, err := svc.recipients(ctx, usr)
	if err != nil {
		return ConversationDetail{}, err
	}
	if _, ok := rs[nc.RecipientID]; !ok {
		return ConversationDetail{}, ErrRecipientNotAllowed
	}
	recipient, err := svc.users.GetUser(ctx, user.GetFilter{ID: nc.RecipientID})
	if err != nil {
		return ConversationDetail{}, errors.Wrap(err, "getting recipient")
	}

	var detail ConversationDetail
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		conv, err := svc.findOrCreate(ctx, usr.ID, recipient.ID, nc.Subject, nc.StudentID)
		if err != nil {
			return err
		}
		if _, err = svc.deliver(ctx, usr, recipient, conv, nc.Content); err != nil {
			return err
		}
		msgs, err := svc.repo.QueryMessages(ctx, conv.ID)
		if err != nil {
			return errors.Wrap(err, "querying messages")
		}
		detail = ConversationDetail{Conversation: conv, Other: participantOf(recipient), Messages: msgs}
		return nil
	})
	if err != nil {
		return ConversationDetail{}, err
	}
	return detail, nil
}

func (svc *service) findOrCreate(ctx context.Context, a, b string, subject, studentID null.String) (Conversation, error) {
	conv, err := svc.repo.FindConversation(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if errors.Cause(err) != ErrConversationNotFound {
		return Conversation{}, errors.Wrap(err, "finding conversation")
	}
	now := core.Now()
	conv, err = svc.repo.CreateConversation(ctx, Conversation{
		Participant1ID: a,
		Participant2ID: b,
		StudentID:      studentID,
		Subject:        subject,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	return conv, errors.Wrap(err, "creating conversation")
}

func (svc *service) SendMessage(ctx context.Context, usr user.User, conversationID string, nm NewMessage) (Message, error) {
	conv, err := svc.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return Message{}, err
	}
	if !conv.HasParticipant(usr.ID) {
		return Message{}, ErrConversationNotFound
	}
	recipient, err := svc.users.GetUser(ctx, user.GetFilter{ID: conv.Other(usr.ID)})
	if err != nil {
		return Message{}, errors.Wrap(err, "getting recipient")
	}

	var msg Message
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		msg, err = svc.deliver(ctx, usr, recipient, conv, nm.Content)
		return err
	})
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// deliver appends a message to conv and notifies the recipient. Messages to an admin are
// copied to every other active admin, each in its own conversation with the sender.
func (svc *service) deliver(ctx context.Context, sender, recipient user.User, conv Conversation, content string) (Message, error) {
	msg, err := svc.post(ctx, sender, recipient, conv, content)
	if err != nil {
		return Message{}, err
	}
	svc.audit.Log(ctx, sender.ID, audit.ActionMessageSend, "conversation", conv.ID)

	if !recipient.HasRole(user.RoleAdmin) {
		return msg, nil
	}
	active := true
	admins, err := svc.users.QueryUsers(ctx, &user.QueryFilter{Roles: []user.Role{user.RoleAdmin}, IsActive: &active}, nil)
	if err != nil {
		return Message{}, errors.Wrap(err, "querying admins")
	}
	for _, admin := range admins {
		if admin.ID == sender.ID || admin.ID == recipient.ID {
			continue
		}
		adminConv, err := svc.findOrCreate(ctx, sender.ID, admin.ID, conv.Subject, conv.StudentID)
		if err != nil {
			return Message{}, err
		}
		if _, err = svc.post(ctx, sender, admin, adminConv, content); err != nil {
			return Message{}, err
		}
	}
	return msg, nil
}

func (svc *service) post(ctx context.Context, sender, recipient user.User, conv Conversation, content string) (Message, error) {
	now := core.Now()
	msg, err := svc.repo.CreateMessage(ctx, Message{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        content,
		CreatedAt:      now,
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	if err = svc.repo.TouchConversation(ctx, conv.ID, now); err != nil {
		return Message{}, errors.Wrap(err, "touching conversation")
	}
	return msg, svc.notify(ctx, sender, recipient, conv, content)
}

// notify skips the notification when the recipient still has an unread one for the same
// conversation and sender, emitted within the dedup window.
func (svc *service) notify(ctx context.Context, sender, recipient user.User, conv Conversation, content string) error {
	link := "/messages?conversation=" + conv.ID
	exists, err := svc.notifSvc.Exists(ctx, notification.QueryFilter{
		UserID:        recipient.ID,
		Type:          notification.TypeMessage,
		UnreadOnly:    true,
		Link:          link,
		TitleContains: sender.Name,
		Since:         core.Now().Add(-svc.window),
	})
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	preview := content
	if r := []rune(preview); len(r) > 200 {
		preview = string(r[:200]) + "..."
	}
	_, err = svc.notifSvc.Notify(ctx, recipient, notification.Notification{
		Type:    notification.TypeMessage,
		Title:   "New message from " + sender.Name,
		Content: preview,
		Link:    null.StringFrom(link),
	}, true)
	return err
}

func (svc *service) Conversations(ctx context.Context, usr user.User) ([]ConversationSummary, error) {
	convs, err := svc.repo.QueryConversations(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	counts, err := svc.repo.UnreadCounts(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "counting unread messages")
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		other, err := svc.participant(ctx, conv.Other(usr.ID))
		if err != nil {
			return nil, err
		}
		msgs, err := svc.repo.QueryMessages(ctx, conv.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying messages")
		}
		s := ConversationSummary{Conversation: conv, Other: other, UnreadCount: counts[conv.ID]}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			s.LastMessage = &last
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (svc *service) Conversation(ctx context.Context, usr user.User, id string) (ConversationDetail, error) {
	conv, err := svc.repo.GetConversation(ctx, id)
	if err != nil {
		return ConversationDetail{}, err
	}
	if !conv.HasParticipant(usr.ID) {
		return ConversationDetail{}, ErrConversationNotFound
	}
	if err = svc.repo.MarkMessagesRead(ctx, conv.ID, usr.ID, core.Now()); err != nil {
		return ConversationDetail{}, errors.Wrap(err, "marking messages read")
	}

	other, err := svc.participant(ctx, conv.Other(usr.ID))
	if err != nil {
		return ConversationDetail{}, err
	}
	msgs, err := svc.repo.QueryMessages(ctx, conv.ID)
	if err != nil {
		return ConversationDetail{}, errors.Wrap(err, "querying messages")
	}
	return ConversationDetail{Conversation: conv, Other: other, Messages: msgs}, nil
}

func (svc *service) UnreadCount(ctx context.Context, usr user.User) (int, error) {
	counts, err := svc.repo.UnreadCounts(ctx, usr.ID)
	if err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	var total int
	for _, n := range counts {
		total += n
	}
	return total, nil
}
