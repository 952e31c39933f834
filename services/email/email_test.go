package emailsvc

import (
	"io"
	"log"
	"net/mail"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theepangnani/emai-dev-03-sub000/assets"
	"github.com/theepangnani/emai-dev-03-sub000/core"
	logsvc "github.com/theepangnani/emai-dev-03-sub000/services/logger"
)

func setup(t *testing.T) (*core.Config, *core.EmailTemplates, core.Logger) {
	_ = os.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.SendgridApiKey = ""
	conf.RollbarToken = ""
	tmpls, err := core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf.AppName, conf.FrontendBaseURL, true)
	require.NoError(t, err)
	return conf, tmpls, logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

func notification(to string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Kid", Address: to}},
		Subject:      "New task",
		TemplateName: "notification",
		TemplateData: map[string]interface{}{
			"Name": "Kid", "Title": "Read chapter 3", "Content": "Due Friday", "Link": "/tasks",
		},
	}
}

func TestNewService(t *testing.T) {
	conf, tmpls, logger := setup(t)

	assert.IsType(t, &consoleService{}, NewService(conf, tmpls, logger))

	conf.SendgridApiKey = "SG.lol"
	assert.IsType(t, &sendgridService{}, NewService(conf, tmpls, logger))
}

func TestConsoleService_send(t *testing.T) {
	conf, tmpls, logger := setup(t)
	out := new(strings.Builder)
	svc := &consoleService{
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
		tmpls:            tmpls,
		logger:           logger,
		out:              out,
	}

	t.Run("templated", func(t *testing.T) {
		out.Reset()
		require.True(t, svc.sendMessage(notification("kid@test.cd")))

		got := out.String()
		assert.Contains(t, got, "Subject: ["+conf.AppName+"] New task")
		assert.Contains(t, got, "To: \"Kid\" <kid@test.cd>")
		assert.Contains(t, got, "multipart/alternative")
		assert.Contains(t, got, "Read chapter 3")
		assert.Contains(t, got, conf.FrontendBaseURL+"/tasks")
	})

	t.Run("attachment", func(t *testing.T) {
		out.Reset()
		msg := &core.EmailMessage{To: []mail.Address{{Address: "mom@test.cd"}}, Subject: "Report", BodyStr: "See attached"}
		require.NoError(t, msg.Attach(strings.NewReader("a,b\n1,2\n"), "report.csv", "text/csv"))
		require.True(t, svc.sendMessage(msg))

		got := out.String()
		assert.Contains(t, got, "multipart/mixed")
		assert.Contains(t, got, "filename=report.csv")
		assert.Contains(t, got, "See attached")
	})

	t.Run("skipped", func(t *testing.T) {
		out.Reset()
		assert.False(t, svc.sendMessage(&core.EmailMessage{Subject: "Nobody", BodyStr: "Hello"}))
		assert.False(t, svc.sendMessage(&core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}, TemplateName: "lol"}))
		assert.Empty(t, out.String())
	})
}

func TestMockService(t *testing.T) {
	conf, tmpls, logger := setup(t)
	svc := NewMockService(conf, tmpls, logger)

	svc.SendMessages(notification("kid@test.cd"), &core.EmailMessage{Subject: "Nobody", BodyStr: "Hello"})
	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "kid@test.cd", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Due Friday")
	assert.Contains(t, sent[0].HTMLContent, "Due Friday")

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestSendgridService_prepare(t *testing.T) {
	conf, tmpls, logger := setup(t)
	conf.SendgridApiKey = "SG.lol"
	svc := NewSendgridService(conf, tmpls, logger).(*sendgridService)

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Kid", Address: "kid@test.cd"}},
		Cc:           []mail.Address{{Address: "mom@test.cd"}},
		Subject:      "Invitation",
		TemplateName: "invite",
		TemplateData: map[string]interface{}{
			"InviterName": "Teach", "Role": "student", "Token": "t0k3n", "ExpiresAt": time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, msg.Render(tmpls))

	m := svc.prepare(*msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "["+conf.AppName+"] Invitation", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "kid@test.cd", p.To[0].Address)
	require.Len(t, p.CC, 1)
	assert.Equal(t, "mom@test.cd", p.CC[0].Address)

	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Contains(t, m.Content[0].Value, "accept-invite?token=t0k3n")
	assert.Contains(t, m.Content[0].Value, "Sep 1, 2024")
	assert.Equal(t, "text/html", m.Content[1].Type)
}
