package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhub/lms/core"
)

type welcomeData struct {
	Name     string
	Role     string
	Username string
}

func welcomeMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Jane", Address: "jane@lms.dev"}},
		Subject:      "Welcome",
		TemplateName: core.TemplateWelcome,
		TemplateData: welcomeData{Name: "Jane", Role: "student", Username: "jane"},
	}
}

func TestConsoleService_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf)

	svc.SendMessages(
		welcomeMessage(),
		&core.EmailMessage{Subject: "no recipient", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "a@lms.dev"}}, Subject: "no content"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Welcome", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "Hello Jane,")
	assert.Contains(t, sent[0].TextContent, `Your student account "jane" is ready.`)
	assert.Contains(t, sent[0].TextContent, "The "+conf.AppName+" team")
	assert.Contains(t, sent[0].HTMLContent, "Jane")

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_Output(t *testing.T) {
	conf := core.NewTestConfig()
	out := new(bytes.Buffer)
	svc := NewConsoleService(conf, core.NewNopLogger())
	svc.out = out

	msg := welcomeMessage()
	require.NoError(t, msg.Attach(strings.NewReader("hello"), "hello.txt", "text/plain"))
	svc.SendMessages(msg)
	svc.Wait()

	body := out.String()
	assert.Contains(t, body, "Subject: ["+conf.AppName+"] Welcome")
	assert.Contains(t, body, `To: "Jane" <jane@lms.dev>`)
	assert.Contains(t, body, "multipart/mixed")
	assert.Contains(t, body, "attachment; filename=hello.txt")
	assert.Contains(t, body, "aGVsbG8=") // base64 of "hello"
	assert.Len(t, svc.SentMessages(), 1)
}

func TestSendgridService_Prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, core.NewNopLogger())

	msg := welcomeMessage()
	msg.Cc = []mail.Address{{Address: "cc@lms.dev"}}
	require.NoError(t, msg.Render(conf.AppName, conf.FrontendBaseURL))

	m := svc.prepare(msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "["+conf.AppName+"] Welcome", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "jane@lms.dev", p.To[0].Address)
	require.Len(t, p.CC, 1)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
	assert.Equal(t, "noreply@localhost", m.From.Address)
}
