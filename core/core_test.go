package core

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrdering(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want []DBOrdering
	}{
		{name: "empty", val: ""},
		{name: "single asc", val: "name", want: []DBOrdering{{Field: "name", Ascending: true}}},
		{
			name: "multiple", val: "is_active, -created_at",
			want: []DBOrdering{{Field: "is_active", Ascending: true}, {Field: "created_at"}},
		},
		{name: "blank fields dropped", val: ",-,", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrdering(tt.val))
		})
	}

	ords := FilterOrderings(ParseOrdering("name,-lol,-created_at"), "name", "created_at")
	assert.Equal(t, []DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}}, ords)
	assert.Equal(t, "created_at DESC", ords[1].String())
}

func TestQueryTime_UnmarshalParam(t *testing.T) {
	var qt QueryTime
	require.NoError(t, qt.UnmarshalParam("2021-01-02T15:04:05+02:00"))
	assert.Equal(t, 13, qt.Hour())
	assert.Error(t, qt.UnmarshalParam("yesterday"))
}

func TestEmailMessage_Render(t *testing.T) {
	msg := &EmailMessage{
		Subject:      "Welcome",
		TemplateName: TemplateWelcome,
		TemplateData: map[string]string{"Name": "Jane", "Role": "student", "Username": "jane"},
	}
	require.NoError(t, msg.Render("ClassHub", "http://front.test"))
	assert.Contains(t, msg.TextContent, "Hello Jane")
	assert.Contains(t, msg.TextContent, "http://front.test/login")
	assert.Contains(t, msg.HTMLContent, "<strong>jane</strong>")
	assert.True(t, msg.HasContent())
	assert.False(t, msg.HasRecipients())

	bad := &EmailMessage{TemplateName: "lol"}
	assert.Error(t, bad.Render("ClassHub", ""))

	plain := &EmailMessage{BodyStr: "hi"}
	require.NoError(t, plain.Render("ClassHub", ""))
	assert.Equal(t, "hi", plain.TextContent)
	assert.Empty(t, plain.HTMLContent)

	require.NoError(t, plain.Attach(strings.NewReader("hello"), "hello.txt"))
	assert.Equal(t, "aGVsbG8=", plain.Attachments[0].Content.String())
	assert.True(t, strings.HasPrefix(plain.Attachments[0].ContentType, "text/plain"))
}

func TestValidators(t *testing.T) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)

	type payload struct {
		Username string `json:"username" validate:"required,alphanum_"`
		Title    string `json:"title" validate:"notblank"`
	}
	err := validate.Struct(payload{Username: "not valid", Title: "  "})
	require.Error(t, err)
	fields := TranslateErrors(err.(validator.ValidationErrors), translator)
	assert.Equal(t, map[string]string{
		"username": "only alphanumeric characters and underscores are allowed",
		"title":    "this field cannot be blank",
	}, fields)

	err = validate.Struct(payload{})
	fields = TranslateErrors(err.(validator.ValidationErrors), translator)
	assert.Equal(t, "this field is required", fields["username"])
}

func TestErrors(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("class")))
	assert.Equal(t, "class not found", NewNotFoundError("class").Error())
	assert.False(t, IsNotFound(NewShutdownError("bye")))
	assert.True(t, IsShutdown(NewShutdownError("bye")))

	vErr := NewValidationError(nil, FieldError{Field: "username", Error: "taken"})
	assert.Equal(t, "username: taken", vErr.Error())
}
