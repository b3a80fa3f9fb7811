package templates_test

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aymerick/raymond"
	"github.com/google/uuid"
	"github.com/mykhaliev/llm-judge/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, source string, ctx map[string]string) string {
	t.Helper()
	templates.Register()
	out, err := raymond.Render(source, ctx)
	require.NoError(t, err)
	return out
}

func TestRandomHelpers(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), render(t, `{{randomValue type="NUMERIC" length=6}}`, nil))
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{10}$`), render(t, `{{randomValue uppercase=true}}`, nil))
	assert.Equal(t, "7", render(t, `{{randomInt lower=7 upper=7}}`, nil))

	n, err := strconv.Atoi(render(t, `{{randomInt lower=10 upper=1}}`, nil))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 10)

	_, err = uuid.Parse(render(t, `{{uuid}}`, nil))
	assert.NoError(t, err)
	_, err = uuid.Parse(render(t, `{{randomValue type="UUID"}}`, nil))
	assert.NoError(t, err)
}

func TestNow(t *testing.T) {
	sec, err := strconv.ParseInt(render(t, `{{now format="unix"}}`, nil), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), sec, 5)

	shifted, err := strconv.ParseInt(render(t, `{{now format="unix" offset="-1 day"}}`, nil), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(-24*time.Hour).Unix(), shifted, 5)

	_, err = time.Parse(time.RFC3339, render(t, `{{now}}`, nil))
	assert.NoError(t, err)
}

func TestFaker(t *testing.T) {
	assert.Contains(t, render(t, `{{faker "Internet.email"}}`, nil), "@")
	assert.NotEmpty(t, render(t, `{{faker "Address.city"}}`, nil))
	assert.Empty(t, render(t, `{{faker "Nope.nothing"}}`, nil))
}

func TestStringHelpers(t *testing.T) {
	ctx := map[string]string{
		"answer": `The "capital" is Paris`,
		"city":   "北京市",
		"body":   `{"city": "Paris"}`,
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "cut", template: `{{cut answer " is Paris"}}`, want: `The "capital"`},
		{name: "replace", template: `{{replace answer "Paris" "Lyon"}}`, want: `The "capital" is Lyon`},
		{name: "replace empty old", template: `{{replace answer "" "x"}}`, want: `The "capital" is Paris`},
		{name: "substring runes", template: `{{substring city start=0 end=2}}`, want: "北京"},
		{name: "substring clamped", template: `{{substring city start=1 end=99}}`, want: "京市"},
		{name: "jsonString", template: `{"answer": {{jsonString answer}} }`, want: `{"answer": "The \"capital\" is Paris" }`},
		{name: "fence", template: `{{fence body}}`, want: "```json\n{\"city\": \"Paris\"}\n```"},
		{name: "fence lang", template: `{{fence city lang="text"}}`, want: "```text\n北京市\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.template, ctx))
		})
	}
}

func TestRegister_Idempotent(t *testing.T) {
	templates.Register()
	assert.NotPanics(t, templates.Register)
}

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "3 days", want: 72 * time.Hour},
		{in: "-24 seconds", want: -24 * time.Second},
		{in: "1 Week", want: 7 * 24 * time.Hour},
		{in: "2 months", want: 60 * 24 * time.Hour},
		{in: "1 fortnight", wantErr: true},
		{in: "days", wantErr: true},
		{in: "x days", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := templates.ParseOffset(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJavaToGoDateFormat(t *testing.T) {
	assert.Equal(t, "2006-01-02 15:04:05", templates.JavaToGoDateFormat("yyyy-MM-dd HH:mm:ss"))
	assert.Equal(t, "02 Jan 06", templates.JavaToGoDateFormat("dd MMM yy"))
	assert.Equal(t, "Monday, January", templates.JavaToGoDateFormat("EEEE, MMMM"))
	assert.True(t, strings.HasSuffix(templates.JavaToGoDateFormat("HH:mm:ss.SSS"), ".000"))
}
