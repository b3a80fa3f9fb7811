// Package templates registers the Handlebars helpers available to suite files.
package templates

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aymerick/raymond"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

var charsets = map[string]string{
	"ALPHANUMERIC": "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
	"ALPHABETIC":   "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"NUMERIC":      "0123456789",
	"HEXADECIMAL":  "0123456789abcdef",
}

var registerOnce sync.Once

// Register installs the helpers in raymond's global registry. Only the first
// call has an effect.
func Register() {
	registerOnce.Do(func() {
		raymond.RegisterHelper("randomValue", randomValue)
		raymond.RegisterHelper("randomInt", randomInt)
		raymond.RegisterHelper("uuid", func(options *raymond.Options) string {
			return uuid.NewString()
		})
		raymond.RegisterHelper("now", now)
		raymond.RegisterHelper("faker", fake)
		raymond.RegisterHelper("cut", func(value, toRemove interface{}) raymond.SafeString {
			return raymond.SafeString(strings.ReplaceAll(raymond.Str(value), raymond.Str(toRemove), ""))
		})
		raymond.RegisterHelper("replace", func(value, old, replacement interface{}) raymond.SafeString {
			content, oldStr := raymond.Str(value), raymond.Str(old)
			if oldStr == "" {
				return raymond.SafeString(content)
			}
			return raymond.SafeString(strings.ReplaceAll(content, oldStr, raymond.Str(replacement)))
		})
		raymond.RegisterHelper("substring", substring)
		raymond.RegisterHelper("jsonString", jsonString)
		raymond.RegisterHelper("fence", fence)
	})
}

// randomValue: {{randomValue type="NUMERIC" length=6 uppercase=true}}
func randomValue(options *raymond.Options) string {
	kind := strings.ToUpper(options.HashStr("type"))
	if kind == "UUID" {
		return uuid.NewString()
	}
	charset, ok := charsets[kind]
	if !ok {
		charset = charsets["ALPHANUMERIC"]
	}

	length := 10
	if v := options.HashProp("length"); v != nil {
		length = toInt(v)
	}

	result := randomString(charset, length)
	if raymond.IsTrue(options.HashProp("uppercase")) {
		result = strings.ToUpper(result)
	}
	return result
}

// randomInt: {{randomInt lower=1 upper=6}}, bounds inclusive.
func randomInt(options *raymond.Options) string {
	lower, upper := 0, 100
	if v := options.HashProp("lower"); v != nil {
		lower = toInt(v)
	}
	if v := options.HashProp("upper"); v != nil {
		upper = toInt(v)
	}
	if lower > upper {
		lower, upper = upper, lower
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(upper-lower+1)))
	if err != nil {
		return strconv.Itoa(lower)
	}
	return strconv.Itoa(int(n.Int64()) + lower)
}

// now: {{now offset="-1 day" timezone="Europe/Paris" format="yyyy-MM-dd"}}.
// format also accepts "unix" and "epoch" (milliseconds); the default is RFC 3339.
func now(options *raymond.Options) string {
	t := time.Now().UTC()
	if offset := options.HashStr("offset"); offset != "" {
		if d, err := ParseOffset(offset); err == nil {
			t = t.Add(d)
		}
	}
	if tz := options.HashStr("timezone"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			t = t.In(loc)
		}
	}

	switch format := options.HashStr("format"); format {
	case "":
		return t.Format(time.RFC3339)
	case "unix":
		return strconv.FormatInt(t.Unix(), 10)
	case "epoch":
		return strconv.FormatInt(t.UnixMilli(), 10)
	default:
		return t.Format(JavaToGoDateFormat(format))
	}
}

var fakers = map[string]func(f *gofakeit.Faker) string{
	"Name.first_name":    func(f *gofakeit.Faker) string { return f.FirstName() },
	"Name.last_name":     func(f *gofakeit.Faker) string { return f.LastName() },
	"Name.full_name":     func(f *gofakeit.Faker) string { return f.Name() },
	"Address.city":       func(f *gofakeit.Faker) string { return f.City() },
	"Address.country":    func(f *gofakeit.Faker) string { return f.Country() },
	"Address.street":     func(f *gofakeit.Faker) string { return f.Street() },
	"Address.postcode":   func(f *gofakeit.Faker) string { return f.Zip() },
	"Internet.email":     func(f *gofakeit.Faker) string { return f.Email() },
	"Internet.username":  func(f *gofakeit.Faker) string { return f.Username() },
	"Internet.url":       func(f *gofakeit.Faker) string { return f.URL() },
	"Company.name":       func(f *gofakeit.Faker) string { return f.Company() },
	"Company.profession": func(f *gofakeit.Faker) string { return f.JobTitle() },
	"Lorem.word":         func(f *gofakeit.Faker) string { return f.Word() },
	"Lorem.sentence":     func(f *gofakeit.Faker) string { return f.Sentence(5) },
	"Misc.uuid":          func(f *gofakeit.Faker) string { return f.UUID() },
	"Misc.digit":         func(f *gofakeit.Faker) string { return f.Digit() },
	"Misc.date":          func(f *gofakeit.Faker) string { return f.Date().Format("2006-01-02") },
}

// fake: {{faker "Internet.email"}}. Unknown keys render empty.
func fake(key string) string {
	gen, ok := fakers[key]
	if !ok {
		return ""
	}
	return gen(gofakeit.New(0))
}

// substring: {{substring value start=0 end=5}}, indices in runes, clamped.
func substring(value interface{}, options *raymond.Options) raymond.SafeString {
	runes := []rune(raymond.Str(value))
	start, end := 0, len(runes)
	if v := options.HashProp("start"); v != nil {
		start = toInt(v)
	}
	if v := options.HashProp("end"); v != nil {
		end = toInt(v)
	}
	start = min(max(start, 0), len(runes))
	end = min(max(end, start), len(runes))
	return raymond.SafeString(string(runes[start:end]))
}

// jsonString renders a value as a JSON string literal, quotes included, so it
// can be spliced into a JSON document.
func jsonString(value interface{}) raymond.SafeString {
	s, err := sonic.MarshalString(raymond.Str(value))
	if err != nil {
		return ""
	}
	return raymond.SafeString(s)
}

// fence wraps a value in a Markdown code block: {{fence value lang="json"}}.
func fence(value interface{}, options *raymond.Options) raymond.SafeString {
	lang := options.HashStr("lang")
	if lang == "" {
		lang = "json"
	}
	return raymond.SafeString("```" + lang + "\n" + raymond.Str(value) + "\n```")
}

func randomString(charset string, length int) string {
	result := make([]byte, length)
	n := big.NewInt(int64(len(charset)))
	for i := range result {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return ""
		}
		result[i] = charset[idx.Int64()]
	}
	return string(result)
}

func toInt(val interface{}) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(v))
		return i
	default:
		return 0
	}
}

// ParseOffset parses offsets like "3 days", "-24 seconds" or "1 year".
// Months are 30 days and years 365.
func ParseOffset(offset string) (time.Duration, error) {
	parts := strings.Fields(offset)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid offset format %q", offset)
	}
	value, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, err
	}

	day := 24 * time.Hour
	units := map[string]time.Duration{
		"second": time.Second,
		"minute": time.Minute,
		"hour":   time.Hour,
		"day":    day,
		"week":   7 * day,
		"month":  30 * day,
		"year":   365 * day,
	}
	unit, ok := units[strings.TrimSuffix(strings.ToLower(parts[1]), "s")]
	if !ok {
		return 0, fmt.Errorf("unknown time unit: %s", parts[1])
	}
	return time.Duration(value) * unit, nil
}

// javaLayouts is ordered longest pattern first so that "yyyy" wins over "yy".
var javaLayouts = []struct{ java, layout string }{
	{"yyyy", "2006"}, {"MMMM", "January"}, {"EEEE", "Monday"},
	{"MMM", "Jan"}, {"EEE", "Mon"}, {"SSS", "000"},
	{"yy", "06"}, {"MM", "01"}, {"dd", "02"}, {"HH", "15"}, {"hh", "03"},
	{"mm", "04"}, {"ss", "05"},
	{"a", "PM"}, {"z", "MST"}, {"Z", "-0700"},
}

// JavaToGoDateFormat converts a SimpleDateFormat pattern to a Go layout.
func JavaToGoDateFormat(javaFormat string) string {
	var b strings.Builder
	for i := 0; i < len(javaFormat); {
		matched := false
		for _, l := range javaLayouts {
			if strings.HasPrefix(javaFormat[i:], l.java) {
				b.WriteString(l.layout)
				i += len(l.java)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(javaFormat[i])
			i++
		}
	}
	return b.String()
}
