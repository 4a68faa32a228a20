package validation

import (
	"net"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"golang.org/x/crypto/bcrypt"

	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// DBTimestampLayout is the layout produced by the db_timestamp filter's String form
const DBTimestampLayout = "2006-01-02 15:04:05"

// MinPasswordLength is the default minimum for the password filter
const MinPasswordLength = 8

// PasswordCost is the bcrypt cost used by the password filter
var PasswordCost = bcrypt.DefaultCost

func builtins() map[string]Filter {
	return map[string]Filter{
		"alpha":         alphaFilter(func(r rune) bool { return unicode.IsLetter(r) }),
		"alpha_numeric": alphaFilter(func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }),
		"alpha_dash": alphaFilter(func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
		}),
		"boolean":      booleanFilter,
		"date":         dateFilter,
		"db_timestamp": dbTimestampFilter,
		"email":        emailFilter,
		"enum":         enumFilter,
		"ip":           ipFilter,
		"matching":     matchingFilter,
		"numeric":      numericFilter,
		"password":     passwordFilter,
		"range":        rangeFilter,
		"required":     requiredFilter,
		"string":       stringFilter,
		"time_zone":    timeZoneFilter,
		"timestamp":    timestampFilter,
		"url":          urlFilter,
		"uuid":         uuidFilter,
	}
}

func alphaFilter(allowed func(rune) bool) Filter {
	return func(v *any, _ []string) bool {
		s, ok := (*v).(string)
		if !ok || s == "" {
			return false
		}
		for _, r := range s {
			if !allowed(r) {
				return false
			}
		}
		return true
	}
}

func booleanFilter(v *any, _ []string) bool {
	b, err := cast.ToBoolE(*v)
	if err != nil {
		return false
	}
	*v = b
	return true
}

func toTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(i, 0).UTC(), true
		}
	}
	switch n := v.(type) {
	case int64:
		return time.Unix(n, 0).UTC(), true
	case int:
		return time.Unix(int64(n), 0).UTC(), true
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// timestampFilter coerces strings, unix seconds and times into a time.Time
func timestampFilter(v *any, _ []string) bool {
	t, ok := toTime(*v)
	if !ok {
		return false
	}
	*v = t
	return true
}

// dbTimestampFilter normalises to UTC with second precision, as stored by SQL backends
func dbTimestampFilter(v *any, _ []string) bool {
	t, ok := toTime(*v)
	if !ok {
		return false
	}
	*v = t.UTC().Truncate(time.Second)
	return true
}

func dateFilter(v *any, _ []string) bool {
	t, ok := toTime(*v)
	if !ok {
		return false
	}
	y, m, d := t.UTC().Date()
	*v = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return true
}

func emailFilter(v *any, _ []string) bool {
	s, ok := (*v).(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	*v = s
	return true
}

func enumFilter(v *any, params []string) bool {
	s, err := cast.ToStringE(*v)
	if err != nil {
		return false
	}
	for _, allowed := range params {
		if s == allowed {
			return true
		}
	}
	return false
}

func ipFilter(v *any, _ []string) bool {
	s, ok := (*v).(string)
	return ok && net.ParseIP(s) != nil
}

func matchingFilter(v *any, params []string) bool {
	s, ok := (*v).(string)
	if !ok || len(params) == 0 {
		return false
	}
	re, err := regexp.Compile(strings.Join(params, ":"))
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// numericFilter coerces to a number; "int" and "float" params force the representation
func numericFilter(v *any, params []string) bool {
	n, err := value.Coerce(*v, value.KindNumber)
	if err != nil || n.IsNull() {
		return false
	}

	mode := ""
	if len(params) > 0 {
		mode = params[0]
	}

	switch mode {
	case "int":
		if n.IsFloat() && n.Float64() != float64(n.Int64()) {
			return false
		}
		*v = n.Int64()
	case "float":
		*v = n.Float64()
	default:
		*v = n.Interface()
	}
	return true
}

func passwordFilter(v *any, params []string) bool {
	s, ok := (*v).(string)
	if !ok {
		return false
	}

	minLen := MinPasswordLength
	if len(params) > 0 {
		n, err := strconv.Atoi(params[0])
		if err != nil {
			return false
		}
		minLen = n
	}
	if utf8.RuneCountInString(s) < minLen {
		return false
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s), PasswordCost)
	if err != nil {
		return false
	}
	*v = string(hash)
	return true
}

func rangeFilter(v *any, params []string) bool {
	n, err := value.Coerce(*v, value.KindNumber)
	if err != nil || n.IsNull() {
		return false
	}
	f := n.Float64()

	if len(params) > 0 && params[0] != "" {
		lo, err := strconv.ParseFloat(params[0], 64)
		if err != nil || f < lo {
			return false
		}
	}
	if len(params) > 1 && params[1] != "" {
		hi, err := strconv.ParseFloat(params[1], 64)
		if err != nil || f > hi {
			return false
		}
	}
	return true
}

func requiredFilter(v *any, _ []string) bool {
	return !IsEmpty(*v)
}

func stringFilter(v *any, params []string) bool {
	s, ok := (*v).(string)
	if !ok {
		return false
	}
	n := utf8.RuneCountInString(s)

	if len(params) > 0 && params[0] != "" {
		lo, err := strconv.Atoi(params[0])
		if err != nil || n < lo {
			return false
		}
	}
	if len(params) > 1 && params[1] != "" {
		hi, err := strconv.Atoi(params[1])
		if err != nil || n > hi {
			return false
		}
	}
	return true
}

func timeZoneFilter(v *any, _ []string) bool {
	s, ok := (*v).(string)
	if !ok || s == "" {
		return false
	}
	_, err := time.LoadLocation(s)
	return err == nil
}

func urlFilter(v *any, _ []string) bool {
	s, ok := (*v).(string)
	if !ok {
		return false
	}
	u, err := url.ParseRequestURI(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func uuidFilter(v *any, _ []string) bool {
	s, ok := (*v).(string)
	if !ok {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	*v = id.String()
	return true
}
