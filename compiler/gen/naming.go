package gen

import (
	"go/token"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

var (
	rules    = ruleset()
	acronyms = make(map[string]struct{})
)

func ruleset() *inflect.Ruleset {
	rules := inflect.NewDefaultRuleset()
	// Add common initialisms from golint and more.
	for _, w := range []string{
		"ACL", "API", "ASCII", "AWS", "CPU", "CSS", "DNS", "EOF", "GB", "GUID",
		"HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "KB", "LHS", "MAC", "MB",
		"QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SQL", "SSH", "SSO", "TCP",
		"TLS", "TTL", "UDP", "UI", "UID", "URI", "URL", "UTF8", "UUID", "VM",
		"XML", "XMPP", "XSRF", "XSS",
	} {
		acronyms[w] = struct{}{}
		rules.AddAcronym(w)
	}
	return rules
}

// AddAcronym registers an initialism kept upper-cased by Pascal and Camel.
// It must be called before generation starts.
func AddAcronym(word string) {
	word = strings.ToUpper(word)
	acronyms[word] = struct{}{}
	rules.AddAcronym(word)
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || unicode.IsSpace(r)
}

func pascalWords(words []string) string {
	for i, w := range words {
		upper := strings.ToUpper(w)
		if _, ok := acronyms[upper]; ok {
			words[i] = upper
		} else {
			words[i] = rules.Capitalize(w)
		}
	}
	return strings.Join(words, "")
}

// Pascal converts a catalog name into a PascalCase type name.
//
//	user_info  => UserInfo
//	full_name  => FullName
//	user_id    => UserID
//	full-admin => FullAdmin
func Pascal(s string) string {
	return pascalWords(strings.FieldsFunc(s, isSeparator))
}

// Camel converts a catalog name into a camelCase instance name.
//
//	user_info => userInfo
//	user_id   => userID
//	http_code => httpCode
func Camel(s string) string {
	words := strings.FieldsFunc(s, isSeparator)
	switch len(words) {
	case 0:
		return ""
	case 1:
		return strings.ToLower(words[0])
	}
	return strings.ToLower(words[0]) + pascalWords(words[1:])
}

// Snake converts a Go identifier back into its snake_case catalog form.
//
//	Username => username
//	FullName => full_name
//	HTTPCode => http_code
func Snake(s string) string {
	var (
		j int
		b strings.Builder
	)
	for i := 0; i < len(s); i++ {
		r := rune(s[i])
		// Put '_' if it is not a start or end of a word, current letter is uppercase,
		// and previous is lowercase (cases like: "UserInfo"), or next letter is also
		// lowercase and previous letter is not "_".
		if i > 0 && i < len(s)-1 && unicode.IsUpper(r) {
			if unicode.IsLower(rune(s[i-1])) ||
				j != i-1 && unicode.IsLower(rune(s[i+1])) && unicode.IsLetter(rune(s[i-1])) {
				j = i
				b.WriteString("_")
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Plural returns the plural form of a type name. Names that are already
// plural get a "Slice" suffix.
func Plural(name string) string {
	p := rules.Pluralize(name)
	if p == name {
		p += "Slice"
	}
	return p
}

// MemberName returns the exported Go name of a member declared next to the
// named types. A member whose name equals one of them gets a single trailing
// underscore; the types are never renamed.
func MemberName(name string, types ...string) string {
	member := Pascal(name)
	for _, t := range types {
		if member == t {
			return member + "_"
		}
	}
	return member
}

// InstanceName returns the camelCase Go name of a local value, prefixed with
// underscores until it is neither a keyword nor an identifier generated code
// depends on.
func InstanceName(name string) string {
	n := Camel(name)
	if n == "" {
		n = "v"
	}
	for reserved(n) {
		n = "_" + n
	}
	return n
}

// predeclared identifiers shadowing would break generated code.
var predeclared = map[string]struct{}{
	"any": {}, "append": {}, "bool": {}, "byte": {}, "cap": {}, "close": {},
	"complex": {}, "copy": {}, "delete": {}, "error": {}, "false": {},
	"float32": {}, "float64": {}, "int": {}, "int32": {}, "int64": {},
	"iota": {}, "len": {}, "make": {}, "new": {}, "nil": {}, "panic": {},
	"print": {}, "real": {}, "recover": {}, "rune": {}, "string": {},
	"true": {}, "uint": {}, "uint32": {}, "uint64": {},
	// receivers and locals of generated functions.
	"ctx": {}, "e": {}, "err": {}, "q": {}, "rec": {}, "req": {}, "s": {},
}

func reserved(n string) bool {
	if token.IsKeyword(n) {
		return true
	}
	if _, ok := predeclared[n]; ok {
		return true
	}
	_, ok := importedNames[n]
	return ok
}

// imported package names of generated table packages.
var importedNames = map[string]struct{}{
	"context": {}, "crud": {}, "errors": {}, "fmt": {}, "grpc": {}, "pb": {},
	"pgproto": {}, "privacy": {}, "proto": {}, "protoreflect": {}, "sql": {},
	"storage": {}, "time": {}, "uuid": {}, "validate": {}, "wire": {}, "zap": {},
	"timestamppb": {}, "date": {},
}

// PackageName returns the Go package name of a generated table package: the
// lower-cased name stripped of separators. Names that are keywords or clash
// with an imported package get a "pkg" suffix.
func PackageName(table string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(table) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "t" + name
	}
	if _, ok := importedNames[name]; ok || token.IsKeyword(name) {
		name += "pkg"
	}
	return name
}

// methods of generated protobuf messages that fields must not shadow.
var messageMethods = []string{
	"Reset", "String", "ProtoMessage", "Marshal", "Unmarshal",
	"ExtensionRangeArray", "ExtensionMap", "Descriptor",
}

// ProtoGoName returns the Go struct field name protoc-gen-go derives from a
// proto field name, before collision handling. Words start at '_' and at
// upper case letters, digits stand alone, and a leading '_' becomes 'X'.
//
//	user_id => UserId
//	_x      => XX
func ProtoGoName(field string) string {
	var b []byte
	for i := 0; i < len(field); i++ {
		c := field[i]
		switch {
		case c == '.' && i+1 < len(field) && isLowerASCII(field[i+1]):
		case c == '.':
			b = append(b, '_')
		case c == '_' && (i == 0 || field[i-1] == '.'):
			b = append(b, 'X')
		case c == '_' && i+1 < len(field) && isLowerASCII(field[i+1]):
		case '0' <= c && c <= '9':
			b = append(b, c)
		default:
			if isLowerASCII(c) {
				c -= 'a' - 'A'
			}
			b = append(b, c)
			for ; i+1 < len(field) && isLowerASCII(field[i+1]); i++ {
				b = append(b, field[i+1])
			}
		}
	}
	return string(b)
}

func isLowerASCII(c byte) bool { return 'a' <= c && c <= 'z' }

// ProtoGoNames returns the Go struct field names protoc-gen-go assigns to the
// fields of one message, in order.
func ProtoGoNames(fields ...string) []string {
	used := make(map[string]bool, len(messageMethods)+2*len(fields))
	for _, m := range messageMethods {
		used[m] = true
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		name := ProtoGoName(f)
		for used[name] || used["Get"+name] {
			name += "_"
		}
		used[name] = true
		used["Get"+name] = true
		names[i] = name
	}
	return names
}
