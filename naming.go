package oas

import (
	"reflect"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser upper-cases the first letter of a word without lowering the
// rest, so acronyms in path segments survive ("userIDs" → "UserIDs").
var titleCaser = cases.Title(language.English, cases.NoLower)

// generateOperationID derives a camelCase operation id from a method and
// path template: GET /users/{id}/posts → getUsersByIdPosts.
func generateOperationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))

	for seg := range strings.SplitSeq(path, "/") {
		if seg == "" {
			continue
		}
		if name, ok := strings.CutPrefix(seg, "{"); ok {
			name = strings.TrimSuffix(name, "}")
			name = strings.TrimSuffix(name, "...")
			b.WriteString("By")
			b.WriteString(segmentWords(name))
			continue
		}
		b.WriteString(segmentWords(seg))
	}

	return b.String()
}

// segmentWords title-cases each word of a path segment, treating '-', '_',
// and '.' as word breaks: "pet-store" → "PetStore".
func segmentWords(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	for i, p := range parts {
		parts[i] = titleCaser.String(p)
	}
	return strings.Join(parts, "")
}

// schemaName returns the component name for a named type. Generic
// instantiations like Page[store.User] collapse to PageUser.
func schemaName(t reflect.Type) string {
	if n, ok := implementsAs[SchemaNamer](t); ok {
		return n.SchemaName()
	}

	name := t.Name()
	i := strings.IndexByte(name, '[')
	if i < 0 {
		return name
	}

	var b strings.Builder
	b.WriteString(name[:i])
	for arg := range strings.SplitSeq(name[i+1:len(name)-1], ",") {
		arg = strings.TrimSpace(arg)
		arg = strings.TrimPrefix(arg, "*")
		if j := strings.LastIndexByte(arg, '.'); j >= 0 {
			arg = arg[j+1:]
		}
		b.WriteString(arg)
	}
	return b.String()
}
