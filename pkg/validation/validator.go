// Package validation checks untrusted request input against typed request
// structs before it reaches persistence.
//
// Request structs declare their shape with struct tags:
//
//	type CommentRequest struct {
//	    Content string `json:"content" validate:"required,min=1" msg:"Comment cannot be empty"`
//	}
//
// `json` names the field in violations, `validate` holds go-playground
// constraints, `msg` replaces the generated message for every constraint on
// the field and `default` fills a zero optional field before validation.
// Every violation is collected; validation never stops at the first one.
package validation

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator. It caches struct metadata and
// is safe for concurrent use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

// Bind decodes a JSON body into dst and validates it. dst must be a pointer
// to a struct. A nil or empty result means the input was accepted.
func Bind(body []byte, dst interface{}) []string {
	var violations []string
	skip := map[string]bool{}

	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &typeErr) {
				return []string{"Request body must be valid JSON"}
			}
			if typeErr.Field == "" {
				return []string{"Request body must be a JSON object"}
			}
			mismatched := typeViolations(body, dst)
			if len(mismatched) == 0 {
				mismatched = []violation{{
					field:   topLevel(typeErr.Field),
					message: fmt.Sprintf("%s must be %s", typeErr.Field, describeKind(typeErr.Type)),
				}}
			}
			for _, v := range mismatched {
				skip[v.field] = true
				violations = append(violations, v.message)
			}
		}
	}

	for _, v := range collect(dst) {
		if !skip[v.field] {
			violations = append(violations, v.message)
		}
	}
	return violations
}

// Validate applies defaults and constraints to an already decoded value.
func Validate(dst interface{}) []string {
	violations := collect(dst)
	if len(violations) == 0 {
		return nil
	}
	messages := make([]string, len(violations))
	for i, v := range violations {
		messages[i] = v.message
	}
	return messages
}

type violation struct {
	field   string
	message string
}

func collect(dst interface{}) []violation {
	applyDefaults(dst)

	err := GetValidator().Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []violation{{message: err.Error()}}
	}

	root := reflect.TypeOf(dst)
	violations := make([]violation, 0, len(fieldErrs))
	seen := map[string]bool{}
	for _, fe := range fieldErrs {
		message := translateError(fe)
		if custom := messageOverride(root, fe.StructNamespace()); custom != "" {
			message = custom
		}
		field := topLevel(fe.Field())
		// An override shared by every element of a list is reported once
		if seen[field+"|"+message] {
			continue
		}
		seen[field+"|"+message] = true
		violations = append(violations, violation{field: field, message: message})
	}
	return violations
}

var errorMessageTemplates = map[string]string{
	"required":  "%s is required",
	"email":     "%s must be a valid email address",
	"url":       "%s must be a valid URL",
	"http_url":  "%s must be a valid URL",
	"latitude":  "%s must be a valid latitude (-90 to 90)",
	"longitude": "%s must be a valid longitude (-180 to 180)",
	"numeric":   "%s must be numeric",
	"boolean":   "%s must be true or false",
	"dive":      "%s is invalid",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	return translateMinMax(fe, field, tag, param)
}

func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	var unit string
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}

	switch tag {
	case "min":
		return fmt.Sprintf("%s must contain at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must contain at most %s%s", field, param, unit)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

// messageOverride resolves the `msg` tag of the field a namespace such as
// "PostRequest.Tags[1]" points at.
func messageOverride(root reflect.Type, namespace string) string {
	t := indirectType(root)
	parts := strings.Split(namespace, ".")
	if len(parts) < 2 {
		return ""
	}

	var field reflect.StructField
	for _, part := range parts[1:] {
		if i := strings.IndexByte(part, '['); i >= 0 {
			part = part[:i]
		}
		if t.Kind() != reflect.Struct {
			return ""
		}
		f, ok := t.FieldByName(part)
		if !ok {
			return ""
		}
		field = f
		t = indirectType(f.Type)
		if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
			t = indirectType(t.Elem())
		}
	}
	return field.Tag.Get("msg")
}

// applyDefaults fills zero top-level fields that carry a `default` tag.
// Pointer fields are allocated.
func applyDefaults(dst interface{}) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		def, ok := t.Field(i).Tag.Lookup("default")
		if !ok {
			continue
		}
		fv := v.Field(i)
		if !fv.CanSet() || !fv.IsZero() {
			continue
		}
		if fv.Kind() == reflect.Pointer {
			fv.Set(reflect.New(fv.Type().Elem()))
			fv = fv.Elem()
		}
		setFromString(fv, def)
	}
}

func setFromString(v reflect.Value, raw string) {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			v.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			v.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			v.SetUint(n)
		}
	case reflect.Float32, reflect.Float64:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			v.SetFloat(f)
		}
	}
}

func jsonFieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func describeKind(t reflect.Type) string {
	switch indirectType(t).Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}

// typeViolations reports every top-level field whose JSON value has the
// wrong kind. encoding/json only returns the first such error.
func typeViolations(body []byte, dst interface{}) []violation {
	t := indirectType(reflect.TypeOf(dst))
	if t.Kind() != reflect.Struct {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	var violations []violation
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonFieldName(f)
		if name == "" {
			continue
		}
		value, ok := lookupKey(raw, name)
		if !ok {
			continue
		}
		if want := mismatch(f.Type, value); want != "" {
			violations = append(violations, violation{field: name, message: fmt.Sprintf("%s must be %s", name, want)})
		}
	}
	return violations
}

// lookupKey matches keys the way encoding/json does: exact first, then
// case-insensitively.
func lookupKey(raw map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if value, ok := raw[name]; ok {
		return value, true
	}
	for key, value := range raw {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

// mismatch returns the expected description when value cannot decode into
// t, or "" when it can. null always decodes.
func mismatch(t reflect.Type, value json.RawMessage) string {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || string(value) == "null" {
		return ""
	}

	t = indirectType(t)
	if reflect.PointerTo(t).Implements(jsonUnmarshaler) || reflect.PointerTo(t).Implements(textUnmarshaler) {
		return ""
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			if value[0] != '"' {
				return "a string"
			}
			return ""
		}
		var elems []json.RawMessage
		if value[0] != '[' || json.Unmarshal(value, &elems) != nil {
			return describeList(t)
		}
		for _, elem := range elems {
			if mismatch(t.Elem(), elem) != "" {
				return describeList(t)
			}
		}
		return ""
	case reflect.String:
		if value[0] != '"' {
			return describeKind(t)
		}
	case reflect.Bool:
		if string(value) != "true" && string(value) != "false" {
			return describeKind(t)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if _, err := strconv.ParseInt(string(value), 10, t.Bits()); err != nil {
			return describeKind(t)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if _, err := strconv.ParseUint(string(value), 10, t.Bits()); err != nil {
			return describeKind(t)
		}
	case reflect.Float32, reflect.Float64:
		if _, err := strconv.ParseFloat(string(value), t.Bits()); err != nil {
			return describeKind(t)
		}
	case reflect.Struct, reflect.Map:
		if value[0] != '{' {
			return describeKind(t)
		}
	}
	return ""
}

var (
	jsonUnmarshaler = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	textUnmarshaler = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

var pluralKinds = map[string]string{
	"a string":  "strings",
	"a boolean": "booleans",
	"a number":  "numbers",
	"an array":  "arrays",
	"an object": "objects",
}

// describeList names a list type by its elements, e.g. "an array of strings".
func describeList(t reflect.Type) string {
	elem := indirectType(t.Elem())
	if elem.Kind() == reflect.Slice || elem.Kind() == reflect.Array {
		return "an array of arrays"
	}
	return "an array of " + pluralKinds[describeKind(elem)]
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// topLevel trims "tags.0" or "tags[0]" to "tags".
func topLevel(field string) string {
	if i := strings.IndexAny(field, ".["); i >= 0 {
		return field[:i]
	}
	return field
}
