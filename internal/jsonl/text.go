package jsonl

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidText reports a string that is not valid UTF-8. JSON cannot
// carry such bytes without replacing them, so the record is refused.
var ErrInvalidText = errors.New("text is not valid UTF-8")

// CheckText walks the string fields of v. It fails on the first field that
// is not valid UTF-8, and otherwise returns the JSON names of fields whose
// text is not in Unicode normalization form C. Such text is still written
// byte for byte; the names are informational.
func CheckText(v any) (unnormalized []string, err error) {
	err = walkText(reflect.ValueOf(v), "", func(path, s string) error {
		if !utf8.ValidString(s) {
			return fmt.Errorf("field %s: %w", path, ErrInvalidText)
		}
		if !norm.NFC.IsNormalString(s) {
			unnormalized = append(unnormalized, path)
		}
		return nil
	})
	return unnormalized, err
}

func walkText(v reflect.Value, path string, visit func(path, s string) error) error {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return walkText(v.Elem(), path, visit)
	case reflect.String:
		return visit(path, v.String())
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = f.Name
			}
			if err := walkText(v.Field(i), joinPath(path, name), visit); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := walkText(v.Index(i), fmt.Sprintf("%s[%d]", path, i), visit); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			if err := walkText(iter.Key(), joinPath(path, "<key>"), visit); err != nil {
				return err
			}
			if err := walkText(iter.Value(), joinPath(path, key), visit); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
