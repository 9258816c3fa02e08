package metadata

import (
	"reflect"

	"github.com/mmcdole/mediacenter/internal/domain"
)

const (
	tagNoProvider = "noprovider"
	tagKeep       = "keep"
	tagSkip       = "-"
)

// Clear zeroes every provider-sourced field of item. Fields tagged
// noprovider or keep survive; a keep field holding a struct gets one
// non-recursive pass that clears its own provider-sourced fields.
func Clear(item *domain.Item) {
	if item == nil {
		return
	}
	clearStruct(reflect.ValueOf(item).Elem(), true)
}

func clearStruct(v reflect.Value, descend bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := v.Field(i)
		switch sf.Tag.Get("meta") {
		case tagSkip, tagNoProvider:
			continue
		case tagKeep:
			if !descend {
				continue
			}
			if nested, ok := nestedStruct(fv); ok {
				clearStruct(nested, false)
			}
			continue
		}
		fv.SetZero()
	}
}

// Merge copies every non-zero provider-sourced field of src onto dst. Keep
// fields holding a struct are merged field by field one level deep, and
// their noprovider fields travel with them.
func Merge(dst, src *domain.Item) {
	if dst == nil || src == nil {
		return
	}
	mergeStruct(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem(), true)
}

func mergeStruct(dst, src reflect.Value, top bool) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		sv := src.Field(i)
		if sv.IsZero() {
			continue
		}
		dv := dst.Field(i)
		switch sf.Tag.Get("meta") {
		case tagSkip:
			continue
		case tagNoProvider:
			if top {
				continue
			}
		case tagKeep:
			if top {
				if srcNested, ok := nestedStruct(sv); ok {
					if dv.Kind() == reflect.Pointer && dv.IsNil() {
						dv.Set(reflect.New(dv.Type().Elem()))
					}
					dstNested, _ := nestedStruct(dv)
					mergeStruct(dstNested, srcNested, false)
					continue
				}
			}
		}
		dv.Set(copyValue(sv))
	}
}

// nestedStruct returns the addressable struct behind v, dereferencing a
// non-nil pointer.
func nestedStruct(v reflect.Value) (reflect.Value, bool) {
	switch v.Kind() {
	case reflect.Struct:
		return v, true
	case reflect.Pointer:
		if !v.IsNil() && v.Elem().Kind() == reflect.Struct {
			return v.Elem(), true
		}
	}
	return reflect.Value{}, false
}

// copyValue detaches slices and maps so dst never aliases the working copy.
func copyValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(c, v)
		return c
	case reflect.Map:
		c := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			c.SetMapIndex(iter.Key(), iter.Value())
		}
		return c
	}
	return v
}
