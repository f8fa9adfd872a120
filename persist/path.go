package persist

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/shrek82/jpersist/value"
)

// ResolveObject follows a dotted path of object keys from root and returns
// the object at its end. An empty path returns root itself.
func ResolveObject(root gjson.Result, path string) (gjson.Result, error) {
	if !root.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: root is %s, not an object", ErrJSONPath, value.TypeName(root))
	}
	if path == "" {
		return root, nil
	}

	keys := pathKeys(path)
	current := root
	for i, key := range keys {
		child, err := step(current, key, path)
		if err != nil {
			return gjson.Result{}, err
		}
		switch {
		case child.IsArray() && i == len(keys)-1:
			return gjson.Result{}, fmt.Errorf("%w: last element %q is an array and not an object", ErrJSONPath, key)
		case child.IsArray():
			return gjson.Result{}, fmt.Errorf("%w: array element for %q cannot be traversed at %s", ErrJSONPath, key, path)
		case !child.IsObject():
			return gjson.Result{}, fmt.Errorf("%w: element %q on path %s is %s", ErrJSONPath, key, path, value.TypeName(child))
		}
		current = child
	}
	return current, nil
}

// ResolveArray follows a dotted path of object keys from root and returns the
// array at its end. The root itself is never an array.
func ResolveArray(root gjson.Result, path string) (gjson.Result, error) {
	if path == "" {
		return gjson.Result{}, fmt.Errorf("%w: the root of an object is never an array", ErrJSONPath)
	}
	if !root.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: root is %s, not an object", ErrJSONPath, value.TypeName(root))
	}

	keys := pathKeys(path)
	current := root
	for i, key := range keys {
		child, err := step(current, key, path)
		if err != nil {
			return gjson.Result{}, err
		}
		switch {
		case child.IsArray() && i == len(keys)-1:
			return child, nil
		case child.IsArray():
			return gjson.Result{}, fmt.Errorf("%w: array element for %q is not the last element on the path %s", ErrJSONPath, key, path)
		case !child.IsObject():
			return gjson.Result{}, fmt.Errorf("%w: element %q on path %s is %s", ErrJSONPath, key, path, value.TypeName(child))
		}
		current = child
	}
	return gjson.Result{}, fmt.Errorf("%w: %s ends at an object, not an array", ErrJSONPath, path)
}

func step(obj gjson.Result, key, path string) (gjson.Result, error) {
	child, ok := value.Field(obj, key)
	if !ok {
		return gjson.Result{}, fmt.Errorf("%w: failed to fetch element %q on path %s", ErrJSONPath, key, path)
	}
	return child, nil
}

// pathKeys splits a dotted path, ignoring trailing separators.
func pathKeys(path string) []string {
	return strings.Split(strings.TrimRight(path, "."), ".")
}
