package ast

import "reflect"

// Origins maps nodes to the document they were decoded from.
type Origins map[Node]string

// Annotate records path for every node reachable from root that has no
// origin yet.
func (o Origins) Annotate(root Node, path string) {
	if root == nil || path == "" {
		return
	}
	o.walk(root, path, make(map[Node]struct{}))
}

// Lookup returns the recorded origin of node.
func (o Origins) Lookup(node Node) (string, bool) {
	if node == nil {
		return "", false
	}
	path, ok := o[node]
	return path, ok
}

func (o Origins) walk(node Node, path string, visited map[Node]struct{}) {
	if _, ok := visited[node]; ok {
		return
	}
	visited[node] = struct{}{}
	if _, ok := o[node]; !ok {
		o[node] = path
	}
	val := reflect.ValueOf(node)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return
	}
	o.walkValue(val.Elem(), path, visited)
}

func (o Origins) walkValue(val reflect.Value, path string, visited map[Node]struct{}) {
	switch val.Kind() {
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return
		}
		if val.CanInterface() {
			if node, ok := val.Interface().(Node); ok {
				o.walk(node, path, visited)
				return
			}
		}
		o.walkValue(val.Elem(), path, visited)
	case reflect.Struct:
		for idx := 0; idx < val.NumField(); idx++ {
			if val.Type().Field(idx).IsExported() {
				o.walkValue(val.Field(idx), path, visited)
			}
		}
	case reflect.Slice, reflect.Array:
		for idx := 0; idx < val.Len(); idx++ {
			o.walkValue(val.Index(idx), path, visited)
		}
	}
}
