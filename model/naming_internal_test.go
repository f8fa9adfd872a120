package model

import "testing"

func TestCamelToSnake(t *testing.T) {
	tests := map[string]string{
		"ID":          "id",
		"UserName":    "user_name",
		"HTTPRequest": "http_request",
		"createdAt":   "created_at",
		"simple":      "simple",
		"OrderLineID": "order_line_id",
	}
	for in, want := range tests {
		if got := camelToSnake(in); got != want {
			t.Errorf("camelToSnake(%q) = %q, want %q", in, got, want)
		}
	}
}
