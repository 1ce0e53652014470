package github

import (
	"fmt"
	"testing"

	"github.com/google/go-github/v60/github"
)

func TestIsAlreadyExists(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "structured validation error",
			err: &github.ErrorResponse{
				Errors: []github.Error{{Resource: "Label", Code: "already_exists"}},
			},
			want: true,
		},
		{
			name: "wrapped structured error",
			err: fmt.Errorf("failed to create label: %w", &github.ErrorResponse{
				Errors: []github.Error{{Code: "already_exists"}},
			}),
			want: true,
		},
		{
			name: "message-only error",
			err:  fmt.Errorf("422 Validation Failed [{Code:already_exists}]"),
			want: true,
		},
		{
			name: "unrelated error",
			err:  fmt.Errorf("connection refused"),
			want: false,
		},
		{
			name: "other validation code",
			err: &github.ErrorResponse{
				Errors: []github.Error{{Code: "invalid"}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAlreadyExists(tt.err); got != tt.want {
				t.Fatalf("IsAlreadyExists(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
