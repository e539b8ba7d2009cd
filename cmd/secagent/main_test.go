package main

import (
	"reflect"
	"testing"
)

func TestRewriteDirectAskArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"secagent"},
			want: []string{"secagent"},
		},
		{
			name: "identity first token",
			in:   []string{"secagent", "user:alan", "what", "is", "new?"},
			want: []string{"secagent", "ask", "--as", "user:alan", "what", "is", "new?"},
		},
		{
			name: "identity after value flag",
			in:   []string{"secagent", "--api", "http://127.0.0.1:9000", "user:alan", "roadmap"},
			want: []string{"secagent", "--api", "http://127.0.0.1:9000", "ask", "--as", "user:alan", "roadmap"},
		},
		{
			name: "identity after equals flag",
			in:   []string{"secagent", "--format=text", "user:tsuki", "q"},
			want: []string{"secagent", "--format=text", "ask", "--as", "user:tsuki", "q"},
		},
		{
			name: "identity after bool flag",
			in:   []string{"secagent", "--pretty", "user:tsuki", "q"},
			want: []string{"secagent", "--pretty", "ask", "--as", "user:tsuki", "q"},
		},
		{
			name: "identity after double dash",
			in:   []string{"secagent", "--", "user:alan", "--weird question"},
			want: []string{"secagent", "ask", "--as", "user:alan", "--", "--weird question"},
		},
		{
			name: "bare prefix not rewritten",
			in:   []string{"secagent", "user:"},
			want: []string{"secagent", "user:"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"secagent", "permissions", "user:alan"},
			want: []string{"secagent", "permissions", "user:alan"},
		},
		{
			name: "unknown command not rewritten",
			in:   []string{"secagent", "wat"},
			want: []string{"secagent", "wat"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectAskArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteDirectAskArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
