package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeOperation(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single quoted",
			in:   "SELECT id FROM leads WHERE phone = '+1 555 0100'",
			want: "SELECT id FROM leads WHERE phone = '?'",
		},
		{
			name: "double quoted with escape",
			in:   `find "Acme \"Corp\"" in companies`,
			want: "find '?' in companies",
		},
		{
			name: "date and timestamp",
			in:   "campaigns between 2025-06-01 and 2025-06-30T23:59:59Z",
			want: "campaigns between <date> and <date>",
		},
		{
			name: "ipv4",
			in:   "login from 192.168.1.20 blocked",
			want: "login from <ip> blocked",
		},
		{
			name: "date inside quotes is a literal",
			in:   "WHERE day = '2025-06-01'",
			want: "WHERE day = '?'",
		},
		{
			name: "nothing to strip",
			in:   "SELECT count(*) FROM teams",
			want: "SELECT count(*) FROM teams",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeOperation(tt.in))
		})
	}
}
