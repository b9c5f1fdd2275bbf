package sysex

import "testing"

func TestUnwrapReply(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		key     string
		want    string
		wantErr bool
	}{
		{
			name: "match",
			data: `{"^open":{"fid":3,"size":10,"err":0}}`,
			key:  "open",
			want: `{"fid":3,"size":10,"err":0}`,
		},
		{
			name:    "wrong key",
			data:    `{"^close":{"err":0}}`,
			key:     "open",
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `garbage`,
			key:     "open",
			wantErr: true,
		},
		{
			name:    "empty object",
			data:    `{}`,
			key:     "open",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnwrapReply([]byte(tt.data), tt.key)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("UnwrapReply: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
