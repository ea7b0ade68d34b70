package urlkey

import "testing"

func TestMassage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "domain with port and sorted query",
			in:   "https://www.EXAMPLE.com:443/p?b=2&a=1",
			want: "com,example,www)/p?&a=1&b=2&",
		},
		{
			name: "ip literal with non-default port",
			in:   "http://1.2.3.4:8080/",
			want: "1.2.3.4:8080)/",
		},
		{
			name: "plain http default port omitted",
			in:   "http://example.com/a",
			want: "com,example)/a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Massage(tt.in)
			if err != nil {
				t.Fatalf("Massage(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Massage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMassageStableUnderQueryReordering(t *testing.T) {
	a, err := Massage("http://x/?a=1&b=2")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Massage("http://x/?b=2&a=1")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("Massage not stable under query reordering: %q != %q", a, b)
	}
}

func TestBuildRegexp(t *testing.T) {
	tests := []struct {
		name string
		p    Pattern
		want string
	}{
		{
			name: "no constraints",
			p:    Pattern{},
			want: ".*",
		},
		{
			name: "exact host",
			p:    Pattern{Host: HostExact, HostValue: "example.com"},
			want: `com,example(:[0-9]{1,5})?\).*`,
		},
		{
			name: "partial host with exact path",
			p:    Pattern{Host: HostPartial, HostValue: "example.com", Path: PathExact, PathValue: "/a"},
			want: `com,example(,[a-z0-9]+)*(:[0-9]{1,5})?\)/a`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildRegexp(tt.p)
			if got != tt.want {
				t.Errorf("BuildRegexp() = %q, want %q", got, tt.want)
			}
		})
	}
}
