package nav

import "testing"

func TestRootSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", ""},
		{"", ""},
		{"/login", "login"},
		{"/app", "app"},
		{"/app/clients/42", "app"},
		{"app/agenda", "app"},
		{"/application", "application"},
		{"//app//x/", "app"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := RootSegment(tt.in); got != tt.want {
				t.Errorf("RootSegment(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRouter_NavigateNotifiesOnChange(t *testing.T) {
	r := NewRouter("/")

	var got []string
	r.Subscribe(func(loc string) { got = append(got, loc) })

	r.Navigate("/login")
	r.Navigate("/login")
	r.Replace("/app/")

	if len(got) != 2 || got[0] != "/login" || got[1] != "/app" {
		t.Errorf("notifications = %v, want [/login /app]", got)
	}
	if r.Location() != "/app" || r.Root() != RootApp {
		t.Errorf("location = %q root = %q", r.Location(), r.Root())
	}
}

func TestRouter_Unsubscribe(t *testing.T) {
	r := NewRouter("")
	count := 0
	unsubscribe := r.Subscribe(func(string) { count++ })

	unsubscribe()
	r.Navigate("/login")

	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if r.Location() != "/login" {
		t.Errorf("location = %q", r.Location())
	}
}
