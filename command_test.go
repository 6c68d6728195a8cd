package ftpcore

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line     string
		wantVerb Verb
		wantArg  string
	}{
		{"", VerbUnknown, ""},
		{"   ", VerbUnknown, ""},
		{"NOOP", VerbNOOP, ""},
		{"user alice", VerbUSER, "alice"},
		{"USER   alice  ", VerbUSER, "alice"},
		{"PASS  s3cr3t", VerbPASS, "s3cr3t"},
		{"retr /path/with spaces.txt", VerbRETR, "/path/with spaces.txt"},
		{"BOGUS foo", VerbUnknown, "foo"},
		{"quit", VerbQUIT, ""},
	}
	for _, c := range cases {
		got := ParseCommand([]byte(c.line))
		if got.Verb != c.wantVerb || string(got.Arg) != c.wantArg {
			t.Errorf("ParseCommand(%q) = (%v, %q), want (%v, %q)", c.line, got.Verb, got.Arg, c.wantVerb, c.wantArg)
		}
	}
}
